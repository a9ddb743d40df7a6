package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scailotto/backend/internal/common"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/router"
	"github.com/scailotto/backend/pkg/xcontext"
)

func WithStartTime() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		return xcontext.WithStartTime(ctx, time.Now()), nil
	}
}

func Prometheus() router.CloserFunc {
	return func(ctx context.Context) {
		code := 0
		if err := xcontext.Error(ctx); err != nil {
			var errx errorx.Error
			if errors.As(err, &errx) {
				code = int(errx.Code)
			} else {
				code = -1
			}
		}

		// Patterns instead of paths, addresses would explode the label set.
		path := router.Pattern(ctx)

		common.IncCounter(common.HTTPRequestTotal, path, fmt.Sprint(code))
		if histogram, ok := common.PromHistograms[common.HTTPRequestDurationSeconds]; ok {
			if start := xcontext.StartTime(ctx); !start.IsZero() {
				histogram.WithLabelValues(path, fmt.Sprint(code)).Observe(time.Since(start).Seconds())
			}
		}
	}
}
