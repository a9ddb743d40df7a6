package xcontext

import (
	"context"
	"net/http"
	"time"

	"github.com/scailotto/backend/config"
	"github.com/scailotto/backend/pkg/logger"
)

type (
	configsKey     struct{}
	loggerKey      struct{}
	dbKey          struct{}
	dbTxKey        struct{}
	httpRequestKey struct{}
	startTimeKey   struct{}
	errorKey       struct{}
)

func WithConfigs(ctx context.Context, cfg config.Configs) context.Context {
	return context.WithValue(ctx, configsKey{}, cfg)
}

func Configs(ctx context.Context) config.Configs {
	cfg, _ := ctx.Value(configsKey{}).(config.Configs)
	return cfg
}

func WithLogger(ctx context.Context, l logger.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger never returns nil, a context without logger gets a silent one.
func Logger(ctx context.Context) logger.Logger {
	if l, ok := ctx.Value(loggerKey{}).(logger.Logger); ok {
		return l
	}
	return logger.NewNopLogger()
}

func WithHTTPRequest(ctx context.Context, req *http.Request) context.Context {
	return context.WithValue(ctx, httpRequestKey{}, req)
}

func HTTPRequest(ctx context.Context) *http.Request {
	req, _ := ctx.Value(httpRequestKey{}).(*http.Request)
	return req
}

func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

func StartTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

func WithError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, errorKey{}, err)
}

func Error(ctx context.Context) error {
	err, _ := ctx.Value(errorKey{}).(error)
	return err
}

// Inherit copies the service level values (configs, logger, database) of src
// into dst.
func Inherit(dst, src context.Context) context.Context {
	if v := src.Value(configsKey{}); v != nil {
		dst = context.WithValue(dst, configsKey{}, v)
	}
	if v := src.Value(loggerKey{}); v != nil {
		dst = context.WithValue(dst, loggerKey{}, v)
	}
	if v := src.Value(dbKey{}); v != nil {
		dst = context.WithValue(dst, dbKey{}, v)
	}
	return dst
}
