package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/xcontext"
)

type patternKey struct{}

// Pattern returns the route pattern which matched the request, e.g.
// /user/:address. Unlike the request path it has a bounded cardinality.
func Pattern(ctx context.Context) string {
	pattern, _ := ctx.Value(patternKey{}).(string)
	return pattern
}

type bindFunc[Request any] func(c *gin.Context, req *Request) error

func bindQuery[Request any](c *gin.Context, req *Request) error {
	if len(c.Params) > 0 {
		if err := c.ShouldBindUri(req); err != nil {
			return err
		}
	}

	return c.ShouldBindQuery(req)
}

func bindJSON[Request any](c *gin.Context, req *Request) error {
	if len(c.Params) > 0 {
		if err := c.ShouldBindUri(req); err != nil {
			return err
		}
	}

	return c.ShouldBindJSON(req)
}

func wrapHandler[Request, Response any](
	router *Router,
	bind bindFunc[Request],
	handler HandlerFunc[Request, Response],
) gin.HandlerFunc {
	// Middlewares added after the route was registered are ignored.
	befores := append([]MiddlewareFunc{}, router.befores...)
	closers := append([]CloserFunc{}, router.closers...)

	return func(c *gin.Context) {
		ctx := xcontext.Inherit(c.Request.Context(), router.rootCtx)
		ctx = xcontext.WithHTTPRequest(ctx, c.Request)
		ctx = context.WithValue(ctx, patternKey{}, c.FullPath())

		var resp *Response
		var err error
		for _, before := range befores {
			var next context.Context
			if next, err = before(ctx); err != nil {
				break
			}
			ctx = next
		}

		if err == nil {
			var req Request
			if bindErr := bind(c, &req); bindErr != nil {
				xcontext.Logger(ctx).Debugf("Cannot bind request: %v", bindErr)
				err = errorx.New(errorx.BadRequest, "Invalid request")
			} else {
				resp, err = handler(ctx, &req)
			}
		}

		if err == nil && resp == nil {
			err = errorx.New(errorx.Internal, "Empty response")
		}

		if err != nil {
			ctx = xcontext.WithError(ctx, err)
			if err := WriteJson(c.Writer, errorx.HTTPStatus(err), newErrorResponse(err)); err != nil {
				xcontext.Logger(ctx).Errorf("Cannot write the error response: %v", err)
			}
		} else if err := WriteJson(c.Writer, http.StatusOK, resp); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot write the response: %v", err)
		}

		for _, closer := range closers {
			closer(ctx)
		}
	}
}
