package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HandlerFunc[Request, Response any] func(ctx context.Context, req *Request) (*Response, error)

// MiddlewareFunc runs before the handler. A returned error aborts the request.
type MiddlewareFunc func(ctx context.Context) (context.Context, error)

// CloserFunc runs after the response is written, the error of the request (if
// any) is available via xcontext.Error.
type CloserFunc func(ctx context.Context)

type Router struct {
	rootCtx context.Context
	engine  *gin.Engine
	inner   gin.IRouter

	befores []MiddlewareFunc
	closers []CloserFunc
}

// New creates a router whose handlers inherit the configs, logger and database
// of ctx.
func New(ctx context.Context) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{rootCtx: ctx, engine: engine, inner: engine}
}

func GET[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.inner.GET(pattern, wrapHandler(r, bindQuery[Request], handler))
}

func POST[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.inner.POST(pattern, wrapHandler(r, bindJSON[Request], handler))
}

// Branch returns a router sharing the routes of r, middlewares added to the
// branch do not affect r.
func (r *Router) Branch() *Router {
	return r.branch(r.inner)
}

func (r *Router) Group(pattern string) *Router {
	return r.branch(r.inner.Group(pattern))
}

func (r *Router) Before(middleware MiddlewareFunc) {
	r.befores = append(r.befores, middleware)
}

func (r *Router) AddCloser(closer CloserFunc) {
	r.closers = append(r.closers, closer)
}

func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) branch(inner gin.IRouter) *Router {
	return &Router{
		rootCtx: r.rootCtx,
		engine:  r.engine,
		inner:   inner,
		befores: append([]MiddlewareFunc{}, r.befores...),
		closers: append([]CloserFunc{}, r.closers...),
	}
}
