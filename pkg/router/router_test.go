package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/testutil"
	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Network string `uri:"network"`
	Limit   int    `form:"limit"`
	Name    string `json:"name"`
}

type echoResponse struct {
	Network string `json:"network"`
	Limit   int    `json:"limit"`
	Name    string `json:"name"`
	Env     string `json:"env"`
}

func echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Network == "unknown" {
		return nil, errorx.New(errorx.UnsupportedNetwork, "Unsupported network %s", req.Network)
	}

	return &echoResponse{
		Network: req.Network,
		Limit:   req.Limit,
		Name:    req.Name,
		Env:     xcontext.Configs(ctx).Env,
	}, nil
}

func serve(r *Router, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	return w
}

func Test_Router(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var closed []error
	var patterns []string
	r := New(testutil.MockContext())
	r.AddCloser(func(ctx context.Context) {
		closed = append(closed, xcontext.Error(ctx))
		patterns = append(patterns, Pattern(ctx))
	})
	GET(r, "/echo/:network", echo)
	POST(r, "/echo/:network", echo)

	w := serve(r, http.MethodGet, "/echo/scai?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp echoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, echoResponse{Network: "scai", Limit: 5, Env: "test"}, resp)

	w = serve(r, http.MethodPost, "/echo/scai", `{"name":"lucky"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "lucky", resp.Name)

	w = serve(r, http.MethodGet, "/echo/unknown", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.Equal(t, int64(errorx.UnsupportedNetwork), errResp.Code)
	require.Equal(t, "Unsupported network unknown", errResp.Message)

	w = serve(r, http.MethodGet, "/echo/scai?limit=many", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	require.Len(t, closed, 4)
	require.NoError(t, closed[0])
	require.NoError(t, closed[1])
	require.True(t, errorx.Is(closed[2], errorx.UnsupportedNetwork))
	require.True(t, errorx.Is(closed[3], errorx.BadRequest))
	require.Equal(t, "/echo/:network", patterns[0])
}

func Test_Router_Before(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := New(testutil.MockContext())
	blocked := r.Branch()
	blocked.Before(func(ctx context.Context) (context.Context, error) {
		return nil, errorx.New(errorx.TooManyRequests, "Slow down")
	})
	GET(blocked, "/blocked/:network", echo)
	GET(r, "/open/:network", echo)

	w := serve(r, http.MethodGet, "/blocked/scai", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// The branch middleware does not leak into the parent.
	w = serve(r, http.MethodGet, "/open/scai", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func Test_newErrorResponse(t *testing.T) {
	resp := newErrorResponse(context.Canceled)
	require.Equal(t, int64(errorx.Unknown.Code), resp.Code)
	require.Equal(t, errorx.Unknown.Message, resp.Message)
}
