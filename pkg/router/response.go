package router

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/scailotto/backend/pkg/errorx"
)

type errorResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func newErrorResponse(err error) errorResponse {
	errx := errorx.Error{}
	if errors.As(err, &errx) {
		return errorResponse{
			Code:    int64(errx.Code),
			Message: errx.Message,
		}
	}

	return errorResponse{
		Code:    int64(errorx.Unknown.Code),
		Message: errorx.Unknown.Message,
	}
}

func WriteJson(w http.ResponseWriter, status int, resp any) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		return err
	}

	return nil
}
