package errorx

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code    Code
	Message string
}

func New(code Code, format string, a ...any) Error {
	return Error{Code: code, Message: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	return e.Message
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var errx Error
	return errors.As(err, &errx) && errx.Code == code
}

// HTTPStatus returns the status code which should be written for err. Errors
// which are not Error are always internal.
func HTTPStatus(err error) int {
	var errx Error
	if !errors.As(err, &errx) {
		return http.StatusInternalServerError
	}

	if status, ok := httpStatuses[errx.Code]; ok {
		return status
	}

	return http.StatusInternalServerError
}
