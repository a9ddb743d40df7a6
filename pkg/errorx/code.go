package errorx

import "net/http"

type Code int

var Unknown = Error{Code: 100000, Message: "Request failed"}

const (
	// Common codes
	BadRequest      Code = 100001
	BadResponse     Code = 100002
	NotFound        Code = 100004
	AlreadyExists   Code = 100006
	Internal        Code = 100007
	Unavailable     Code = 100008
	NotImplemented  Code = 100009
	TooManyRequests Code = 100010

	// Lottery codes
	TicketAlreadyTaken Code = 500001
	LedgerRejected     Code = 500002
	LedgerUnavailable  Code = 500003
	StorageError       Code = 500004
	UnsupportedNetwork Code = 500005
)

var httpStatuses = map[Code]int{
	BadRequest:         http.StatusBadRequest,
	BadResponse:        http.StatusInternalServerError,
	NotFound:           http.StatusNotFound,
	AlreadyExists:      http.StatusConflict,
	Internal:           http.StatusInternalServerError,
	Unavailable:        http.StatusServiceUnavailable,
	NotImplemented:     http.StatusNotImplemented,
	TooManyRequests:    http.StatusTooManyRequests,
	TicketAlreadyTaken: http.StatusBadRequest,
	LedgerRejected:     http.StatusBadRequest,
	LedgerUnavailable:  http.StatusServiceUnavailable,
	StorageError:       http.StatusInternalServerError,
	UnsupportedNetwork: http.StatusBadRequest,
}
