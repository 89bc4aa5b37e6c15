package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/winegraph/internal/domain"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var (
	errQueryFailed   = errors.New("query failed, try again")
	errQueryTimedOut = errors.New("query timed out, try again")
	errNotFound      = errors.New("no matching wines")
	errInternal      = errors.New("internal error")
)

// FromError maps a service error onto a status and a client-safe message.
// Store failures never carry their cause (or the request's query text) to the client.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var (
		ae *Error
		ce *domain.ConfigError
		qe *domain.QueryError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &ce):
		return New(http.StatusBadRequest, "invalid_argument", ce)
	case errors.Is(err, domain.ErrNotFound):
		return New(http.StatusNotFound, "not_found", errNotFound)
	case errors.As(err, &qe) && qe.Timeout:
		return New(http.StatusGatewayTimeout, "query_timeout", errQueryTimedOut)
	case errors.As(err, &qe):
		return New(http.StatusServiceUnavailable, "query_failed", errQueryFailed)
	default:
		return New(http.StatusInternalServerError, "internal", errInternal)
	}
}

// NotFound is the empty-result response.
func NotFound() *Error {
	return New(http.StatusNotFound, "not_found", errNotFound)
}
