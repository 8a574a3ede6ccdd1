// Package apperr defines the domain error taxonomy shared by the stores, the
// game services and the HTTP handlers. Handlers translate a Kind into a
// status code; everything below the API layer returns these errors unchanged.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindBadRequest Kind = "BAD_REQUEST"
	KindForbidden  Kind = "FORBIDDEN"
	KindConflict   Kind = "CONFLICT"
	KindDatabase   Kind = "DATABASE_ERROR"
)

// Error is a domain error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.ErrNotFound)
// works for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrBadRequest = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrForbidden  = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrDatabase   = &Error{Kind: KindDatabase, Message: "database error"}
)

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Database wraps a driver error. A nil err produces an error describing a
// write that was expected to touch a row and did not.
func Database(err error, format string, args ...any) *Error {
	return &Error{Kind: KindDatabase, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or KindDatabase for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDatabase
}

// HTTPStatus maps err to a transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message of err. The wrapped driver error is
// never part of it.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
