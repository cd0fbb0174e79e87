// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Services wrap failures in one of the sentinel kinds; handlers
// derive the wire status from the kind without inspecting message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Check with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("unprocessable input")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
)

// Error pairs a sentinel kind with a caller-facing message.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// New creates an error of the given kind.
func New(kind error, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Status maps an error to its HTTP status code. Unrecognized errors are
// internal server errors.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
