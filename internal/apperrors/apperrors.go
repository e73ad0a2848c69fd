package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidRequest marks a malformed request or an unknown reference.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConflict marks a lost race or a state that forbids the operation.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition marks a status change off the booking state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnmatched means no technician could be found before the deadline.
	ErrUnmatched    = errors.New("no technician available at this moment")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// HTTPStatus maps an error chain to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnmatched):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
