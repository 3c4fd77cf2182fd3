package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("invalid id")
	ErrValidation        = errors.New("validation error")
	ErrDuplicate         = errors.New("already exists")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
)

// StatusCode maps a service error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
