package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidID       = errors.New("invalid id")
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("authentication failed")
	ErrForbidden       = errors.New("forbidden")
	ErrDependency      = errors.New("dependency unavailable")
	ErrConflict        = errors.New("conflict")
)

// ErrorKind names the error class reported to clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "authentication_error"
	case errors.Is(err, ErrForbidden):
		return "authorization_error"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidID):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "dependency_error"
	}
}
