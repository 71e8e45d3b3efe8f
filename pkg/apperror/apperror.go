package apperror

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNetwork      = errors.New("network failure")
	// ErrConflict is reserved for optimistic locking; nothing returns it yet.
	ErrConflict = errors.New("conflict")
	// ErrSuperseded marks a result that arrived after a newer request for the
	// same view was issued. Such results are dropped without a notice.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// ValidationError represents a missing or malformed field, detected before any
// repository call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Kind names the taxonomy bucket of err for log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrInvalidInput):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return "network"
	default:
		return "internal"
	}
}

// Retryable reports whether repeating the same request could succeed.
func Retryable(err error) bool {
	switch Kind(err) {
	case "network", "internal", "conflict":
		return true
	}
	return false
}
