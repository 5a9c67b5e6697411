package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input. No state is mutated when one is returned.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Invalid builds a ValidationError for callers outside the domain package.
func Invalid(field, reason string) error {
	return invalid(field, reason)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	// ErrControllerClosed is returned by operations on a destroyed map control.
	ErrControllerClosed = errors.New("map control closed")

	// ErrAreaNotFound is returned when an event area does not exist.
	ErrAreaNotFound = errors.New("event area not found")
)
