package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a referenced entity, edge or timeline record that does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports user-supplied input that failed a validation check.
// It always names the offending field and value so callers can surface it as-is.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation failed for %s (%s): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IntegrityError reports a data-corruption state, such as a check with no
// executable group. It is surfaced as an internal error, never retried.
type IntegrityError struct {
	Message string
}

func (e *IntegrityError) Error() string {
	return e.Message
}

// NewIntegrityError builds an IntegrityError with the given message.
func NewIntegrityError(format string, args ...any) *IntegrityError {
	return &IntegrityError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
