package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a file type, file or session id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for disallowed deletes and duplicate commits.
	ErrConflict = errors.New("conflict")

	// ErrTypeHasFields is returned when deleting a type with attached
	// fields whose removal was not confirmed.
	ErrTypeHasFields = fmt.Errorf("file type has attached fields: %w", ErrConflict)

	// ErrTypeHasFiles is returned when deleting a type that committed
	// files still reference. Confirmation does not override it.
	ErrTypeHasFiles = fmt.Errorf("file type has committed files: %w", ErrConflict)

	// ErrAccessDenied is returned when the caller lacks the required permission.
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError reports bad or missing input. The caller should re-prompt.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a setup problem only an administrator can fix,
// such as no enabled file type accepting an uploaded MIME type.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// Misconfigured builds a ConfigurationError.
func Misconfigured(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
