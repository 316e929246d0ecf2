package nutrition

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrInvalidDate covers malformed dates, unknown timezones and
	// out-of-order ranges.
	ErrInvalidDate = errors.New("invalid date")
	// ErrIncompleteProfile means the biometrics needed for BMR are missing.
	ErrIncompleteProfile = errors.New("incomplete profile")
	ErrRangeTooLarge     = errors.New("range too large")

	ErrStorageTimeout     = errors.New("storage timeout")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStatsStale is returned alongside a committed mutation whose
	// daily aggregate could not be refreshed.
	ErrStatsStale = errors.New("saved but stats may be stale")
)

// ValidationError describes a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
