package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
)

// ErrNotFound the referenced entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict the operation conflicts with the stored state
var ErrConflict = errors.New("conflict")

// ErrAttemptClosed a closed attempt can not be submitted again
var ErrAttemptClosed = NewConflictError("quiz attempt is already closed")

// ValidationError malformed or out-of-range input, rejected before any write
type ValidationError struct {
	Fields []*validate.FieldError
}

// NewValidationError wrap field errors
func NewValidationError(fields ...*validate.FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (ve *ValidationError) Error() string {
	reasons := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		reasons = append(reasons, f.Reason)
	}
	return "validation failed: " + strings.Join(reasons, "; ")
}

// NewNotFoundError entity with id does not exist, matches ErrNotFound
func NewNotFoundError(entity, id string) error {
	return fmt.Errorf("%s %q %w", entity, id, ErrNotFound)
}

// NewConflictError matches ErrConflict
func NewConflictError(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}

// IsNotFound shorthand of errors.Is(err, ErrNotFound)
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
