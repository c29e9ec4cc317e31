package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBlobUnavailable    = errors.New("blob unavailable")
	ErrCompletionService  = errors.New("completion service error")
	ErrValidation         = errors.New("validation error")
	ErrForbidden          = errors.New("forbidden")
)

// WrapError keeps the semantic kind reachable through errors.Is while adding
// operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", operation, kind)
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
