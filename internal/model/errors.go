package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist or does not
	// belong to the caller's owner scope. Ownership mismatches are
	// deliberately indistinguishable from nonexistence.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned for tier changes that violate the
	// stm -> itm -> ltm ordering, or for transitions on archived or
	// soft-deleted records.
	ErrInvalidTransition = errors.New("invalid tier transition")

	// ErrUnavailable is returned when the embedding backend or the
	// durable store cannot be reached within its timeout. Retryable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrRunIncomplete marks a distillation run that ran out of its
	// wall-clock budget. The run resumes from its checkpoint next time.
	ErrRunIncomplete = errors.New("distillation run incomplete")
)

// ValidationError describes malformed input rejected before any write.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
