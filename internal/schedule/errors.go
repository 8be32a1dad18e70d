package schedule

import (
	"errors"
	"fmt"
)

// Rejection kinds
var (
	ErrValidation          = errors.New("validation error")
	ErrConstraintViolation = errors.New("constraint violation")
)

// RejectionError explains why a build or edit was refused. The Plan is never
// mutated when one is returned.
type RejectionError struct {
	Kind   error
	Field  string
	Index  int
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: cuota %d %s: %s", e.Kind, e.Index+1, e.Field, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Kind
}

func validation(index int, field, format string, args ...any) error {
	return &RejectionError{Kind: ErrValidation, Field: field, Index: index, Reason: fmt.Sprintf(format, args...)}
}

func violation(index int, field, format string, args ...any) error {
	return &RejectionError{Kind: ErrConstraintViolation, Field: field, Index: index, Reason: fmt.Sprintf(format, args...)}
}
