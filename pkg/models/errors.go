package models

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEmployee = errors.New("employee is required")
	ErrMissingBranch   = errors.New("branch is required")
	ErrMissingTime     = errors.New("time is required")
	ErrInvalidTime     = errors.New("invalid time")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInactive        = errors.New("employee is inactive")
	ErrNotFound        = errors.New("not found")
	ErrSlotRange       = errors.New("template slot out of range")
	ErrEmptyStops      = errors.New("no stops")
	ErrDuplicateStop   = errors.New("duplicate stop")
	ErrSameTemplate    = errors.New("source and target template are the same")
	ErrJobCompleted    = errors.New("job already completed")
)

// ValidationError is a caller mistake. Nothing was mutated when one is returned.
type ValidationError struct {
	Kind error
	Msg  string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Invalid builds a ValidationError of the given kind
func Invalid(kind error, format string, args ...any) error {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
