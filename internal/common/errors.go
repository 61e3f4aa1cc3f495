// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// OutcomeUnknownError marks a failed ledger mutation whose underlying outcome
// is undetermined: the submission may or may not have landed. Callers must
// reconcile via a status read before retrying, never retry blind.
type OutcomeUnknownError struct {
	Err error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("outcome unknown: %v", e.Err)
}

func (e *OutcomeUnknownError) Unwrap() error {
	return e.Err
}

// OutcomeUnknown wraps err as an undetermined-outcome failure.
func OutcomeUnknown(err error) error {
	if err == nil {
		return nil
	}
	return &OutcomeUnknownError{Err: err}
}

// IsOutcomeUnknown reports whether err carries the undetermined-outcome marker.
func IsOutcomeUnknown(err error) bool {
	var ue *OutcomeUnknownError
	return errors.As(err, &ue)
}
