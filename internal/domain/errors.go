package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateConditionID = errors.New("condition id already registered")
	ErrAlreadySettled       = errors.New("market already settled")
	ErrNotDue               = errors.New("market not yet due")
	ErrMarketClosed         = errors.New("market trading window closed")
	ErrAlreadySettledOnChain = errors.New("market already settled on chain")
	ErrNotYetSettleable     = errors.New("market not yet settleable")
	ErrLockHeld             = errors.New("lock already held")
	// ErrNoDecision is returned by a ResolveFunc that declines to judge a
	// market; the scanner leaves such markets due and moves on.
	ErrNoDecision = errors.New("no resolution decision")
)

// ValidationError reports a rejected input before any chain call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
