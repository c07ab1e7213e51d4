package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Business failures (ErrAlreadyProcessed, ErrIneligible)
// are expected outcomes under concurrency and carry displayable reasons;
// ErrInvariant marks data-integrity problems and is always fatal to the
// operation.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrIneligible       = errors.New("not eligible")
	ErrInvariant        = errors.New("invariant violation")
	ErrTransient        = errors.New("transient storage failure")
)

// Reason identifies why a collection attempt did not proceed. The caller
// UI renders these directly, so every failure path must carry one.
type Reason string

const (
	ReasonEligible         Reason = "eligible"
	ReasonAlreadyCollected Reason = "already_collected"
	ReasonDayNotReached    Reason = "day_not_reached"
	ReasonQuotaUnmet       Reason = "quota_unmet"
	ReasonNothingToCollect Reason = "nothing_to_collect"
)

// IneligibleError wraps ErrIneligible with the specific predicate that
// failed.
type IneligibleError struct {
	Reason Reason
	Detail string
}

func (e *IneligibleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("not eligible: %s", e.Reason)
	}
	return fmt.Sprintf("not eligible: %s (%s)", e.Reason, e.Detail)
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }

// Ineligible builds an IneligibleError.
func Ineligible(reason Reason, detail string) error {
	return &IneligibleError{Reason: reason, Detail: detail}
}

// InvariantErr wraps ErrInvariant with context.
func InvariantErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
