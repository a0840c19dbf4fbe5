package api

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies why a run failed.
type FailureKind string

const (
	// KindValidation: the input was rejected before any mutation, typically
	// by a pre-check returning a not-found error. Nothing happened.
	KindValidation FailureKind = "VALIDATION"

	// KindStep: a step's forward action failed. Completed steps were
	// compensated (see Failure.Compensation for whether that fully worked).
	KindStep FailureKind = "STEP"

	// KindCompensation: a step failed and at least one compensation also
	// failed, so the system may be left partially applied. This is the most
	// severe outcome and warrants operator attention.
	KindCompensation FailureKind = "COMPENSATION"
)

// CompensationError records one compensation that could not be undone.
type CompensationError struct {
	Step string
	Err  error
}

func (e CompensationError) Error() string {
	return fmt.Sprintf("compensate %q: %v", e.Step, e.Err)
}

func (e CompensationError) Unwrap() error { return e.Err }

// Failure is the error returned for any run that did not succeed. It
// carries the original triggering error, the run's terminal status, and,
// when compensation itself failed, the steps that could not be undone.
type Failure struct {
	Saga   string
	Step   string
	Kind   FailureKind
	Status Status
	Cause  error

	// Compensation lists the compensations that failed during the unwind.
	// Empty unless Kind is KindCompensation.
	Compensation []CompensationError
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga %q", f.Saga)
	if f.Step != "" {
		fmt.Fprintf(&b, " step %q", f.Step)
	}
	fmt.Fprintf(&b, " failed: %v", f.Cause)
	if len(f.Compensation) > 0 {
		fmt.Fprintf(&b, " (%d compensation(s) also failed:", len(f.Compensation))
		for _, ce := range f.Compensation {
			fmt.Fprintf(&b, " %v;", ce)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the original triggering error so callers can use
// errors.Is / errors.As against their own sentinel errors.
func (f *Failure) Unwrap() error { return f.Cause }

// AsFailure extracts a *Failure from err, if present.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
