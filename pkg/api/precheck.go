package api

import (
	"context"
	"errors"
)

// PrecheckFunc is the body of a pre-check step: a read-only lookup that
// validates preconditions before any mutating step runs. It produces no
// compensation token.
//
// A pre-check signals the engine through its error value:
//   - NewNotFoundError terminates the run as a validation failure with
//     nothing to compensate;
//   - NewShortCircuit completes the run immediately with the carried value
//     as the result, skipping all remaining steps.
type PrecheckFunc func(ctx context.Context, rc *RunContext, input any) (any, error)

// Precheck builds a StepDefinition from a PrecheckFunc. The resulting step
// has no compensation and returns a nil token.
func Precheck(name string, fn PrecheckFunc) StepDefinition {
	return StepDefinition{
		Name: name,
		Invoke: func(ctx context.Context, rc *RunContext, input any) (any, any, error) {
			out, err := fn(ctx, rc, input)
			return out, nil, err
		},
	}
}

// notFoundError is returned by pre-check steps when a required related
// entity does not exist. The engine treats it as a validation failure.
type notFoundError struct {
	Resource string
}

func (e *notFoundError) Error() string {
	return e.Resource + " not found"
}

// NewNotFoundError signals that a pre-check could not find the named
// resource. The run fails without compensation, since nothing has been
// mutated yet.
func NewNotFoundError(resource string) error {
	return &notFoundError{Resource: resource}
}

// IsNotFoundError returns (resource, true) if err marks a failed pre-check
// lookup.
func IsNotFoundError(err error) (string, bool) {
	var nf *notFoundError
	if errors.As(err, &nf) {
		return nf.Resource, true
	}
	return "", false
}

// shortCircuitError is returned by pre-check steps whose condition is
// already satisfied, for example a deduplication lookup that found an
// existing row.
type shortCircuitError struct {
	Value any
}

func (e *shortCircuitError) Error() string {
	return "already satisfied"
}

// NewShortCircuit signals that the run's goal is already met. The engine
// succeeds immediately with value as the run output; remaining steps and
// the assemble function are never invoked.
func NewShortCircuit(value any) error {
	return &shortCircuitError{Value: value}
}

// IsShortCircuit returns (value, true) if err requests an early successful
// completion.
func IsShortCircuit(err error) (any, bool) {
	var sc *shortCircuitError
	if errors.As(err, &sc) {
		return sc.Value, true
	}
	return nil, false
}
