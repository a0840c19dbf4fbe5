package unwind

import (
	"context"
	"fmt"

	"github.com/okarhu/unwind/pkg/api"
)

// NewStep builds a StepDefinition directly. Mostly useful for members of a
// Parallel group; sequential steps are usually added via SagaBuilder.Step.
func NewStep(name string, invoke InvokeFunc, compensate CompensateFunc) StepDefinition {
	return api.StepDefinition{
		Name:       name,
		Invoke:     invoke,
		Compensate: compensate,
	}
}

// PureStep wraps a side-effect-free computation as an InvokeFunc. The step
// produces a nil token, so compensation is always skipped for it.
func PureStep(fn func(ctx context.Context, rc *RunContext, input any) (any, error)) InvokeFunc {
	return func(ctx context.Context, rc *RunContext, input any) (any, any, error) {
		out, err := fn(ctx, rc, input)
		return out, nil, err
	}
}

// LookupFunc is a read-only lookup used by the pre-check helpers. It
// returns the resource and whether it exists.
type LookupFunc func(ctx context.Context, rc *RunContext, input any) (any, bool, error)

// DedupCheck builds a pre-check body for the check-then-create pattern: if
// the lookup finds an existing resource, the run short-circuits to success
// with that resource as its result and no later step runs.
//
// The check-then-create window is not closed here: two concurrent runs can
// both observe "not exists" before either create lands. Uniqueness must be
// enforced by the storage layer the create step talks to.
func DedupCheck(lookup LookupFunc) PrecheckFunc {
	return func(ctx context.Context, rc *RunContext, input any) (any, error) {
		existing, found, err := lookup(ctx, rc, input)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, NewShortCircuit(existing)
		}
		return input, nil
	}
}

// RequireCheck builds a pre-check body that fails the run with a
// validation (not-found) outcome when the lookup finds nothing. On success
// the found resource becomes the step's output.
func RequireCheck(resource string, lookup LookupFunc) PrecheckFunc {
	return func(ctx context.Context, rc *RunContext, input any) (any, error) {
		found, ok, err := lookup(ctx, rc, input)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewNotFoundError(resource)
		}
		return found, nil
	}
}

// TypedInvoke wraps a strongly-typed forward action into an InvokeFunc.
// Example:
//
//	unwind.TypedInvoke(func(ctx context.Context, rc *unwind.RunContext, in CreateBrand) (Brand, string, error) { ... })
func TypedInvoke[I, O, T any](fn func(ctx context.Context, rc *RunContext, in I) (O, T, error)) InvokeFunc {
	return func(ctx context.Context, rc *RunContext, input any) (any, any, error) {
		in, ok := input.(I)
		if !ok {
			var want I
			return nil, nil, fmt.Errorf("unwind: expected input %T, got %T", want, input)
		}
		out, token, err := fn(ctx, rc, in)
		if err != nil {
			return nil, nil, err
		}
		return out, token, nil
	}
}

// TypedCompensate wraps a strongly-typed compensating action into a
// CompensateFunc. The token type must match what the paired TypedInvoke
// returned.
func TypedCompensate[T any](fn func(ctx context.Context, rc *RunContext, token T) error) CompensateFunc {
	return func(ctx context.Context, rc *RunContext, token any) error {
		tok, ok := token.(T)
		if !ok {
			var want T
			return fmt.Errorf("unwind: expected token %T, got %T", want, token)
		}
		return fn(ctx, rc, tok)
	}
}

// TypedPrecheck wraps a strongly-typed pre-check body into a PrecheckFunc.
func TypedPrecheck[I any](fn func(ctx context.Context, rc *RunContext, in I) (any, error)) PrecheckFunc {
	return func(ctx context.Context, rc *RunContext, input any) (any, error) {
		in, ok := input.(I)
		if !ok {
			var want I
			return nil, fmt.Errorf("unwind: expected input %T, got %T", want, input)
		}
		return fn(ctx, rc, in)
	}
}
