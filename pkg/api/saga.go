package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a saga run.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusSucceeded    Status = "SUCCEEDED"
	StatusFailed       Status = "FAILED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"

	// StatusCompensationFailed marks a run whose forward execution failed
	// and whose compensation walk could not fully undo the completed steps.
	// Runs in this state may have left partial effects behind and should be
	// surfaced to an operator rather than silently swallowed.
	StatusCompensationFailed Status = "COMPENSATION_FAILED"
)

// Terminal reports whether s is a terminal run status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCompensated, StatusCompensationFailed:
		return true
	}
	return false
}

// Outputs maps step names to the output each step's Invoke produced.
// It is handed to AssembleFunc once every step has completed.
type Outputs map[string]any

// InvokeFunc is the forward action of a step.
//
// input is the previous node's output (the run input for the first node).
// The returned token is opaque to the engine: it is recorded only on
// success and handed back to the step's CompensateFunc during an unwind.
// A nil token means the step has no effect to undo.
type InvokeFunc func(ctx context.Context, rc *RunContext, input any) (output any, token any, err error)

// CompensateFunc undoes the effect of a previously successful Invoke.
// It receives the token that Invoke returned.
type CompensateFunc func(ctx context.Context, rc *RunContext, token any) error

// AssembleFunc maps the collected step outputs to the run's final result.
type AssembleFunc func(outputs Outputs) (any, error)

// StepDefinition describes a named step: a forward action and an optional
// compensating action. Steps are stateless and reusable across runs; the
// compensation token is run-scoped.
type StepDefinition struct {
	Name       string
	Invoke     InvokeFunc
	Compensate CompensateFunc
}

// ParallelGroup is a set of steps with no data dependency on one another.
// Members execute concurrently; the engine waits for all of them to finish
// before deciding the group outcome. For compensation ordering the group is
// one unit: all members are compensated together, in unspecified order
// within the group, before the walk steps further back.
type ParallelGroup struct {
	Name  string
	Steps []StepDefinition
}

// Node is one entry in a saga's declared sequence: either a single step or
// a parallel group. Exactly one of the two fields is set.
type Node struct {
	Step  *StepDefinition
	Group *ParallelGroup
}

// Name returns the step or group name of the node.
func (n Node) Name() string {
	if n.Group != nil {
		return n.Group.Name
	}
	if n.Step != nil {
		return n.Step.Name
	}
	return ""
}

// SagaDefinition describes a saga as an ordered sequence of nodes plus an
// optional result-assembly function. Definitions are immutable once
// registered with an engine.
type SagaDefinition struct {
	Name     string
	Nodes    []Node
	Assemble AssembleFunc
}

// Validate checks structural invariants: a non-empty saga name, non-empty
// unique step names, and an Invoke on every step. A saga with zero nodes is
// valid and succeeds trivially.
func (d SagaDefinition) Validate() error {
	if d.Name == "" {
		return errors.New("saga name is required")
	}

	seen := make(map[string]struct{})
	check := func(s StepDefinition) error {
		if s.Name == "" {
			return fmt.Errorf("saga %q: step name is required", d.Name)
		}
		if s.Invoke == nil {
			return fmt.Errorf("saga %q: step %q has no Invoke", d.Name, s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("saga %q: duplicate step name %q", d.Name, s.Name)
		}
		seen[s.Name] = struct{}{}
		return nil
	}

	for _, n := range d.Nodes {
		switch {
		case n.Step != nil && n.Group != nil:
			return fmt.Errorf("saga %q: node %q is both step and group", d.Name, n.Name())
		case n.Step != nil:
			if err := check(*n.Step); err != nil {
				return err
			}
		case n.Group != nil:
			if n.Group.Name == "" {
				return fmt.Errorf("saga %q: group name is required", d.Name)
			}
			if len(n.Group.Steps) == 0 {
				return fmt.Errorf("saga %q: group %q has no steps", d.Name, n.Group.Name)
			}
			for _, s := range n.Group.Steps {
				if err := check(s); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("saga %q: empty node", d.Name)
		}
	}
	return nil
}

// CompensationResult records the outcome of one compensation attempt during
// an unwind, in the order the attempts were made.
type CompensationResult struct {
	Step string

	// Skipped is true when the step had no compensation to run: either no
	// CompensateFunc was declared or Invoke produced a nil token.
	Skipped bool

	// Err holds the compensation failure, if any. A non-nil Err does not
	// stop the walk; it is aggregated into the run's final Failure.
	Err error
}

// Run holds the record of one saga invocation.
//
// The engine mutates the record as the run progresses and persists each
// transition to the configured RunStore. The compensation token stack is
// deliberately not part of the record: tokens live only on the call stack
// of the invocation that produced them.
type Run struct {
	ID     string
	Saga   string
	Status Status
	Input  any
	Output any
	Err    error

	// CurrentNode tracks progress through the saga's declared nodes.
	// Before any node runs it is 0; after a successful run it equals the
	// node count; on failure it is the index of the failing node.
	CurrentNode int

	// Completed lists the names of steps whose Invoke succeeded, in
	// completion order. It is the authoritative record of what was (or
	// had to be) compensated.
	Completed []string

	// Compensations records the unwind, if one ran.
	Compensations []CompensationResult

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunListOptions controls how runs are listed.
// Zero values mean "no filter" for that field.
type RunListOptions struct {
	// Saga, if non-empty, limits results to runs of the given saga.
	Saga string

	// Status, if non-empty, limits results to runs with the given status.
	Status Status
}
