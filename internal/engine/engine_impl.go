package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// engineImpl is a synchronous, in-process saga engine. A run lives exactly
// as long as the Run/Execute call that started it; the compensation token
// stack is never persisted.
type engineImpl struct {
	registry *sagaRegistry
	runs     persistence.RunStore
	events   persistence.EventStore
	observer api.Observer

	mu     sync.Mutex // only for nextID
	nextID int64
}

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Persistence persistence.Persistence
	Observer    api.Observer
}

func NewInMemoryEngine() api.Engine {
	return NewInMemoryEngineWithObserver(nil)
}

func NewInMemoryEngineWithObserver(obs api.Observer) api.Engine {
	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{
			Runs:   persistence.NewInMemoryRunStore(),
			Events: persistence.NewInMemoryEventStore(),
		},
		Observer: obs,
	})
}

func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	return NewSQLiteEngineWithObserver(db, nil)
}

func NewSQLiteEngineWithObserver(db *sql.DB, obs api.Observer) (api.Engine, error) {
	runs, err := persistence.NewSQLiteRunStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}

	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{
			Runs:   runs,
			Events: events,
		},
		Observer: obs,
	}), nil
}

// NewEngineWithConfig creates a new Engine using the given configuration.
// Missing stores fall back to in-memory (runs) and noop (events).
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	runs := cfg.Persistence.Runs
	if runs == nil {
		runs = persistence.NewInMemoryRunStore()
	}
	events := cfg.Persistence.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	return &engineImpl{
		registry: newSagaRegistry(),
		runs:     runs,
		events:   events,
		observer: obs,
	}
}

func (e *engineImpl) Register(def api.SagaDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return e.registry.Register(def)
}

func (e *engineImpl) Run(ctx context.Context, name string, input any, rc *api.RunContext) (*api.Run, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return e.exec(ctx, def, input, rc)
}

func (e *engineImpl) Execute(ctx context.Context, def api.SagaDefinition, input any, rc *api.RunContext) (*api.Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return e.exec(ctx, def, input, rc)
}

func (e *engineImpl) GetRun(ctx context.Context, id string) (*api.Run, error) {
	run, err := e.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, err
	}
	return run, nil
}

func (e *engineImpl) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	filter := persistence.RunFilter{
		Saga:   opts.Saga,
		Status: opts.Status,
	}
	return e.runs.ListRuns(filter)
}

func (e *engineImpl) History(ctx context.Context, runID string) ([]api.RunEvent, error) {
	return e.events.ListEvents(ctx, runID)
}

func (e *engineImpl) nextRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	return fmt.Sprintf("run-%d", e.nextID)
}

// compEntry pairs a completed step with the token its Invoke returned.
type compEntry struct {
	step  api.StepDefinition
	token any
}

// compFrame is one unit in the compensation stack: a single sequential step
// or all successful members of a parallel group. Frames unwind in reverse
// completion order; entries within a frame unwind in unspecified order.
type compFrame struct {
	entries []compEntry
}

func (e *engineImpl) exec(ctx context.Context, def api.SagaDefinition, input any, rc *api.RunContext) (*api.Run, error) {
	// The engine works on its own copy of the RunContext, so a caller may
	// share one across concurrent runs.
	if rc == nil {
		rc = &api.RunContext{}
	} else {
		cp := *rc
		rc = &cp
	}

	run := &api.Run{
		ID:        e.nextRunID(),
		Saga:      def.Name,
		Status:    api.StatusRunning,
		Input:     input,
		StartedAt: time.Now(),
	}
	rc.RunID = run.ID

	e.observer.OnRunStart(ctx, run)
	e.appendEvent(ctx, run, api.EventRunStarted, "", "")

	// Persist the run as soon as it starts.
	if err := e.runs.SaveRun(run); err != nil {
		run.Status = api.StatusFailed
		run.Err = err
		run.FinishedAt = time.Now()
		e.observer.OnRunFailed(ctx, run, err)
		return run, err
	}

	outputs := make(api.Outputs)
	var stack []compFrame
	current := input

	for i, node := range def.Nodes {
		// Cancellation is cooperative and checked between nodes; a step
		// already in flight always runs to resolution first.
		select {
		case <-ctx.Done():
			return e.fail(ctx, rc, run, node.Name(), ctx.Err(), stack)
		default:
		}

		run.CurrentNode = i
		_ = e.runs.UpdateRun(run)

		if node.Group != nil {
			next, frame, err := e.runGroup(ctx, rc, run, node.Group, current, outputs)
			if len(frame.entries) > 0 {
				// Successful members keep their tokens even when the
				// group as a whole fails.
				stack = append(stack, frame)
			}
			if err != nil {
				return e.fail(ctx, rc, run, node.Group.Name, err, stack)
			}
			current = next
			continue
		}

		step := *node.Step
		out, token, err := e.invokeStep(ctx, rc, run, step, current)
		if err != nil {
			if value, ok := api.IsShortCircuit(err); ok {
				return e.shortCircuit(ctx, run, step.Name, value)
			}
			return e.fail(ctx, rc, run, step.Name, err, stack)
		}

		outputs[step.Name] = out
		run.Completed = append(run.Completed, step.Name)
		stack = append(stack, compFrame{entries: []compEntry{{step: step, token: token}}})
		current = out
	}

	// A cancellation that landed while the final node was in flight is a
	// forced failure, not a success; it is honoured before Assemble runs.
	select {
	case <-ctx.Done():
		return e.fail(ctx, rc, run, "", ctx.Err(), stack)
	default:
	}

	result := current
	if def.Assemble != nil {
		res, err := safeAssemble(def.Assemble, outputs)
		if err != nil {
			return e.fail(ctx, rc, run, "", fmt.Errorf("assemble: %w", err), stack)
		}
		result = res
	} else if len(def.Nodes) == 0 {
		result = nil
	}

	run.Status = api.StatusSucceeded
	run.Output = result
	run.CurrentNode = len(def.Nodes)
	run.FinishedAt = time.Now()
	_ = e.runs.UpdateRun(run)
	e.appendEvent(ctx, run, api.EventRunSucceeded, "", "")
	e.observer.OnRunSucceeded(ctx, run)

	return run, nil
}

// invokeStep runs a single forward action with observer and history
// bookkeeping. Panics inside the step are converted to errors.
func (e *engineImpl) invokeStep(ctx context.Context, rc *api.RunContext, run *api.Run, step api.StepDefinition, input any) (any, any, error) {
	e.observer.OnStepStart(ctx, run, step.Name)
	e.appendEvent(ctx, run, api.EventStepStarted, step.Name, "")

	start := time.Now()
	out, token, err := safeInvoke(ctx, rc, step, input)
	duration := time.Since(start)

	e.observer.OnStepCompleted(ctx, run, step.Name, err, duration)

	switch {
	case err == nil:
		e.appendEvent(ctx, run, api.EventStepSucceeded, step.Name, "")
	default:
		if _, sc := api.IsShortCircuit(err); !sc {
			e.appendEvent(ctx, run, api.EventStepFailed, step.Name, err.Error())
		}
	}

	return out, token, err
}

// groupResult carries one parallel member's outcome back to the
// coordinating goroutine.
type groupResult struct {
	out      any
	token    any
	err      error
	duration time.Duration
}

// runGroup fans the group's members out on their own goroutines and waits
// for all of them, success or failure, before deciding the group outcome.
// The returned frame holds every member that succeeded. Run-record and
// observer bookkeeping happens on the coordinating goroutine only.
func (e *engineImpl) runGroup(ctx context.Context, rc *api.RunContext, run *api.Run, g *api.ParallelGroup, input any, outputs api.Outputs) (any, compFrame, error) {
	for _, step := range g.Steps {
		e.observer.OnStepStart(ctx, run, step.Name)
		e.appendEvent(ctx, run, api.EventStepStarted, step.Name, "")
	}

	results := make([]groupResult, len(g.Steps))
	var wg sync.WaitGroup
	wg.Add(len(g.Steps))
	for i := range g.Steps {
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			out, token, err := safeInvoke(ctx, rc, g.Steps[i], input)
			results[i] = groupResult{out: out, token: token, err: err, duration: time.Since(start)}
		}(i)
	}
	wg.Wait()

	var (
		frame    compFrame
		firstErr error
	)
	groupOut := make(map[string]any, len(g.Steps))

	for i, res := range results {
		step := g.Steps[i]
		e.observer.OnStepCompleted(ctx, run, step.Name, res.err, res.duration)

		if res.err != nil {
			e.appendEvent(ctx, run, api.EventStepFailed, step.Name, res.err.Error())
			if firstErr == nil {
				firstErr = fmt.Errorf("step %q: %w", step.Name, res.err)
			}
			continue
		}

		e.appendEvent(ctx, run, api.EventStepSucceeded, step.Name, "")
		outputs[step.Name] = res.out
		run.Completed = append(run.Completed, step.Name)
		groupOut[step.Name] = res.out
		frame.entries = append(frame.entries, compEntry{step: step, token: res.token})
	}

	if firstErr != nil {
		return nil, frame, firstErr
	}
	return groupOut, frame, nil
}

// shortCircuit completes the run immediately with the value carried by a
// pre-check's short-circuit signal. Remaining steps and Assemble never run.
func (e *engineImpl) shortCircuit(ctx context.Context, run *api.Run, stepName string, value any) (*api.Run, error) {
	run.Status = api.StatusSucceeded
	run.Output = value
	run.FinishedAt = time.Now()
	_ = e.runs.UpdateRun(run)
	e.appendEvent(ctx, run, api.EventRunShortCircuited, stepName, "")
	e.observer.OnRunSucceeded(ctx, run)
	return run, nil
}

// fail drives the compensation walk and produces the run's terminal state.
//
// The walk visits the stack in reverse completion order. Every entry is
// attempted: a failed compensation is recorded and the walk continues to
// the next (earlier) entry. Entries with no CompensateFunc or a nil token
// are recorded as skipped.
func (e *engineImpl) fail(ctx context.Context, rc *api.RunContext, run *api.Run, stepName string, cause error, stack []compFrame) (*api.Run, error) {
	run.Status = api.StatusFailed
	run.Err = cause
	_ = e.runs.UpdateRun(run)
	e.appendEvent(ctx, run, api.EventRunFailed, stepName, cause.Error())

	kind := api.KindStep
	if _, ok := api.IsNotFoundError(cause); ok {
		kind = api.KindValidation
	}

	var compErrs []api.CompensationError
	if len(stack) > 0 {
		run.Status = api.StatusCompensating
		_ = e.runs.UpdateRun(run)
		e.observer.OnCompensationStart(ctx, run, cause)

		for i := len(stack) - 1; i >= 0; i-- {
			for _, entry := range stack[i].entries {
				res := api.CompensationResult{Step: entry.step.Name}
				if entry.step.Compensate == nil || entry.token == nil {
					res.Skipped = true
				} else {
					res.Err = safeCompensate(ctx, rc, entry.step, entry.token)
				}

				run.Compensations = append(run.Compensations, res)
				e.observer.OnStepCompensated(ctx, run, res)
				if !res.Skipped {
					detail := ""
					if res.Err != nil {
						detail = res.Err.Error()
					}
					e.appendEvent(ctx, run, api.EventStepCompensated, res.Step, detail)
				}
				if res.Err != nil {
					compErrs = append(compErrs, api.CompensationError{Step: res.Step, Err: res.Err})
				}
			}
		}

		if len(compErrs) == 0 {
			run.Status = api.StatusCompensated
			e.appendEvent(ctx, run, api.EventRunCompensated, "", "")
		} else {
			run.Status = api.StatusCompensationFailed
			kind = api.KindCompensation
			e.appendEvent(ctx, run, api.EventRunCompensationFailed, "",
				fmt.Sprintf("%d compensation(s) failed", len(compErrs)))
		}
	}

	failure := &api.Failure{
		Saga:         run.Saga,
		Step:         stepName,
		Kind:         kind,
		Status:       run.Status,
		Cause:        cause,
		Compensation: compErrs,
	}
	run.Err = failure
	run.FinishedAt = time.Now()
	_ = e.runs.UpdateRun(run)
	e.observer.OnRunFailed(ctx, run, failure)

	return run, failure
}

func (e *engineImpl) appendEvent(ctx context.Context, run *api.Run, typ api.EventType, step, detail string) {
	// History is best-effort; a failing event store must not fail the run.
	_ = e.events.AppendEvent(ctx, api.RunEvent{
		RunID:  run.ID,
		At:     time.Now(),
		Type:   typ,
		Saga:   run.Saga,
		Step:   step,
		Detail: detail,
	})
}

func safeInvoke(ctx context.Context, rc *api.RunContext, step api.StepDefinition, input any) (out any, token any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, token = nil, nil
			err = fmt.Errorf("step %q panicked: %v", step.Name, r)
		}
	}()
	return step.Invoke(ctx, rc, input)
}

func safeCompensate(ctx context.Context, rc *api.RunContext, step api.StepDefinition, token any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compensation for %q panicked: %v", step.Name, r)
		}
	}()
	return step.Compensate(ctx, rc, token)
}

func safeAssemble(fn api.AssembleFunc, outputs api.Outputs) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return fn(outputs)
}
