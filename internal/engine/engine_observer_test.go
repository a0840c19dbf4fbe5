package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okarhu/unwind/pkg/api"
)

// recordingObserver appends callback names in invocation order.
type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, name)
}

func (o *recordingObserver) OnRunStart(ctx context.Context, run *api.Run)     { o.record("run_start") }
func (o *recordingObserver) OnRunSucceeded(ctx context.Context, run *api.Run) { o.record("run_succeeded") }
func (o *recordingObserver) OnRunFailed(ctx context.Context, run *api.Run, err error) {
	o.record("run_failed")
}
func (o *recordingObserver) OnStepStart(ctx context.Context, run *api.Run, stepName string) {
	o.record("step_start:" + stepName)
}
func (o *recordingObserver) OnStepCompleted(ctx context.Context, run *api.Run, stepName string, err error, d time.Duration) {
	o.record("step_completed:" + stepName)
}
func (o *recordingObserver) OnCompensationStart(ctx context.Context, run *api.Run, cause error) {
	o.record("compensation_start")
}
func (o *recordingObserver) OnStepCompensated(ctx context.Context, run *api.Run, res api.CompensationResult) {
	o.record("step_compensated:" + res.Step)
}

func TestObserverSeesFullFailureLifecycle(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	eng := NewInMemoryEngineWithObserver(obs)

	def := api.SagaDefinition{
		Name: "observed",
		Nodes: []api.Node{
			step("create",
				func(ctx context.Context, rc *api.RunContext, input any) (any, any, error) {
					return nil, "tok", nil
				},
				func(ctx context.Context, rc *api.RunContext, token any) error { return nil },
			),
			step("fail",
				func(ctx context.Context, rc *api.RunContext, input any) (any, any, error) {
					return nil, nil, errors.New("boom")
				},
				nil,
			),
		},
	}

	if _, err := eng.Execute(ctx, def, nil, nil); err == nil {
		t.Fatal("expected error, got nil")
	}

	want := []string{
		"run_start",
		"step_start:create",
		"step_completed:create",
		"step_start:fail",
		"step_completed:fail",
		"compensation_start",
		"step_compensated:create",
		"run_failed",
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.calls) != len(want) {
		t.Fatalf("expected %d callbacks, got %v", len(want), obs.calls)
	}
	for i, call := range obs.calls {
		if call != want[i] {
			t.Fatalf("callback %d: expected %q, got %q", i, want[i], call)
		}
	}
}

func TestBasicMetricsCountsCompensations(t *testing.T) {
	ctx := context.Background()
	metrics := &api.BasicMetrics{}
	eng := NewInMemoryEngineWithObserver(metrics)

	ok := api.SagaDefinition{
		Name: "fine",
		Nodes: []api.Node{
			step("a", func(ctx context.Context, rc *api.RunContext, input any) (any, any, error) {
				return nil, nil, nil
			}, nil),
		},
	}
	bad := api.SagaDefinition{
		Name: "broken",
		Nodes: []api.Node{
			step("create",
				func(ctx context.Context, rc *api.RunContext, input any) (any, any, error) {
					return nil, "tok", nil
				},
				func(ctx context.Context, rc *api.RunContext, token any) error { return nil },
			),
			step("fail",
				func(ctx context.Context, rc *api.RunContext, input any) (any, any, error) {
					return nil, nil, errors.New("boom")
				},
				nil,
			),
		},
	}

	if _, err := eng.Execute(ctx, ok, nil, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := eng.Execute(ctx, bad, nil, nil); err == nil {
		t.Fatal("expected failure")
	}

	snap := metrics.Snapshot()
	if snap.RunsStarted != 2 || snap.RunsSucceeded != 1 || snap.RunsFailed != 1 {
		t.Fatalf("unexpected run counters: %+v", snap)
	}
	if snap.RunsCompensated != 1 {
		t.Fatalf("expected 1 compensated run, got %d", snap.RunsCompensated)
	}
	if snap.CompensationsRun != 1 || snap.CompensationsFailed != 0 {
		t.Fatalf("unexpected compensation counters: %+v", snap)
	}
	if snap.PendingRuns != 0 {
		t.Fatalf("expected no pending runs, got %d", snap.PendingRuns)
	}
}
