package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the saga engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay saga execution.
type Observer interface {
	// OnRunStart is called once when a run is first started, before the
	// first step is executed.
	OnRunStart(ctx context.Context, run *Run)

	// OnRunSucceeded is called when a run reaches StatusSucceeded,
	// including short-circuited runs.
	OnRunSucceeded(ctx context.Context, run *Run)

	// OnRunFailed is called when a run reaches any failed terminal status
	// (StatusFailed, StatusCompensated, StatusCompensationFailed).
	OnRunFailed(ctx context.Context, run *Run, err error)

	// OnStepStart is called before invoking a step's forward action.
	OnStepStart(ctx context.Context, run *Run, stepName string)

	// OnStepCompleted is called after a forward action returns, for both
	// successes and failures (err != nil).
	OnStepCompleted(ctx context.Context, run *Run, stepName string, err error, duration time.Duration)

	// OnCompensationStart is called once before the compensation walk
	// begins, after the triggering failure has been recorded.
	OnCompensationStart(ctx context.Context, run *Run, cause error)

	// OnStepCompensated is called after each compensation attempt,
	// including skipped ones (no compensation declared, or nil token).
	OnStepCompensated(ctx context.Context, run *Run, res CompensationResult)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, run *Run)                   {}
func (NoopObserver) OnRunSucceeded(ctx context.Context, run *Run)               {}
func (NoopObserver) OnRunFailed(ctx context.Context, run *Run, err error)       {}
func (NoopObserver) OnStepStart(ctx context.Context, run *Run, stepName string) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, run *Run, stepName string, err error, d time.Duration) {
}
func (NoopObserver) OnCompensationStart(ctx context.Context, run *Run, cause error)          {}
func (NoopObserver) OnStepCompensated(ctx context.Context, run *Run, res CompensationResult) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, run *Run) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, run)
	}
}

func (c *CompositeObserver) OnRunSucceeded(ctx context.Context, run *Run) {
	for _, o := range c.observers {
		o.OnRunSucceeded(ctx, run)
	}
}

func (c *CompositeObserver) OnRunFailed(ctx context.Context, run *Run, err error) {
	for _, o := range c.observers {
		o.OnRunFailed(ctx, run, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, run *Run, stepName string) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, run, stepName)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, run *Run, stepName string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, run, stepName, err, d)
	}
}

func (c *CompositeObserver) OnCompensationStart(ctx context.Context, run *Run, cause error) {
	for _, o := range c.observers {
		o.OnCompensationStart(ctx, run, cause)
	}
}

func (c *CompositeObserver) OnStepCompensated(ctx context.Context, run *Run, res CompensationResult) {
	for _, o := range c.observers {
		o.OnStepCompensated(ctx, run, res)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, run *Run) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
	)
}

func (o *LoggingObserver) OnRunSucceeded(ctx context.Context, run *Run) {
	o.Logger.InfoContext(ctx, "run_succeeded",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
	)
}

func (o *LoggingObserver) OnRunFailed(ctx context.Context, run *Run, err error) {
	o.Logger.ErrorContext(ctx, "run_failed",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, run *Run, stepName string) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
		slog.String("step", stepName),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, run *Run, stepName string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
		slog.String("step", stepName),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnCompensationStart(ctx context.Context, run *Run, cause error) {
	o.Logger.WarnContext(ctx, "compensation_start",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
		slog.Int("completed_steps", len(run.Completed)),
		slog.Any("cause", cause),
	)
}

func (o *LoggingObserver) OnStepCompensated(ctx context.Context, run *Run, res CompensationResult) {
	level := slog.LevelDebug
	if res.Err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_compensated",
		slog.String("saga", run.Saga),
		slog.String("run_id", run.ID),
		slog.String("step", res.Step),
		slog.Bool("skipped", res.Skipped),
		slog.Any("error", res.Err),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted       atomic.Int64
	runsSucceeded     atomic.Int64
	runsFailed        atomic.Int64
	runsCompensated   atomic.Int64
	stepsCompleted    atomic.Int64
	compensationsRun  atomic.Int64
	compensationsFail atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted     int64
	RunsSucceeded   int64
	RunsFailed      int64
	RunsCompensated int64
	PendingRuns     int64

	StepsCompleted      int64
	CompensationsRun    int64
	CompensationsFailed int64
	AvgStepDuration     time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, run *Run) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunSucceeded(ctx context.Context, run *Run) {
	m.runsSucceeded.Add(1)
}

func (m *BasicMetrics) OnRunFailed(ctx context.Context, run *Run, err error) {
	m.runsFailed.Add(1)
	if run.Status == StatusCompensated {
		m.runsCompensated.Add(1)
	}
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, run *Run, stepName string, err error, d time.Duration) {
	// Only count successful steps for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

func (m *BasicMetrics) OnStepCompensated(ctx context.Context, run *Run, res CompensationResult) {
	if res.Skipped {
		return
	}
	m.compensationsRun.Add(1)
	if res.Err != nil {
		m.compensationsFail.Add(1)
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	succeeded := m.runsSucceeded.Load()
	failed := m.runsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		RunsStarted:         started,
		RunsSucceeded:       succeeded,
		RunsFailed:          failed,
		RunsCompensated:     m.runsCompensated.Load(),
		PendingRuns:         started - succeeded - failed,
		StepsCompleted:      steps,
		CompensationsRun:    m.compensationsRun.Load(),
		CompensationsFailed: m.compensationsFail.Load(),
		AvgStepDuration:     avg,
	}
}
