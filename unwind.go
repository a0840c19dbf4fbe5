package unwind

import (
	"context"
	"database/sql"

	"github.com/okarhu/unwind/internal/engine"
	"github.com/okarhu/unwind/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	SagaDefinition       = api.SagaDefinition
	StepDefinition       = api.StepDefinition
	ParallelGroup        = api.ParallelGroup
	Node                 = api.Node
	Run                  = api.Run
	RunListOptions       = api.RunListOptions
	RunContext           = api.RunContext
	RunEvent             = api.RunEvent
	EventType            = api.EventType
	Status               = api.Status
	Outputs              = api.Outputs
	InvokeFunc           = api.InvokeFunc
	CompensateFunc       = api.CompensateFunc
	AssembleFunc         = api.AssembleFunc
	PrecheckFunc         = api.PrecheckFunc
	Failure              = api.Failure
	FailureKind          = api.FailureKind
	CompensationError    = api.CompensationError
	CompensationResult   = api.CompensationResult
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	NewNotFoundError     = api.NewNotFoundError
	IsNotFoundError      = api.IsNotFoundError
	NewShortCircuit      = api.NewShortCircuit
	IsShortCircuit       = api.IsShortCircuit
	AsFailure            = api.AsFailure
)

// Re-export status and failure-kind values for convenience.

const (
	StatusPending            = api.StatusPending
	StatusRunning            = api.StatusRunning
	StatusSucceeded          = api.StatusSucceeded
	StatusFailed             = api.StatusFailed
	StatusCompensating       = api.StatusCompensating
	StatusCompensated        = api.StatusCompensated
	StatusCompensationFailed = api.StatusCompensationFailed

	KindValidation   = api.KindValidation
	KindStep         = api.KindStep
	KindCompensation = api.KindCompensation

	EventRunStarted            = api.EventRunStarted
	EventRunSucceeded          = api.EventRunSucceeded
	EventRunShortCircuited     = api.EventRunShortCircuited
	EventRunFailed             = api.EventRunFailed
	EventRunCompensated        = api.EventRunCompensated
	EventRunCompensationFailed = api.EventRunCompensationFailed
	EventStepStarted           = api.EventStepStarted
	EventStepSucceeded         = api.EventStepSucceeded
	EventStepFailed            = api.EventStepFailed
	EventStepCompensated       = api.EventStepCompensated
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewInMemoryEngineWithObserver(obs)
}

// NewSQLiteEngine returns an Engine that persists run records and run
// history in a SQLite database. Saga definitions are kept in-memory.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	return engine.NewSQLiteEngineWithObserver(db, obs)
}

// Convenience helpers that just forward to the underlying Engine.

// RunSaga runs a registered saga synchronously.
func RunSaga(ctx context.Context, eng Engine, name string, input any, rc *RunContext) (*Run, error) {
	return eng.Run(ctx, name, input, rc)
}

// Execute runs an unregistered definition directly.
func Execute(ctx context.Context, eng Engine, def SagaDefinition, input any, rc *RunContext) (*Run, error) {
	return eng.Execute(ctx, def, input, rc)
}

// GetRun fetches a run record by ID.
func GetRun(ctx context.Context, eng Engine, id string) (*Run, error) {
	return eng.GetRun(ctx, id)
}

// ListRuns lists run records according to the given options.
func ListRuns(ctx context.Context, eng Engine, opts RunListOptions) ([]*Run, error) {
	return eng.ListRuns(ctx, opts)
}
