package api

import "context"

// Engine is the high-level engine API. All execution is synchronous and
// in-process: a run lives exactly as long as the call that started it.
type Engine interface {
	// Register registers a definition by name. Registering the same saga
	// name twice is an error.
	Register(def SagaDefinition) error

	// Run executes a registered saga with the given input and run context.
	//
	// On success the returned Run has StatusSucceeded and err is nil. On
	// any other terminal status err is a *Failure describing what happened
	// and whether completed steps could be undone. The Run record is
	// returned in both cases.
	//
	// rc may be nil; the engine stamps the run ID into the RunContext it
	// passes to every step.
	Run(ctx context.Context, name string, input any, rc *RunContext) (*Run, error)

	// Execute runs an unregistered definition directly. Semantics are
	// identical to Run.
	Execute(ctx context.Context, def SagaDefinition, input any, rc *RunContext) (*Run, error)

	// GetRun looks up a run record by ID.
	// Returns an error if the run is not found.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns run records matching the given options.
	// If options are zero-valued, all runs are returned.
	ListRuns(ctx context.Context, opts RunListOptions) ([]*Run, error)

	// History returns the append-only event log for a run, oldest first.
	History(ctx context.Context, runID string) ([]RunEvent, error)
}
