package api

// RunContext is the per-invocation handle passed to every Invoke and
// Compensate call. It carries the run identity and whatever external
// resources the step bodies need (storage handles, service clients).
//
// The engine never inspects Resources; it is a pass-through dependency
// boundary owned by the caller. The engine copies the RunContext at the
// start of each run and stamps RunID on its copy, so a single RunContext
// value may be shared across concurrent runs.
type RunContext struct {
	RunID     string
	Resources any
}
