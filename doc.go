// Package unwind provides a lightweight, embeddable saga engine for Go.
//
// Unwind is built for backend services whose mutating operations span
// several independent side effects (a database row, a search index, a
// cache) with no shared ACID transaction covering them. A saga declares
// those side effects as an ordered pipeline of steps, each with a forward
// action and an optional compensating action; when a step fails, the steps
// that already completed are undone in reverse order. The outcome is
// all-applied or best-effort all-undone, and the caller always learns
// which of the two it got.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. SagaBuilder
//  3. Step (forward action + compensation token + compensating action)
//  4. Pre-check
//  5. RunContext
//
// # Engine
//
// The Engine registers saga definitions, executes runs, and records run
// state and history. Execution is synchronous and in-process: a run lives
// exactly as long as the call that started it, and the compensation token
// stack is never persisted. Run *records* are persisted for observability;
// backends:
//
//   - In-memory (best for tests)
//   - SQLite (embedded, via modernc.org/sqlite)
//   - Postgres, Redis, MongoDB (satellite modules)
//
// # Step
//
// A step's forward action returns an output and an opaque compensation
// token:
//
//	func(ctx context.Context, rc *unwind.RunContext, input any) (output, token any, err error)
//
// The token carries whatever the compensating action needs to undo the
// effect: the created row's ID, a snapshot of the record before mutation.
// A nil token means nothing to undo. Steps run once — the engine never
// retries a forward action, so effects should be naturally idempotent or
// guarded by a pre-check upstream.
//
// # Pre-check
//
// A pre-check is a read-only step used for validation or deduplication
// before any mutation. It signals through sentinel errors: a not-found
// signal fails the run with nothing to compensate, and a short-circuit
// signal completes the run immediately with an already-existing resource
// as its result.
//
// # SagaBuilder
//
// SagaBuilder is the declarative API for composing sagas: sequential
// steps, pre-checks, parallel groups, and a result-assembly function
// mapping step outputs to the final response.
//
// Example:
//
//	unwind.New("CreateBrand").
//	    Precheck("name-free", unwind.DedupCheck(findBrandByName)).
//	    Step("insert-brand", insertBrand, deleteBrand).
//	    Parallel("propagate",
//	        unwind.NewStep("index-brand", indexBrand, unindexBrand),
//	        unwind.NewStep("warm-cache", warmCache, nil),
//	    ).
//	    Assemble(brandResponse)
//
// # RunContext
//
// RunContext carries the run identity and the caller's external resources
// (storage handles, service clients) into every forward and compensating
// call. The engine never inspects its contents.
//
// # Failure handling
//
// A run that does not succeed returns a *Failure distinguishing three
// outcomes: nothing happened (validation), something happened and was
// undone, and something happened that could not be undone. The last is
// surfaced as its own, more severe kind so it can be escalated instead of
// silently swallowed.
//
// For examples, see the /examples directory.
package unwind
