package unwind

import (
	"context"
	"sync"
)

// AsyncRunner runs sagas on their own goroutines with a concurrency cap.
// It is a thin convenience over a synchronous Engine for callers (HTTP
// handlers, background jobs) that want fire-and-wait semantics without
// managing goroutines themselves.
//
// Typical usage:
//
//	runner := unwind.NewAsyncRunner(engine, 8)
//	handle := runner.Start(ctx, "CreateBrand", input, rc)
//	...
//	run, err := handle.Wait(ctx)
//
// AsyncRunner adds no durability: a run still lives only as long as the
// process, exactly like a direct Engine.Run call.
type AsyncRunner struct {
	// Engine executes the runs.
	Engine Engine

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewAsyncRunner creates a runner that allows up to maxConcurrent runs in
// flight at once. maxConcurrent values below 1 are treated as 1.
func NewAsyncRunner(eng Engine, maxConcurrent int) *AsyncRunner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &AsyncRunner{
		Engine: eng,
		sem:    make(chan struct{}, maxConcurrent),
	}
}

// RunHandle tracks one asynchronous run.
type RunHandle struct {
	done chan struct{}
	run  *Run
	err  error
}

// Wait blocks until the run reaches a terminal status or ctx is cancelled.
// Cancelling the wait does not cancel the run itself; cancellation of the
// run is governed by the context passed to Start.
func (h *RunHandle) Wait(ctx context.Context) (*Run, error) {
	select {
	case <-h.done:
		return h.run, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start launches a registered saga on its own goroutine and returns a
// handle to wait on. The goroutine blocks until a concurrency slot is free.
func (r *AsyncRunner) Start(ctx context.Context, name string, input any, rc *RunContext) *RunHandle {
	h := &RunHandle{done: make(chan struct{})}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(h.done)

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			h.err = ctx.Err()
			return
		}

		h.run, h.err = r.Engine.Run(ctx, name, input, rc)
	}()

	return h
}

// Drain blocks until every run started through this runner has finished.
func (r *AsyncRunner) Drain() {
	r.wg.Wait()
}
