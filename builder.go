package unwind

import (
	"fmt"

	"github.com/okarhu/unwind/pkg/api"
)

// SagaBuilder provides a fluent API for defining sagas:
//
//	saga := unwind.New("CreateLikedProduct").
//	    Precheck("find-existing", findExisting).
//	    Step("insert-row", insertRow, deleteRow).
//	    Assemble(buildResponse)
//
//	if err := saga.Register(engine); err != nil {
//	    log.Fatal(err)
//	}
//
//	run, err := unwind.RunSaga(ctx, engine, saga.Name(), input, rc)
type SagaBuilder struct {
	def api.SagaDefinition
}

// New creates a new saga builder with the given name.
func New(name string) *SagaBuilder {
	return &SagaBuilder{
		def: api.SagaDefinition{
			Name:  name,
			Nodes: make([]api.Node, 0),
		},
	}
}

// Name returns the saga name.
func (b *SagaBuilder) Name() string {
	return b.def.Name
}

// Definition returns the underlying SagaDefinition.
// Typically used when interacting with lower-level APIs.
func (b *SagaBuilder) Definition() SagaDefinition {
	return b.def
}

// Step appends a step with a forward action and a compensating action.
// compensate may be nil for steps whose effect needs no undo.
func (b *SagaBuilder) Step(name string, invoke InvokeFunc, compensate CompensateFunc) *SagaBuilder {
	if name == "" {
		panic("unwind: step name must not be empty")
	}
	if invoke == nil {
		panic(fmt.Sprintf("unwind: step %q has nil invoke", name))
	}

	b.def.Nodes = append(b.def.Nodes, api.Node{
		Step: &api.StepDefinition{
			Name:       name,
			Invoke:     invoke,
			Compensate: compensate,
		},
	})
	return b
}

// Precheck appends a read-only validation step. A pre-check has no
// compensation; it signals the engine via the sentinel errors returned by
// NewNotFoundError and NewShortCircuit.
func (b *SagaBuilder) Precheck(name string, fn PrecheckFunc) *SagaBuilder {
	if name == "" {
		panic("unwind: precheck name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("unwind: precheck %q has nil function", name))
	}

	step := api.Precheck(name, fn)
	b.def.Nodes = append(b.def.Nodes, api.Node{Step: &step})
	return b
}

// Parallel appends a group of steps that run concurrently. The group is one
// unit in compensation ordering: all its members are compensated together
// before the unwind steps further back.
func (b *SagaBuilder) Parallel(name string, steps ...StepDefinition) *SagaBuilder {
	if name == "" {
		panic("unwind: group name must not be empty")
	}
	if len(steps) == 0 {
		panic(fmt.Sprintf("unwind: group %q has no steps", name))
	}

	b.def.Nodes = append(b.def.Nodes, api.Node{
		Group: &api.ParallelGroup{
			Name:  name,
			Steps: steps,
		},
	})
	return b
}

// Assemble sets the result-assembly function mapping step outputs to the
// run's final result. Without it, the last node's output becomes the result.
func (b *SagaBuilder) Assemble(fn AssembleFunc) *SagaBuilder {
	b.def.Assemble = fn
	return b
}

// Register registers the built saga with the given engine.
func (b *SagaBuilder) Register(eng Engine) error {
	return eng.Register(b.def)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (b *SagaBuilder) MustRegister(eng Engine) {
	if err := b.Register(eng); err != nil {
		panic(err)
	}
}
