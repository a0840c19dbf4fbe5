package engine

import (
	"fmt"
	"sync"

	"github.com/okarhu/unwind/pkg/api"
)

type sagaRegistry struct {
	mu     sync.RWMutex
	byName map[string]api.SagaDefinition
}

func newSagaRegistry() *sagaRegistry {
	return &sagaRegistry{
		byName: make(map[string]api.SagaDefinition),
	}
}

func (r *sagaRegistry) Register(def api.SagaDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("saga %q already registered", def.Name)
	}

	r.byName[def.Name] = def
	return nil
}

func (r *sagaRegistry) Get(name string) (api.SagaDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byName[name]
	if !ok {
		return api.SagaDefinition{}, fmt.Errorf("unknown saga: %s", name)
	}

	return def, nil
}
