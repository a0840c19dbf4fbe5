package persistence

import (
	"sync"

	"github.com/okarhu/unwind/pkg/api"
)

// InMemoryRunStore is a simple, goroutine-safe RunStore backed by a map.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*api.Run
}

var _ RunStore = (*InMemoryRunStore)(nil)

// NewInMemoryRunStore creates a new InMemoryRunStore.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[string]*api.Run),
	}
}

func (s *InMemoryRunStore) SaveRun(run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = snapshotRun(run)
	return nil
}

func (s *InMemoryRunStore) UpdateRun(run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrRunNotFound
	}

	s.runs[run.ID] = snapshotRun(run)
	return nil
}

func (s *InMemoryRunStore) GetRun(id string) (*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	return snapshotRun(run), nil
}

func (s *InMemoryRunStore) ListRuns(filter RunFilter) ([]*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Run

	for _, run := range s.runs {
		if filter.Saga != "" && run.Saga != filter.Saga {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, snapshotRun(run))
	}

	return result, nil
}

// snapshotRun copies the record so the engine's ongoing mutations are not
// visible through previously returned pointers.
func snapshotRun(run *api.Run) *api.Run {
	cp := *run
	cp.Completed = append([]string(nil), run.Completed...)
	cp.Compensations = append([]api.CompensationResult(nil), run.Compensations...)
	return &cp
}
