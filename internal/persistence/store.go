package persistence

import (
	"errors"

	"github.com/okarhu/unwind/pkg/api"
)

// ErrRunNotFound is returned when a run record is not found.
var ErrRunNotFound = errors.New("run not found")

// RunFilter is used to select runs from the store.
// Empty string / zero status mean "no filter" for that field.
type RunFilter struct {
	Saga   string
	Status api.Status
}

// RunStore handles storage of run records. The engine writes a record when
// a run starts and updates it on every status transition, so the store
// always reflects the latest observable state of each run.
type RunStore interface {
	SaveRun(run *api.Run) error
	UpdateRun(run *api.Run) error
	GetRun(id string) (*api.Run, error)
	ListRuns(filter RunFilter) ([]*api.Run, error)
}
