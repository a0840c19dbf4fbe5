// Package postgres provides a PostgreSQL-backed engine for unwind.
package postgres

import (
	"database/sql"

	"github.com/okarhu/unwind/internal/engine"
	"github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"

	pstore "github.com/okarhu/unwind/postgres/internal/persistence"
)

// NewEngine returns an Engine that persists run records and run history in
// PostgreSQL. Saga definitions are kept in-memory.
func NewEngine(db *sql.DB) (api.Engine, error) {
	return NewEngineWithObserver(db, nil)
}

// NewEngineWithObserver returns a PostgreSQL-backed Engine with the given Observer.
func NewEngineWithObserver(db *sql.DB, obs api.Observer) (api.Engine, error) {
	runs, err := pstore.NewPostgresRunStore(db)
	if err != nil {
		return nil, err
	}
	events, err := pstore.NewPostgresEventStore(db)
	if err != nil {
		return nil, err
	}

	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.Persistence{
			Runs:   runs,
			Events: events,
		},
		Observer: obs,
	}), nil
}
