package persistence

import (
	"context"
	"database/sql"
	"time"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// PostgresEventStore stores run events in PostgreSQL.
type PostgresEventStore struct {
	db *sql.DB
}

var _ corep.EventStore = (*PostgresEventStore)(nil)

func NewPostgresEventStore(db *sql.DB) (*PostgresEventStore, error) {
	s := &PostgresEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS saga_run_events (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			at BIGINT NOT NULL,
			type TEXT NOT NULL,
			saga TEXT NOT NULL DEFAULT '',
			step TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_saga_run_events_run_id ON saga_run_events(run_id, id);
	`)
	return err
}

func (s *PostgresEventStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saga_run_events (run_id, at, type, saga, step, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.RunID,
		at.UnixNano(),
		string(ev.Type),
		ev.Saga,
		ev.Step,
		ev.Detail,
	)
	return err
}

func (s *PostgresEventStore) ListEvents(ctx context.Context, runID string) ([]api.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, at, type, saga, step, detail
		FROM saga_run_events WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []api.RunEvent
	for rows.Next() {
		var (
			ev api.RunEvent
			at int64
			ty string
		)
		if err := rows.Scan(&ev.RunID, &at, &ty, &ev.Saga, &ev.Step, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, at)
		ev.Type = api.EventType(ty)
		events = append(events, ev)
	}
	return events, rows.Err()
}
