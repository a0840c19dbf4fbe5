package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/okarhu/unwind/pkg/api"
)

// SQLiteEventStore stores run events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS saga_run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			saga TEXT NOT NULL DEFAULT '',
			step TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_saga_run_events_run_id ON saga_run_events(run_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saga_run_events (run_id, at, type, saga, step, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.RunID,
		at.UnixNano(),
		string(ev.Type),
		ev.Saga,
		ev.Step,
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, runID string) ([]api.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, at, type, saga, step, detail
		FROM saga_run_events WHERE run_id = ? ORDER BY id`, runID)
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
