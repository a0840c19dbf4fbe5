package persistence

import (
	"database/sql"
	"encoding/gob"
	"errors"
	"strings"
	"time"

	"github.com/okarhu/unwind/pkg/api"
)

// SQLiteRunStore is a RunStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRunStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore initializes the required schema in the given database
// and returns a new SQLiteRunStore.
func NewSQLiteRunStore(db *sql.DB) (*SQLiteRunStore, error) {
	s := &SQLiteRunStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRunStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS saga_runs (
			id TEXT PRIMARY KEY,
			saga TEXT NOT NULL,
			status TEXT NOT NULL,
			current_node INTEGER NOT NULL,
			input BLOB,
			output BLOB,
			completed TEXT NOT NULL DEFAULT '',
			compensations BLOB,
			error TEXT,
			started_at INTEGER NOT NULL DEFAULT 0,
			finished_at INTEGER NOT NULL DEFAULT 0
		);`,
	)
	return err
}

// storedCompensation is the persisted shape of a CompensationResult; errors
// flatten to strings across the storage boundary.
type storedCompensation struct {
	Step    string
	Skipped bool
	Error   string
}

func init() {
	gob.Register([]storedCompensation{})
}

func (s *SQLiteRunStore) runArgs(run *api.Run) ([]any, error) {
	input, err := EncodeValue(run.Input)
	if err != nil {
		return nil, err
	}

	output, err := EncodeValue(run.Output)
	if err != nil {
		return nil, err
	}

	comps, err := encodeCompensations(run.Compensations)
	if err != nil {
		return nil, err
	}

	errStr := ""
	if run.Err != nil {
		errStr = run.Err.Error()
	}

	return []any{
		run.Saga,
		string(run.Status),
		run.CurrentNode,
		input,
		output,
		strings.Join(run.Completed, "\n"),
		comps,
		errStr,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
	}, nil
}

func (s *SQLiteRunStore) SaveRun(run *api.Run) error {
	args, err := s.runArgs(run)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO saga_runs (saga, status, current_node, input, output, completed, compensations, error, started_at, finished_at, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, run.ID)...,
	)
	return err
}

func (s *SQLiteRunStore) UpdateRun(run *api.Run) error {
	args, err := s.runArgs(run)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE saga_runs
		SET saga = ?, status = ?, current_node = ?, input = ?, output = ?, completed = ?, compensations = ?, error = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		append(args, run.ID)...,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *SQLiteRunStore) GetRun(id string) (*api.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, saga, status, current_node, input, output, completed, compensations, error, started_at, finished_at
		FROM saga_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (s *SQLiteRunStore) ListRuns(filter RunFilter) ([]*api.Run, error) {
	query := `
		SELECT id, saga, status, current_node, input, output, completed, compensations, error, started_at, finished_at
		FROM saga_runs`

	var (
		conds []string
		args  []any
	)
	if filter.Saga != "" {
		conds = append(conds, "saga = ?")
		args = append(args, filter.Saga)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*api.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*api.Run, error) {
	var (
		run        api.Run
		status     string
		input      []byte
		output     []byte
		completed  string
		comps      []byte
		errStr     string
		startedAt  int64
		finishedAt int64
	)

	if err := row.Scan(&run.ID, &run.Saga, &status, &run.CurrentNode,
		&input, &output, &completed, &comps, &errStr, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Status = api.Status(status)

	inVal, err := DecodeValue[any](input)
	if err != nil {
		return nil, err
	}
	run.Input = inVal

	outVal, err := DecodeValue[any](output)
	if err != nil {
		return nil, err
	}
	run.Output = outVal

	if completed != "" {
		run.Completed = strings.Split(completed, "\n")
	}

	run.Compensations, err = decodeCompensations(comps)
	if err != nil {
		return nil, err
	}

	if errStr != "" {
		run.Err = errors.New(errStr)
	}
	if startedAt != 0 {
		run.StartedAt = time.Unix(0, startedAt)
	}
	if finishedAt != 0 {
		run.FinishedAt = time.Unix(0, finishedAt)
	}

	return &run, nil
}

func encodeCompensations(comps []api.CompensationResult) ([]byte, error) {
	if len(comps) == 0 {
		return nil, nil
	}
	stored := make([]storedCompensation, len(comps))
	for i, c := range comps {
		stored[i] = storedCompensation{Step: c.Step, Skipped: c.Skipped}
		if c.Err != nil {
			stored[i].Error = c.Err.Error()
		}
	}
	return EncodeValue(stored)
}

func decodeCompensations(data []byte) ([]api.CompensationResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	stored, err := DecodeValue[[]storedCompensation](data)
	if err != nil {
		return nil, err
	}
	comps := make([]api.CompensationResult, len(stored))
	for i, c := range stored {
		comps[i] = api.CompensationResult{Step: c.Step, Skipped: c.Skipped}
		if c.Error != "" {
			comps[i].Err = errors.New(c.Error)
		}
	}
	return comps, nil
}
