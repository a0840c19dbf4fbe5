package persistence

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// PostgresRunStore is a RunStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresRunStore struct {
	db *sql.DB
}

var _ corep.RunStore = (*PostgresRunStore)(nil)

// NewPostgresRunStore initializes the required schema in the given
// database and returns a new PostgresRunStore.
func NewPostgresRunStore(db *sql.DB) (*PostgresRunStore, error) {
	s := &PostgresRunStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresRunStore) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS saga_runs (
			id TEXT PRIMARY KEY,
			saga TEXT NOT NULL,
			status TEXT NOT NULL,
			current_node INTEGER NOT NULL,
			input BYTEA,
			output BYTEA,
			completed TEXT NOT NULL DEFAULT '',
			compensations BYTEA,
			error TEXT,
			started_at BIGINT NOT NULL DEFAULT 0,
			finished_at BIGINT NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (p *PostgresRunStore) runArgs(run *api.Run) ([]any, error) {
	input, err := corep.EncodeValue(run.Input)
	if err != nil {
		return nil, err
	}

	output, err := corep.EncodeValue(run.Output)
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

func (p *PostgresRunStore) SaveRun(run *api.Run) error {
	args, err := p.runArgs(run)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
		INSERT INTO saga_runs (saga, status, current_node, input, output, completed, compensations, error, started_at, finished_at, id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		append(args, run.ID)...,
	)
	return err
}

func (p *PostgresRunStore) UpdateRun(run *api.Run) error {
	args, err := p.runArgs(run)
	if err != nil {
		return err
	}

	res, err := p.db.Exec(`
		UPDATE saga_runs
		SET saga = $1, status = $2, current_node = $3, input = $4, output = $5, completed = $6, compensations = $7, error = $8, started_at = $9, finished_at = $10
		WHERE id = $11`,
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
		return corep.ErrRunNotFound
	}
	return nil
}

func (p *PostgresRunStore) GetRun(id string) (*api.Run, error) {
	row := p.db.QueryRow(`
		SELECT id, saga, status, current_node, input, output, completed, compensations, error, started_at, finished_at
		FROM saga_runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corep.ErrRunNotFound
	}
	return run, err
}

func (p *PostgresRunStore) ListRuns(filter corep.RunFilter) ([]*api.Run, error) {
	query := `
		SELECT id, saga, status, current_node, input, output, completed, compensations, error, started_at, finished_at
		FROM saga_runs`

	var (
		conds []string
		args  []any
	)
	if filter.Saga != "" {
		args = append(args, filter.Saga)
		conds = append(conds, "saga = $1")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		if len(args) == 1 {
			conds = append(conds, "status = $1")
		} else {
			conds = append(conds, "status = $2")
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := p.db.Query(query, args...)
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

	inVal, err := corep.DecodeValue[any](input)
	if err != nil {
		return nil, err
	}
	run.Input = inVal

	outVal, err := corep.DecodeValue[any](output)
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
