package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// RedisRunStore is a RunStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>             => gob-encoded redisRunPayload
//	<prefix>idx:all              => SET of all run IDs
//	<prefix>idx:saga:<name>      => SET of run IDs for a given saga
//	<prefix>idx:status:<status>  => SET of run IDs for a given status
//
// The indexes are best-effort; they are always updated on Save/Update, and
// ListRuns re-filters fetched payloads so stale index entries are harmless.
type RedisRunStore struct {
	client *redis.Client
	prefix string
}

var _ corep.RunStore = (*RedisRunStore)(nil)

type redisCompensation struct {
	Step    string
	Skipped bool
	Error   string
}

type redisRunPayload struct {
	ID            string
	Saga          string
	Status        string
	CurrentNode   int
	Input         []byte
	Output        []byte
	Completed     []string
	Compensations []redisCompensation
	Error         string
	StartedAt     int64
	FinishedAt    int64
}

// NewRedisRunStore creates a RedisRunStore.
// prefix is optional but recommended (e.g. "unwind:").
func NewRedisRunStore(client *redis.Client, prefix string) *RedisRunStore {
	if prefix == "" {
		prefix = "unwind:"
	}
	return &RedisRunStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisRunStore) keyRun(id string) string {
	return r.prefix + "run:" + id
}

func (r *RedisRunStore) keyAll() string {
	return r.prefix + "idx:all"
}

func (r *RedisRunStore) keySaga(name string) string {
	return r.prefix + "idx:saga:" + name
}

func (r *RedisRunStore) keyStatus(status api.Status) string {
	return r.prefix + "idx:status:" + string(status)
}

func (r *RedisRunStore) SaveRun(run *api.Run) error {
	return r.write(run)
}

func (r *RedisRunStore) UpdateRun(run *api.Run) error {
	ctx := context.Background()

	// UpdateRun must not resurrect a record that was never saved.
	exists, err := r.client.Exists(ctx, r.keyRun(run.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return corep.ErrRunNotFound
	}
	return r.write(run)
}

func (r *RedisRunStore) write(run *api.Run) error {
	ctx := context.Background()

	data, err := encodeRunPayload(run)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.keyRun(run.ID), data, 0).Err(); err != nil {
		return err
	}

	// Index updates: we just re-add; some stale index entries may remain
	// after a status change, but ListRuns filters by payload.
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.keyAll(), run.ID)
	pipe.SAdd(ctx, r.keySaga(run.Saga), run.ID)
	pipe.SAdd(ctx, r.keyStatus(run.Status), run.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (r *RedisRunStore) GetRun(id string) (*api.Run, error) {
	ctx := context.Background()

	data, err := r.client.Get(ctx, r.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, corep.ErrRunNotFound
		}
		return nil, err
	}
	return decodeRunPayload(data)
}

func (r *RedisRunStore) ListRuns(filter corep.RunFilter) ([]*api.Run, error) {
	ctx := context.Background()

	var ids []string
	var err error

	switch {
	case filter.Saga != "" && filter.Status != "":
		ids, err = r.client.SInter(ctx,
			r.keySaga(filter.Saga),
			r.keyStatus(filter.Status),
		).Result()
	case filter.Saga != "":
		ids, err = r.client.SMembers(ctx, r.keySaga(filter.Saga)).Result()
	case filter.Status != "":
		ids, err = r.client.SMembers(ctx, r.keyStatus(filter.Status)).Result()
	default:
		ids, err = r.client.SMembers(ctx, r.keyAll()).Result()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*api.Run{}, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.Run{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, r.keyRun(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var runs []*api.Run
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		run, err := decodeRunPayload(data)
		if err != nil {
			return nil, err
		}
		// Re-check against the payload in case the index is stale.
		if filter.Saga != "" && run.Saga != filter.Saga {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func encodeRunPayload(run *api.Run) ([]byte, error) {
	inBytes, err := corep.EncodeValue(run.Input)
	if err != nil {
		return nil, err
	}
	outBytes, err := corep.EncodeValue(run.Output)
	if err != nil {
		return nil, err
	}

	comps := make([]redisCompensation, len(run.Compensations))
	for i, c := range run.Compensations {
		comps[i] = redisCompensation{Step: c.Step, Skipped: c.Skipped}
		if c.Err != nil {
			comps[i].Error = c.Err.Error()
		}
	}

	errStr := ""
	if run.Err != nil {
		errStr = run.Err.Error()
	}

	payload := redisRunPayload{
		ID:            run.ID,
		Saga:          run.Saga,
		Status:        string(run.Status),
		CurrentNode:   run.CurrentNode,
		Input:         inBytes,
		Output:        outBytes,
		Completed:     run.Completed,
		Compensations: comps,
		Error:         errStr,
		StartedAt:     timeToNano(run.StartedAt),
		FinishedAt:    timeToNano(run.FinishedAt),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRunPayload(data []byte) (*api.Run, error) {
	var payload redisRunPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}

	inVal, err := corep.DecodeValue[any](payload.Input)
	if err != nil {
		return nil, err
	}
	outVal, err := corep.DecodeValue[any](payload.Output)
	if err != nil {
		return nil, err
	}

	run := &api.Run{
		ID:          payload.ID,
		Saga:        payload.Saga,
		Status:      api.Status(payload.Status),
		CurrentNode: payload.CurrentNode,
		Input:       inVal,
		Output:      outVal,
		Completed:   payload.Completed,
		StartedAt:   nanoToTime(payload.StartedAt),
		FinishedAt:  nanoToTime(payload.FinishedAt),
	}
	if payload.Error != "" {
		run.Err = errors.New(payload.Error)
	}
	for _, c := range payload.Compensations {
		res := api.CompensationResult{Step: c.Step, Skipped: c.Skipped}
		if c.Error != "" {
			res.Err = errors.New(c.Error)
		}
		run.Compensations = append(run.Compensations, res)
	}

	return run, nil
}

func timeToNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanoToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
