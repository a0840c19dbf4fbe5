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

// RedisEventStore keeps run history in Redis, one list per run:
//
//	<prefix>events:<run id> => LIST of gob-encoded redisEventPayload
//
// Events are appended with RPUSH, so LRANGE returns them in append order.
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

var _ corep.EventStore = (*RedisEventStore)(nil)

type redisEventPayload struct {
	RunID  string
	At     int64
	Type   string
	Saga   string
	Step   string
	Detail string
}

// NewRedisEventStore creates a RedisEventStore with the given key prefix.
func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "unwind:"
	}
	return &RedisEventStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisEventStore) keyEvents(runID string) string {
	return r.prefix + "events:" + runID
}

func (r *RedisEventStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	payload := redisEventPayload{
		RunID:  ev.RunID,
		At:     at.UnixNano(),
		Type:   string(ev.Type),
		Saga:   ev.Saga,
		Step:   ev.Step,
		Detail: ev.Detail,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return err
	}

	return r.client.RPush(ctx, r.keyEvents(ev.RunID), buf.Bytes()).Err()
}

func (r *RedisEventStore) ListEvents(ctx context.Context, runID string) ([]api.RunEvent, error) {
	raw, err := r.client.LRange(ctx, r.keyEvents(runID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	events := make([]api.RunEvent, 0, len(raw))
	for _, item := range raw {
		var payload redisEventPayload
		if err := gob.NewDecoder(bytes.NewReader([]byte(item))).Decode(&payload); err != nil {
			return nil, err
		}
		events = append(events, api.RunEvent{
			RunID:  payload.RunID,
			At:     time.Unix(0, payload.At),
			Type:   api.EventType(payload.Type),
			Saga:   payload.Saga,
			Step:   payload.Step,
			Detail: payload.Detail,
		})
	}
	return events, nil
}
