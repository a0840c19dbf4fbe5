// Package redis provides a Redis-backed engine for unwind.
package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/okarhu/unwind/internal/engine"
	"github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"

	redisp "github.com/okarhu/unwind/redis/internal/persistence"
)

// NewEngine returns an Engine that persists run records and run history
// in Redis. Saga definitions are kept in-memory.
func NewEngine(client *redis.Client) api.Engine {
	return NewEngineWithObserver(client, nil)
}

// NewEngineWithObserver returns a Redis-backed Engine with the given Observer.
func NewEngineWithObserver(client *redis.Client, obs api.Observer) api.Engine {
	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.Persistence{
			Runs:   redisp.NewRedisRunStore(client, "unwind:"),
			Events: redisp.NewRedisEventStore(client, "unwind:"),
		},
		Observer: obs,
	})
}
