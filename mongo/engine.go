// Package mongo provides a MongoDB-backed engine for unwind.
package mongo

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/okarhu/unwind/internal/engine"
	"github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"

	mstore "github.com/okarhu/unwind/mongo/internal/persistence"
)

// NewEngine returns an Engine that persists run records and run history in
// MongoDB, using the default database/collection names from the store
// (e.g. "unwind"/"runs"). Saga definitions are kept in-memory.
func NewEngine(client *mongo.Client) api.Engine {
	return NewEngineWithObserver(client, nil)
}

// NewEngineWithObserver is the Mongo-backed engine constructor that accepts an Observer.
func NewEngineWithObserver(client *mongo.Client, obs api.Observer) api.Engine {
	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.Persistence{
			Runs:   mstore.NewMongoRunStore(client, "", ""),
			Events: mstore.NewMongoEventStore(client, "", ""),
		},
		Observer: obs,
	})
}
