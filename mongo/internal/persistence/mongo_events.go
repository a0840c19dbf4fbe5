package persistence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// MongoEventStore stores run events in a MongoDB collection. A
// monotonically-loose insertion timestamp plus an ObjectID sort keeps
// events in append order per run.
type MongoEventStore struct {
	coll *mongo.Collection
}

var _ corep.EventStore = (*MongoEventStore)(nil)

// NewMongoEventStore creates a Mongo-backed event store.
// dbName defaults to "unwind" if empty, collName defaults to "run_events".
func NewMongoEventStore(client *mongo.Client, dbName, collName string) *MongoEventStore {
	if dbName == "" {
		dbName = "unwind"
	}
	if collName == "" {
		collName = "run_events"
	}

	return &MongoEventStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoEventDoc struct {
	RunID  string `bson:"run_id"`
	At     int64  `bson:"at"`
	Type   string `bson:"type"`
	Saga   string `bson:"saga,omitempty"`
	Step   string `bson:"step,omitempty"`
	Detail string `bson:"detail,omitempty"`
}

func (s *MongoEventStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.coll.InsertOne(ctx, mongoEventDoc{
		RunID:  ev.RunID,
		At:     at.UnixNano(),
		Type:   string(ev.Type),
		Saga:   ev.Saga,
		Step:   ev.Step,
		Detail: ev.Detail,
	})
	return err
}

func (s *MongoEventStore) ListEvents(ctx context.Context, runID string) ([]api.RunEvent, error) {
	// ObjectIDs embed insertion order, which keeps same-timestamp events
	// in the order they were appended.
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, bson.M{"run_id": runID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []api.RunEvent
	for cur.Next(ctx) {
		var doc mongoEventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		events = append(events, api.RunEvent{
			RunID:  doc.RunID,
			At:     time.Unix(0, doc.At),
			Type:   api.EventType(doc.Type),
			Saga:   doc.Saga,
			Step:   doc.Step,
			Detail: doc.Detail,
		})
	}
	return events, cur.Err()
}
