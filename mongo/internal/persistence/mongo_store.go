package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// MongoRunStore is a RunStore backed by a MongoDB collection. Run inputs
// and outputs are gob-encoded into binary fields; the rest of the record
// maps to plain document fields so runs stay queryable with mongo tools.
type MongoRunStore struct {
	coll *mongo.Collection
}

var _ corep.RunStore = (*MongoRunStore)(nil)

// NewMongoRunStore creates a Mongo-backed run store.
// dbName defaults to "unwind" if empty, collName defaults to "runs".
func NewMongoRunStore(client *mongo.Client, dbName, collName string) *MongoRunStore {
	if dbName == "" {
		dbName = "unwind"
	}
	if collName == "" {
		collName = "runs"
	}

	return &MongoRunStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoCompensationDoc struct {
	Step    string `bson:"step"`
	Skipped bool   `bson:"skipped,omitempty"`
	Error   string `bson:"error,omitempty"`
}

type mongoRunDoc struct {
	ID            string                 `bson:"_id"`
	Saga          string                 `bson:"saga"`
	Status        string                 `bson:"status"`
	CurrentNode   int                    `bson:"current_node"`
	Input         []byte                 `bson:"input,omitempty"`
	Output        []byte                 `bson:"output,omitempty"`
	Completed     []string               `bson:"completed,omitempty"`
	Compensations []mongoCompensationDoc `bson:"compensations,omitempty"`
	Error         string                 `bson:"error,omitempty"`
	StartedAt     int64                  `bson:"started_at,omitempty"`
	FinishedAt    int64                  `bson:"finished_at,omitempty"`
}

func runToDoc(run *api.Run) (mongoRunDoc, error) {
	inBytes, err := corep.EncodeValue(run.Input)
	if err != nil {
		return mongoRunDoc{}, err
	}
	outBytes, err := corep.EncodeValue(run.Output)
	if err != nil {
		return mongoRunDoc{}, err
	}

	errStr := ""
	if run.Err != nil {
		errStr = run.Err.Error()
	}

	doc := mongoRunDoc{
		ID:          run.ID,
		Saga:        run.Saga,
		Status:      string(run.Status),
		CurrentNode: run.CurrentNode,
		Input:       inBytes,
		Output:      outBytes,
		Completed:   run.Completed,
		Error:       errStr,
	}
	if !run.StartedAt.IsZero() {
		doc.StartedAt = run.StartedAt.UnixNano()
	}
	if !run.FinishedAt.IsZero() {
		doc.FinishedAt = run.FinishedAt.UnixNano()
	}
	for _, c := range run.Compensations {
		cd := mongoCompensationDoc{Step: c.Step, Skipped: c.Skipped}
		if c.Err != nil {
			cd.Error = c.Err.Error()
		}
		doc.Compensations = append(doc.Compensations, cd)
	}
	return doc, nil
}

func docToRun(doc mongoRunDoc) (*api.Run, error) {
	inVal, err := corep.DecodeValue[any](doc.Input)
	if err != nil {
		return nil, err
	}
	outVal, err := corep.DecodeValue[any](doc.Output)
	if err != nil {
		return nil, err
	}

	run := &api.Run{
		ID:          doc.ID,
		Saga:        doc.Saga,
		Status:      api.Status(doc.Status),
		CurrentNode: doc.CurrentNode,
		Input:       inVal,
		Output:      outVal,
		Completed:   doc.Completed,
	}
	if doc.Error != "" {
		run.Err = errors.New(doc.Error)
	}
	if doc.StartedAt != 0 {
		run.StartedAt = time.Unix(0, doc.StartedAt)
	}
	if doc.FinishedAt != 0 {
		run.FinishedAt = time.Unix(0, doc.FinishedAt)
	}
	for _, cd := range doc.Compensations {
		res := api.CompensationResult{Step: cd.Step, Skipped: cd.Skipped}
		if cd.Error != "" {
			res.Err = errors.New(cd.Error)
		}
		run.Compensations = append(run.Compensations, res)
	}
	return run, nil
}

func (s *MongoRunStore) SaveRun(run *api.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := runToDoc(run)
	if err != nil {
		return err
	}

	_, err = s.coll.InsertOne(ctx, doc)
	// If duplicate ID happens, caller may treat it as an error; we just return it.
	return err
}

func (s *MongoRunStore) UpdateRun(run *api.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := runToDoc(run)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"saga":          doc.Saga,
			"status":        doc.Status,
			"current_node":  doc.CurrentNode,
			"input":         doc.Input,
			"output":        doc.Output,
			"completed":     doc.Completed,
			"compensations": doc.Compensations,
			"error":         doc.Error,
			"started_at":    doc.StartedAt,
			"finished_at":   doc.FinishedAt,
		},
	}

	res, err := s.coll.UpdateByID(ctx, run.ID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return corep.ErrRunNotFound
	}
	return nil
}

func (s *MongoRunStore) GetRun(id string) (*api.Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var doc mongoRunDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, corep.ErrRunNotFound
		}
		return nil, err
	}
	return docToRun(doc)
}

func (s *MongoRunStore) ListRuns(filter corep.RunFilter) ([]*api.Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Saga != "" {
		query["saga"] = filter.Saga
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	cur, err := s.coll.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []*api.Run
	for cur.Next(ctx) {
		var doc mongoRunDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		run, err := docToRun(doc)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, cur.Err()
}
