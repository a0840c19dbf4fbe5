package persistence

import (
	"errors"
	"time"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

func (m *MongoStoreTestSuite) TestMongoRunStore_SaveGetUpdate() {
	started := time.Now()
	run := &api.Run{
		ID:        "mongo-test-1",
		Saga:      "create-order",
		Status:    api.StatusRunning,
		Input:     mongoSamplePayload{Msg: "hello", N: 42},
		StartedAt: started,
	}

	err := m.store.SaveRun(run)
	m.NoError(err, "SaveRun failed")

	got, err := m.store.GetRun("mongo-test-1")
	m.NoError(err, "GetRun failed")

	m.Equal(run.ID, got.ID)
	m.Equal(run.Saga, got.Saga)
	m.Equal(api.StatusRunning, got.Status)
	m.True(got.StartedAt.Equal(started))

	inPayload, ok := got.Input.(mongoSamplePayload)
	m.Truef(ok, "expected Input of type mongoSamplePayload, got %T", got.Input)
	m.Equal("hello", inPayload.Msg)
	m.Equal(42, inPayload.N)

	got.Status = api.StatusSucceeded
	got.CurrentNode = 2
	got.Output = mongoSamplePayload{Msg: "done", N: 99}
	got.Completed = []string{"reserve", "charge"}
	got.FinishedAt = time.Now()

	err = m.store.UpdateRun(got)
	m.NoError(err, "UpdateRun failed")

	got2, err := m.store.GetRun(got.ID)
	m.NoError(err, "GetRun after update failed")

	m.Equal(api.StatusSucceeded, got2.Status)
	m.Equal(2, got2.CurrentNode)
	m.Equal([]string{"reserve", "charge"}, got2.Completed)

	outPayload, ok := got2.Output.(mongoSamplePayload)
	m.Truef(ok, "expected Output of type mongoSamplePayload, got %T", got2.Output)
	m.Equal("done", outPayload.Msg)
	m.Equal(99, outPayload.N)
}

func (m *MongoStoreTestSuite) TestMongoRunStore_Compensations() {
	run := &api.Run{
		ID:     "mongo-test-2",
		Saga:   "create-order",
		Status: api.StatusCompensated,
		Err:    errors.New("card declined"),
		Compensations: []api.CompensationResult{
			{Step: "charge", Skipped: true},
			{Step: "reserve"},
		},
	}
	m.NoError(m.store.SaveRun(run))

	got, err := m.store.GetRun("mongo-test-2")
	m.NoError(err)
	m.EqualError(got.Err, "card declined")
	m.Len(got.Compensations, 2)
	m.True(got.Compensations[0].Skipped)
	m.Equal("reserve", got.Compensations[1].Step)
	m.NoError(got.Compensations[1].Err)
}

func (m *MongoStoreTestSuite) TestMongoRunStore_NotFound() {
	_, err := m.store.GetRun("no-such-run")
	m.ErrorIs(err, corep.ErrRunNotFound)

	err = m.store.UpdateRun(&api.Run{ID: "no-such-run"})
	m.ErrorIs(err, corep.ErrRunNotFound)
}

func (m *MongoStoreTestSuite) TestMongoRunStore_ListRunsFilters() {
	runs := []*api.Run{
		{ID: "mongo-list-1", Saga: "create-order", Status: api.StatusRunning},
		{ID: "mongo-list-2", Saga: "create-order", Status: api.StatusSucceeded},
		{ID: "mongo-list-3", Saga: "delete-brand", Status: api.StatusSucceeded},
	}
	for _, run := range runs {
		m.NoErrorf(m.store.SaveRun(run), "SaveRun(%s) failed", run.ID)
	}

	all, err := m.store.ListRuns(corep.RunFilter{})
	m.NoError(err)
	m.Len(all, 3)

	bySaga, err := m.store.ListRuns(corep.RunFilter{Saga: "create-order"})
	m.NoError(err)
	m.Len(bySaga, 2)

	byStatus, err := m.store.ListRuns(corep.RunFilter{Status: api.StatusSucceeded})
	m.NoError(err)
	m.Len(byStatus, 2)

	both, err := m.store.ListRuns(corep.RunFilter{Saga: "create-order", Status: api.StatusSucceeded})
	m.NoError(err)
	m.Len(both, 1)
	m.Equal("mongo-list-2", both[0].ID)
}

func (m *MongoStoreTestSuite) TestMongoEventStore_AppendAndList() {
	events := []api.RunEvent{
		{RunID: "mongo-ev-1", Type: api.EventRunStarted, Saga: "create-order"},
		{RunID: "mongo-ev-1", Type: api.EventStepStarted, Saga: "create-order", Step: "reserve"},
		{RunID: "mongo-ev-1", Type: api.EventStepFailed, Saga: "create-order", Step: "reserve", Detail: "out of stock"},
		{RunID: "mongo-ev-2", Type: api.EventRunStarted, Saga: "delete-brand"},
	}
	for _, ev := range events {
		m.NoError(m.events.AppendEvent(m.ctx, ev))
	}

	got, err := m.events.ListEvents(m.ctx, "mongo-ev-1")
	m.NoError(err)
	m.Len(got, 3)
	m.Equal(api.EventRunStarted, got[0].Type)
	m.Equal("reserve", got[1].Step)
	m.Equal("out of stock", got[2].Detail)
	m.False(got[0].At.IsZero())

	none, err := m.events.ListEvents(m.ctx, "mongo-ev-99")
	m.NoError(err)
	m.Empty(none)
}
