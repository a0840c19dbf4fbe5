package persistence

import (
	"errors"
	"time"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

func (p *PostgresStoreTestSuite) TestPostgresRunStore_SaveGetUpdate() {
	started := time.Now()
	run := &api.Run{
		ID:        "pg-test-1",
		Saga:      "create-order",
		Status:    api.StatusRunning,
		Input:     pgSamplePayload{Msg: "hello", N: 42},
		StartedAt: started,
	}

	err := p.store.SaveRun(run)
	p.NoError(err, "SaveRun failed")

	got, err := p.store.GetRun("pg-test-1")
	p.NoError(err, "GetRun failed")

	p.Equal(run.ID, got.ID)
	p.Equal(run.Saga, got.Saga)
	p.Equal(api.StatusRunning, got.Status)
	p.True(got.StartedAt.Equal(started))

	inPayload, ok := got.Input.(pgSamplePayload)
	p.Truef(ok, "expected Input of type pgSamplePayload, got %T", got.Input)
	p.Equal("hello", inPayload.Msg)
	p.Equal(42, inPayload.N)

	got.Status = api.StatusSucceeded
	got.CurrentNode = 2
	got.Output = pgSamplePayload{Msg: "done", N: 99}
	got.Completed = []string{"reserve", "charge"}
	got.FinishedAt = time.Now()

	err = p.store.UpdateRun(got)
	p.NoError(err, "UpdateRun failed")

	got2, err := p.store.GetRun(got.ID)
	p.NoError(err, "GetRun after update failed")

	p.Equal(api.StatusSucceeded, got2.Status)
	p.Equal(2, got2.CurrentNode)
	p.Equal([]string{"reserve", "charge"}, got2.Completed)

	outPayload, ok := got2.Output.(pgSamplePayload)
	p.Truef(ok, "expected Output of type pgSamplePayload, got %T", got2.Output)
	p.Equal("done", outPayload.Msg)
	p.Equal(99, outPayload.N)
}

func (p *PostgresStoreTestSuite) TestPostgresRunStore_Compensations() {
	run := &api.Run{
		ID:     "pg-test-2",
		Saga:   "create-order",
		Status: api.StatusCompensationFailed,
		Err:    errors.New("card declined"),
		Compensations: []api.CompensationResult{
			{Step: "charge", Skipped: true},
			{Step: "reserve", Err: errors.New("release failed")},
		},
	}
	p.NoError(p.store.SaveRun(run))

	got, err := p.store.GetRun("pg-test-2")
	p.NoError(err)
	p.EqualError(got.Err, "card declined")
	p.Len(got.Compensations, 2)
	p.True(got.Compensations[0].Skipped)
	p.EqualError(got.Compensations[1].Err, "release failed")
}

func (p *PostgresStoreTestSuite) TestPostgresRunStore_NotFound() {
	_, err := p.store.GetRun("no-such-run")
	p.ErrorIs(err, corep.ErrRunNotFound)

	err = p.store.UpdateRun(&api.Run{ID: "no-such-run"})
	p.ErrorIs(err, corep.ErrRunNotFound)
}

func (p *PostgresStoreTestSuite) TestPostgresRunStore_ListRunsFilters() {
	runs := []*api.Run{
		{ID: "pg-list-1", Saga: "create-order", Status: api.StatusRunning},
		{ID: "pg-list-2", Saga: "create-order", Status: api.StatusSucceeded},
		{ID: "pg-list-3", Saga: "delete-brand", Status: api.StatusSucceeded},
	}
	for _, run := range runs {
		p.NoErrorf(p.store.SaveRun(run), "SaveRun(%s) failed", run.ID)
	}

	all, err := p.store.ListRuns(corep.RunFilter{})
	p.NoError(err)
	p.Len(all, 3)

	bySaga, err := p.store.ListRuns(corep.RunFilter{Saga: "create-order"})
	p.NoError(err)
	p.Len(bySaga, 2)

	byStatus, err := p.store.ListRuns(corep.RunFilter{Status: api.StatusSucceeded})
	p.NoError(err)
	p.Len(byStatus, 2)

	both, err := p.store.ListRuns(corep.RunFilter{Saga: "create-order", Status: api.StatusSucceeded})
	p.NoError(err)
	p.Len(both, 1)
	p.Equal("pg-list-2", both[0].ID)
}

func (p *PostgresStoreTestSuite) TestPostgresEventStore_AppendAndList() {
	events := []api.RunEvent{
		{RunID: "pg-ev-1", Type: api.EventRunStarted, Saga: "create-order"},
		{RunID: "pg-ev-1", Type: api.EventStepStarted, Saga: "create-order", Step: "reserve"},
		{RunID: "pg-ev-1", Type: api.EventStepFailed, Saga: "create-order", Step: "reserve", Detail: "out of stock"},
		{RunID: "pg-ev-2", Type: api.EventRunStarted, Saga: "delete-brand"},
	}
	for _, ev := range events {
		p.NoError(p.events.AppendEvent(p.ctx, ev))
	}

	got, err := p.events.ListEvents(p.ctx, "pg-ev-1")
	p.NoError(err)
	p.Len(got, 3)
	p.Equal(api.EventRunStarted, got[0].Type)
	p.Equal("reserve", got[1].Step)
	p.Equal("out of stock", got[2].Detail)
	p.False(got[0].At.IsZero())

	none, err := p.events.ListEvents(p.ctx, "pg-ev-99")
	p.NoError(err)
	p.Empty(none)
}
