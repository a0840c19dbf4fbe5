package persistence

import (
	"errors"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

func (r *RedisStoreTestSuite) TestRedisRunStore_SaveGetUpdate() {
	run := &api.Run{
		ID:     "redis-test-1",
		Saga:   "create-order",
		Status: api.StatusRunning,
		Input: redisSamplePayload{
			Msg: "hello",
			N:   42,
		},
	}

	err := r.store.SaveRun(run)
	r.NoError(err, "SaveRun failed")

	got, err := r.store.GetRun("redis-test-1")
	r.NoError(err, "GetRun failed")

	r.Equal(run.ID, got.ID)
	r.Equal(run.Saga, got.Saga)
	r.Equal(api.StatusRunning, got.Status)

	inPayload, ok := got.Input.(redisSamplePayload)
	r.Truef(ok, "expected Input of type redisSamplePayload, got %T", got.Input)
	r.Equal("hello", inPayload.Msg)
	r.Equal(42, inPayload.N)

	// Update: mark compensated with completed steps, records and error.
	got.Status = api.StatusCompensated
	got.CurrentNode = 2
	got.Completed = []string{"reserve", "charge"}
	got.Compensations = []api.CompensationResult{
		{Step: "charge"},
		{Step: "reserve", Err: errors.New("release failed")},
	}
	got.Err = errors.New("something happened")

	err = r.store.UpdateRun(got)
	r.NoError(err, "UpdateRun failed")

	got2, err := r.store.GetRun(got.ID)
	r.NoError(err, "GetRun after update failed")

	r.Equal(api.StatusCompensated, got2.Status)
	r.Equal(2, got2.CurrentNode)
	r.Equal([]string{"reserve", "charge"}, got2.Completed)
	r.Len(got2.Compensations, 2)
	r.Equal("charge", got2.Compensations[0].Step)
	r.NoError(got2.Compensations[0].Err)
	r.EqualError(got2.Compensations[1].Err, "release failed")
	r.EqualError(got2.Err, "something happened")
}

func (r *RedisStoreTestSuite) TestRedisRunStore_NotFound() {
	_, err := r.store.GetRun("no-such-run")
	r.ErrorIs(err, corep.ErrRunNotFound)

	err = r.store.UpdateRun(&api.Run{ID: "no-such-run"})
	r.ErrorIs(err, corep.ErrRunNotFound)
}

func (r *RedisStoreTestSuite) TestRedisRunStore_ListRunsFilters() {
	runs := []*api.Run{
		{
			ID:     "redis-list-1",
			Saga:   "create-order",
			Status: api.StatusRunning,
			Input:  redisSamplePayload{Msg: "a1"},
		},
		{
			ID:     "redis-list-2",
			Saga:   "create-order",
			Status: api.StatusSucceeded,
			Input:  redisSamplePayload{Msg: "a2"},
		},
		{
			ID:     "redis-list-3",
			Saga:   "delete-brand",
			Status: api.StatusSucceeded,
			Input:  redisSamplePayload{Msg: "b1"},
		},
	}

	for _, run := range runs {
		err := r.store.SaveRun(run)
		r.NoErrorf(err, "SaveRun(%s) failed", run.ID)
	}

	all, err := r.store.ListRuns(corep.RunFilter{})
	r.NoError(err, "ListRuns (no filter) failed")
	r.Len(all, len(runs))

	bySaga, err := r.store.ListRuns(corep.RunFilter{Saga: "create-order"})
	r.NoError(err, "ListRuns (create-order) failed")
	r.Len(bySaga, 2)

	byStatus, err := r.store.ListRuns(corep.RunFilter{Status: api.StatusSucceeded})
	r.NoError(err, "ListRuns (SUCCEEDED) failed")
	r.Len(byStatus, 2)

	both, err := r.store.ListRuns(corep.RunFilter{
		Saga:   "create-order",
		Status: api.StatusSucceeded,
	})
	r.NoError(err, "ListRuns (create-order + SUCCEEDED) failed")
	r.Len(both, 1)
	r.Equal("redis-list-2", both[0].ID)
}

func (r *RedisStoreTestSuite) TestRedisRunStore_StaleStatusIndex() {
	run := &api.Run{
		ID:     "redis-stale-1",
		Saga:   "create-order",
		Status: api.StatusRunning,
	}
	r.NoError(r.store.SaveRun(run))

	run.Status = api.StatusSucceeded
	r.NoError(r.store.UpdateRun(run))

	// The RUNNING index set still holds the ID, but a payload re-check
	// must keep the run out of RUNNING results.
	stale, err := r.store.ListRuns(corep.RunFilter{Status: api.StatusRunning})
	r.NoError(err)
	r.Empty(stale)

	current, err := r.store.ListRuns(corep.RunFilter{Status: api.StatusSucceeded})
	r.NoError(err)
	r.Len(current, 1)
}

func (r *RedisStoreTestSuite) TestRedisEventStore_AppendAndList() {
	events := []api.RunEvent{
		{RunID: "redis-ev-1", Type: api.EventRunStarted, Saga: "create-order"},
		{RunID: "redis-ev-1", Type: api.EventStepStarted, Saga: "create-order", Step: "reserve"},
		{RunID: "redis-ev-1", Type: api.EventStepFailed, Saga: "create-order", Step: "reserve", Detail: "out of stock"},
		{RunID: "redis-ev-2", Type: api.EventRunStarted, Saga: "delete-brand"},
	}
	for _, ev := range events {
		r.NoError(r.events.AppendEvent(r.ctx, ev))
	}

	got, err := r.events.ListEvents(r.ctx, "redis-ev-1")
	r.NoError(err)
	r.Len(got, 3)
	r.Equal(api.EventRunStarted, got[0].Type)
	r.Equal("reserve", got[1].Step)
	r.Equal("out of stock", got[2].Detail)
	r.False(got[0].At.IsZero())

	none, err := r.events.ListEvents(r.ctx, "redis-ev-99")
	r.NoError(err)
	r.Empty(none)
}
