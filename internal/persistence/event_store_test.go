package persistence

import (
	"context"
	"testing"

	"github.com/okarhu/unwind/pkg/api"
)

func TestInMemoryEventStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore()

	events := []api.RunEvent{
		{RunID: "run-1", Type: api.EventRunStarted, Saga: "create-order"},
		{RunID: "run-1", Type: api.EventStepStarted, Saga: "create-order", Step: "reserve"},
		{RunID: "run-2", Type: api.EventRunStarted, Saga: "delete-brand"},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != api.EventRunStarted || got[1].Step != "reserve" {
		t.Fatalf("unexpected events: %+v", got)
	}

	empty, err := store.ListEvents(ctx, "run-99")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no events, got %d", len(empty))
	}
}

func TestSQLiteEventStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteEventStore(newTestDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteEventStore failed: %v", err)
	}

	events := []api.RunEvent{
		{RunID: "run-1", Type: api.EventRunStarted, Saga: "create-order"},
		{RunID: "run-1", Type: api.EventStepStarted, Saga: "create-order", Step: "reserve"},
		{RunID: "run-1", Type: api.EventStepFailed, Saga: "create-order", Step: "reserve", Detail: "out of stock"},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Type != events[i].Type || ev.Step != events[i].Step {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
		if ev.At.IsZero() {
			t.Fatalf("event %d has zero timestamp", i)
		}
	}
	if got[2].Detail != "out of stock" {
		t.Fatalf("detail did not round-trip: %+v", got[2])
	}
}
