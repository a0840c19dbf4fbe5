package api

import "time"

// EventType identifies a run history event.
type EventType string

const (
	EventRunStarted            EventType = "run.started"
	EventRunSucceeded          EventType = "run.succeeded"
	EventRunShortCircuited     EventType = "run.short_circuited"
	EventRunFailed             EventType = "run.failed"
	EventRunCompensated        EventType = "run.compensated"
	EventRunCompensationFailed EventType = "run.compensation_failed"

	EventStepStarted     EventType = "step.started"
	EventStepSucceeded   EventType = "step.succeeded"
	EventStepFailed      EventType = "step.failed"
	EventStepCompensated EventType = "step.compensated"
)

// RunEvent is a minimal append-only history record for audit/debugging.
// It is intentionally small and stable; richer history can be layered later.
type RunEvent struct {
	RunID string
	At    time.Time
	Type  EventType

	// Optional context.
	Saga string
	Step string

	// Small, human-oriented details (e.g. an error string).
	// Keep this low-volume: do NOT dump large payloads here.
	Detail string
}
