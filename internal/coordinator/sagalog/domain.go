// Package sagalog is the durable journal of saga transitions.
//
// The journal lives outside the business transaction: when a registration
// rolls back, its audit rows disappear with it, but the journal still shows
// which step failed, what compensation ran and which trace to open.
package sagalog

import "time"

// Status is the lifecycle state recorded by one journal entry.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Terminal reports whether no further entries follow for the saga.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Entry is one immutable row of the journal.
type Entry struct {
	ID     int64
	SagaID string
	Status Status

	// Step is the step that just finished, failed, or is being compensated.
	Step string

	// Payload is the input that started the saga, written on STARTED only.
	Payload string

	// Errors holds the failure of the step and of every compensation that
	// failed after it.
	Errors []string

	// TraceID and SpanID point to the span active when the entry was written.
	TraceID string
	SpanID  string

	RecordedAt time.Time
}
