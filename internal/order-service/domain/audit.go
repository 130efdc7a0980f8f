package domain

import "time"

// Level is the severity of an audit entry.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Audit event tags written by the registration saga.
const (
	EventOrderStart      = "ORDER_START"
	EventValidationError = "VALIDATION_ERROR"
	EventCustomerInvalid = "CUSTOMER_INVALID"
	EventOrderConfirmed  = "ORDER_CONFIRMED"
)

// Column limits of the audit table.
const (
	MaxEventLen       = 100
	MaxDescriptionLen = 500
	MaxUserLen        = 100
)

// AuditEvent is an append-only record staged in the same transaction as the
// order it describes. A rollback discards it together with the order.
type AuditEvent struct {
	ID          int64
	Timestamp   time.Time
	Event       string
	Description string
	User        string // empty for system actions
	Level       Level
}

// NewAuditEvent stamps the event and clips the free-text fields to their
// column limits.
func NewAuditEvent(event, description, user string, level Level, now time.Time) AuditEvent {
	if level == "" {
		level = LevelInfo
	}
	return AuditEvent{
		Timestamp:   now.UTC(),
		Event:       clip(event, MaxEventLen),
		Description: clip(description, MaxDescriptionLen),
		User:        clip(user, MaxUserLen),
		Level:       level,
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
