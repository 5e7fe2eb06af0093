package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxState int

const (
	OutboxStateNotPublished OutboxState = iota
	OutboxStateInProgress
	OutboxStatePublished
	OutboxStatePublishedFailed
)

func (s OutboxState) String() string {
	switch s {
	case OutboxStateNotPublished:
		return "NotPublished"
	case OutboxStateInProgress:
		return "InProgress"
	case OutboxStatePublished:
		return "Published"
	case OutboxStatePublishedFailed:
		return "PublishedFailed"
	default:
		return fmt.Sprintf("OutboxState(%d)", int(s))
	}
}

// OutboxEntry is an integration event waiting for publication. EventID equals
// the id of the serialized event; TransactionID groups the entries written by
// one unit of work.
type OutboxEntry struct {
	EventID       uuid.UUID   `db:"event_id"`
	TypeName      string      `db:"type_name"`
	Payload       []byte      `db:"payload"`
	State         OutboxState `db:"state"`
	TimesSent     int         `db:"times_sent"`
	CreatedAt     time.Time   `db:"created_at"`
	LastAttemptAt *time.Time  `db:"last_attempt_at"`
	TransactionID uuid.UUID   `db:"transaction_id"`
}

func NewOutboxEntry(event Event, transactionID uuid.UUID, createdAt time.Time) (OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}

	return OutboxEntry{
		EventID:       event.EventID(),
		TypeName:      event.EventType(),
		Payload:       payload,
		State:         OutboxStateNotPublished,
		CreatedAt:     createdAt,
		TransactionID: transactionID,
	}, nil
}

type IdempotencyRecord struct {
	RequestID  uuid.UUID `db:"request_id"`
	Name       string    `db:"name"`
	ReceivedAt time.Time `db:"received_at"`
}
