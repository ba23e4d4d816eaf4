package model

import "time"

// OutboxEvent rows are written in the same transaction as the message_log
// mutation they describe; the relay ships them to Kafka for the audit store.
type OutboxEvent struct {
	ID          int64      `db:"id"`
	Aggregate   string     `db:"aggregate"`    // "message_log"
	AggregateID string     `db:"aggregate_id"` // MessageRecord.ID
	Topic       string     `db:"topic"`
	Payload     []byte     `db:"payload"`
	Attempts    int        `db:"attempts"`
	PublishedAt *time.Time `db:"published_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// MessageEvent is the payload published on the audit topic for every
// message_log status transition.
type MessageEvent struct {
	MessageID  string        `json:"message_id"`
	Channel    Channel       `json:"channel"`
	Recipient  string        `json:"recipient"`
	Template   string        `json:"template"`
	Status     MessageStatus `json:"status"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
