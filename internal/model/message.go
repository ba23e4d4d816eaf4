package model

import (
	"strings"
	"time"
)

type MessageStatus string

const (
	StatusPending         MessageStatus = "pending"
	StatusSent            MessageStatus = "sent"
	StatusError           MessageStatus = "error"
	StatusClaimed         MessageStatus = "claimed"
	StatusFailedPermanent MessageStatus = "failed_permanent"
)

func (s MessageStatus) String() string {
	return string(s)
}

func (s MessageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusError, StatusClaimed, StatusFailedPermanent:
		return true
	}
	return false
}

// Terminal reports whether no further automated action will touch the record.
func (s MessageStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailedPermanent
}

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) String() string { return string(c) }

// ParseChannel normalizes input; returns (value, true) if valid.
func ParseChannel(s string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail, true
	case "whatsapp":
		return ChannelWhatsApp, true
	default:
		return "", false
	}
}

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

// MaxRetries is the hard attempt cap; a record that fails this many times
// becomes failed_permanent and is never selected again.
const MaxRetries = 3

// MessageRecord is the DB entity persisted in message_log. One row per logical
// send attempt; retries mutate the row in place, rows are never deleted.
type MessageRecord struct {
	ID                string        `db:"id"`
	Channel           Channel       `db:"channel"`
	Recipient         string        `db:"recipient"` // email address or normalized phone
	ProviderContactID *string       `db:"provider_contact_id"`
	Subject           string        `db:"subject"` // empty for whatsapp
	Body              string        `db:"body"`
	Template          string        `db:"template"` // template classification tag
	Status            MessageStatus `db:"status"`
	RetryCount        int           `db:"retry_count"`
	NextRetryAt       *time.Time    `db:"next_retry_at"`
	LastRetryAt       *time.Time    `db:"last_retry_at"`
	ErrorMessage      *string       `db:"error_message"`
	ProviderMessageID *string       `db:"provider_message_id"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// Resendable reports whether the record still carries enough content to be
// handed to a provider. Records failing this can never succeed on retry.
func (m *MessageRecord) Resendable() bool {
	return strings.TrimSpace(m.Body) != "" && strings.TrimSpace(m.Recipient) != ""
}
