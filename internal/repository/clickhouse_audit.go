package repository

import (
	"context"
	"time"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// AuditEventRow is the ClickHouse shape of one delivery-log event.
type AuditEventRow struct {
	MessageID  string    `db:"message_id"`
	Channel    string    `db:"channel"`
	Recipient  string    `db:"recipient"`
	Template   string    `db:"template"`
	Status     string    `db:"status"`
	RetryCount int       `db:"retry_count"`
	Error      string    `db:"error"`
	OccurredAt time.Time `db:"occurred_at"`
}

// CHAuditRepository stores and lists delivery audit events in ClickHouse.
type CHAuditRepository interface {
	InsertBatch(ctx context.Context, events []model.MessageEvent) error
	List(ctx context.Context, channel model.Channel, status model.MessageStatus, recipient string, limit, offset int) ([]AuditEventRow, error)
}

type chAuditRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHAuditRepository(ch *sqlx.DB) CHAuditRepository {
	return &chAuditRepository{ch: ch}
}

func (r *chAuditRepository) InsertBatch(ctx context.Context, events []model.MessageEvent) error {
	if len(events) == 0 {
		return nil
	}

	const q = `
		INSERT INTO notifygw.message_events
		    (message_id, channel, recipient, template, status, retry_count, error, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		if _, err := tx.ExecContext(ctx, q,
			e.MessageID, e.Channel.String(), e.Recipient, e.Template,
			e.Status.String(), e.RetryCount, e.Error, e.OccurredAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *chAuditRepository) List(ctx context.Context, channel model.Channel, status model.MessageStatus, recipient string, limit, offset int) ([]AuditEventRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT message_id, channel, recipient, template, status, retry_count, error, occurred_at
		FROM notifygw.message_events
		WHERE 1 = 1
	`
	args := []any{}

	if channel != "" {
		q += " AND channel = ?"
		args = append(args, channel.String())
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}
	if recipient != "" {
		q += " AND recipient = ?"
		args = append(args, recipient)
	}

	q += " ORDER BY occurred_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []AuditEventRow
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
