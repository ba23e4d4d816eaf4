package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// HealthStats is a trailing-window aggregate over message_log used by the
// alerting monitor.
type HealthStats struct {
	Total     int `db:"total"`
	Sent      int `db:"sent"`
	Errored   int `db:"errored"` // error + failed_permanent
	Permanent int `db:"permanent"`
}

// MessageLogRepository defines persistence for the message_log table.
type MessageLogRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, m model.MessageRecord) error
	GetByID(ctx context.Context, id string) (*model.MessageRecord, error)

	// SelectEligible returns up to limit retryable records of the channel,
	// oldest-created first. A record is eligible when status=error with
	// retry_count below the cap and next_retry_at unset or due, or when a
	// claim has gone stale (claimed longer than staleClaim ago).
	SelectEligible(ctx context.Context, channel model.Channel, limit int, staleClaim time.Duration) ([]model.MessageRecord, error)

	// Claim conditionally moves one record from error (or stale claimed) to
	// claimed, guarded on the retry_count the caller read. Returns false when
	// another sweep got there first.
	Claim(ctx context.Context, id string, expectedRetryCount int, staleClaim time.Duration) (bool, error)

	UpdateOnSuccess(ctx context.Context, tx *sqlx.Tx, id, providerMessageID string, providerContactID *string) error
	UpdateOnFailure(ctx context.Context, tx *sqlx.Tx, id string, retryCount int, status model.MessageStatus, errMsg string, nextRetryAt *time.Time) error
	MarkPermanent(ctx context.Context, tx *sqlx.Tx, id, reason string) error

	Stats(ctx context.Context, channel model.Channel, since time.Time) (HealthStats, error)
}

type MessageLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessageLogRepository(db *sqlx.DB) *MessageLogRepositoryImpl {
	return &MessageLogRepositoryImpl{db: db}
}

var _ MessageLogRepository = (*MessageLogRepositoryImpl)(nil)

func (r *MessageLogRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *MessageLogRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, m model.MessageRecord) error {
	const q = `
		INSERT INTO message_log
		    (id, channel, recipient, provider_contact_id, subject, body, template,
		     status, retry_count, next_retry_at, last_retry_at, error_message,
		     provider_message_id, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			m.ID, m.Channel.String(), m.Recipient, m.ProviderContactID,
			m.Subject, m.Body, m.Template,
			m.Status.String(), m.RetryCount, m.NextRetryAt, m.LastRetryAt,
			m.ErrorMessage, m.ProviderMessageID,
		)
		return err
	})
}

func (r *MessageLogRepositoryImpl) GetByID(ctx context.Context, id string) (*model.MessageRecord, error) {
	var m model.MessageRecord
	err := r.db.GetContext(ctx, &m, `SELECT * FROM message_log WHERE id = ? LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageLogRepositoryImpl) SelectEligible(ctx context.Context, channel model.Channel, limit int, staleClaim time.Duration) ([]model.MessageRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	// FIFO by created_at so a burst of recent failures cannot starve older ones.
	const q = `
		SELECT * FROM message_log
		WHERE channel = ?
		  AND retry_count < ?
		  AND (
		        (status = 'error' AND (next_retry_at IS NULL OR next_retry_at <= NOW()))
		     OR (status = 'claimed' AND updated_at <= ?)
		  )
		ORDER BY created_at ASC
		LIMIT ?
	`
	var rows []model.MessageRecord
	staleBefore := time.Now().Add(-staleClaim)
	if err := r.db.SelectContext(ctx, &rows, q, channel.String(), model.MaxRetries, staleBefore, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MessageLogRepositoryImpl) Claim(ctx context.Context, id string, expectedRetryCount int, staleClaim time.Duration) (bool, error) {
	const q = `
		UPDATE message_log
		   SET status = 'claimed', updated_at = NOW()
		 WHERE id = ?
		   AND retry_count = ?
		   AND (status = 'error' OR (status = 'claimed' AND updated_at <= ?))
	`
	res, err := r.db.ExecContext(ctx, q, id, expectedRetryCount, time.Now().Add(-staleClaim))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *MessageLogRepositoryImpl) UpdateOnSuccess(ctx context.Context, tx *sqlx.Tx, id, providerMessageID string, providerContactID *string) error {
	const q = `
		UPDATE message_log
		   SET status = 'sent',
		       provider_message_id = ?,
		       provider_contact_id = COALESCE(?, provider_contact_id),
		       error_message = NULL,
		       next_retry_at = NULL,
		       last_retry_at = NOW(),
		       updated_at = NOW()
		 WHERE id = ?
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, providerMessageID, providerContactID, id)
		return err
	})
}

func (r *MessageLogRepositoryImpl) UpdateOnFailure(ctx context.Context, tx *sqlx.Tx, id string, retryCount int, status model.MessageStatus, errMsg string, nextRetryAt *time.Time) error {
	const q = `
		UPDATE message_log
		   SET status = ?,
		       retry_count = ?,
		       error_message = ?,
		       next_retry_at = ?,
		       last_retry_at = NOW(),
		       updated_at = NOW()
		 WHERE id = ?
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, status.String(), retryCount, errMsg, nextRetryAt, id)
		return err
	})
}

// MarkPermanent short-circuits a record to failed_permanent without touching
// retry_count (malformed-content path).
func (r *MessageLogRepositoryImpl) MarkPermanent(ctx context.Context, tx *sqlx.Tx, id, reason string) error {
	const q = `
		UPDATE message_log
		   SET status = 'failed_permanent',
		       error_message = ?,
		       next_retry_at = NULL,
		       updated_at = NOW()
		 WHERE id = ?
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, reason, id)
		return err
	})
}

func (r *MessageLogRepositoryImpl) Stats(ctx context.Context, channel model.Channel, since time.Time) (HealthStats, error) {
	const q = `
		SELECT COUNT(*)                                                        AS total,
		       COALESCE(SUM(status = 'sent'), 0)                               AS sent,
		       COALESCE(SUM(status IN ('error', 'failed_permanent')), 0)       AS errored,
		       COALESCE(SUM(status = 'failed_permanent'), 0)                   AS permanent
		  FROM message_log
		 WHERE channel = ? AND created_at >= ?
	`
	var st HealthStats
	if err := r.db.GetContext(ctx, &st, q, channel.String(), since); err != nil {
		return HealthStats{}, err
	}
	return st, nil
}
