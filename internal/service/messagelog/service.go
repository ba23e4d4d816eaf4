package messagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

const AuditTopic = "notify.message-events"

// Backoff returns the delay before the next retry attempt: 3^retryCount * 5
// minutes (15m, 45m, 135m). Small base and short initial delay because these
// are interactive notifications; operators want failures retried within the
// hour, not over days.
func Backoff(retryCount int) time.Duration {
	mins := 5
	for i := 0; i < retryCount; i++ {
		mins *= 3
	}
	return time.Duration(mins) * time.Minute
}

// Service is the single writer of message_log state. Every mutation commits
// the row update and its audit outbox event in one transaction; each record's
// outcome is committed independently of its batch.
type Service struct {
	db     *sqlx.DB
	log    repository.MessageLogRepository
	outbox repository.OutboxRepository
}

func New(db *sqlx.DB, logRepo repository.MessageLogRepository, outboxRepo repository.OutboxRepository) *Service {
	return &Service{db: db, log: logRepo, outbox: outboxRepo}
}

func (s *Service) SelectEligible(ctx context.Context, channel model.Channel, limit int, staleClaim time.Duration) ([]model.MessageRecord, error) {
	return s.log.SelectEligible(ctx, channel, limit, staleClaim)
}

func (s *Service) Claim(ctx context.Context, id string, expectedRetryCount int, staleClaim time.Duration) (bool, error) {
	return s.log.Claim(ctx, id, expectedRetryCount, staleClaim)
}

// Create persists a new record in pending state and returns it.
func (s *Service) Create(ctx context.Context, channel model.Channel, recipient, subject, body, template string) (*model.MessageRecord, error) {
	rec := model.MessageRecord{
		ID:        util.New(),
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Template:  template,
		Status:    model.StatusPending,
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.log.Insert(ctx, tx, rec); err != nil {
			return err
		}
		return s.emit(ctx, tx, &rec, rec.Status, "")
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordSuccess marks the record sent, stores the provider message id and
// caches the resolved contact id for future sends.
func (s *Service) RecordSuccess(ctx context.Context, rec *model.MessageRecord, providerMessageID string, providerContactID *string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.log.UpdateOnSuccess(ctx, tx, rec.ID, providerMessageID, providerContactID); err != nil {
			return err
		}
		rec.Status = model.StatusSent
		rec.ProviderMessageID = &providerMessageID
		if providerContactID != nil {
			rec.ProviderContactID = providerContactID
		}
		return s.emit(ctx, tx, rec, model.StatusSent, "")
	})
}

// RecordFailure increments retry_count and either schedules the next attempt
// with exponential backoff or, at the attempt cap, finalizes the record as
// failed_permanent. Returns the resulting status.
func (s *Service) RecordFailure(ctx context.Context, rec *model.MessageRecord, sendErr string) (model.MessageStatus, error) {
	retryCount := rec.RetryCount + 1

	status := model.StatusError
	var nextRetryAt *time.Time
	if retryCount >= model.MaxRetries {
		status = model.StatusFailedPermanent
	} else {
		t := time.Now().Add(Backoff(retryCount))
		nextRetryAt = &t
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.log.UpdateOnFailure(ctx, tx, rec.ID, retryCount, status, sendErr, nextRetryAt); err != nil {
			return err
		}
		rec.RetryCount = retryCount
		rec.Status = status
		rec.NextRetryAt = nextRetryAt
		rec.ErrorMessage = &sendErr
		return s.emit(ctx, tx, rec, status, sendErr)
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// FailPermanently short-circuits a record that can never succeed on retry
// (missing content, unresolvable destination). retry_count stays untouched.
func (s *Service) FailPermanently(ctx context.Context, rec *model.MessageRecord, reason string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.log.MarkPermanent(ctx, tx, rec.ID, reason); err != nil {
			return err
		}
		rec.Status = model.StatusFailedPermanent
		rec.NextRetryAt = nil
		rec.ErrorMessage = &reason
		return s.emit(ctx, tx, rec, model.StatusFailedPermanent, reason)
	})
}

func (s *Service) emit(ctx context.Context, tx *sqlx.Tx, rec *model.MessageRecord, status model.MessageStatus, errMsg string) error {
	payload, err := json.Marshal(model.MessageEvent{
		MessageID:  rec.ID,
		Channel:    rec.Channel,
		Recipient:  rec.Recipient,
		Template:   rec.Template,
		Status:     status,
		RetryCount: rec.RetryCount,
		Error:      errMsg,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}
	return s.outbox.Insert(ctx, tx, "message_log", rec.ID, AuditTopic, payload)
}

func (s *Service) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if s.db == nil {
		return fn(nil)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
