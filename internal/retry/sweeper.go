package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/educreche/notify-gateway/internal/logger"
	"github.com/educreche/notify-gateway/internal/metrics"
	"github.com/educreche/notify-gateway/internal/model"
	"go.uber.org/zap"
)

// Log is the slice of the message-log service the retry path needs; satisfied
// by *messagelog.Service, faked in tests.
type Log interface {
	SelectEligible(ctx context.Context, channel model.Channel, limit int, staleClaim time.Duration) ([]model.MessageRecord, error)
	Claim(ctx context.Context, id string, expectedRetryCount int, staleClaim time.Duration) (bool, error)
	RecordSuccess(ctx context.Context, rec *model.MessageRecord, providerMessageID string, providerContactID *string) error
	RecordFailure(ctx context.Context, rec *model.MessageRecord, sendErr string) (model.MessageStatus, error)
	FailPermanently(ctx context.Context, rec *model.MessageRecord, reason string) error
}

type Config struct {
	BatchSize       int           // default 10
	InterSendDelay  time.Duration // throttle between provider calls, default 500ms
	StaleClaimAfter time.Duration // claims older than this are retryable again
}

// Result carries the aggregate counts of one sweep.
type Result struct {
	Processed int `json:"processed"`
	Succeeded int `json:"successCount"`
	Failed    int `json:"failCount"`
}

// Sweeper advances eligible message_log records toward terminal states, one
// channel per instance. Each record's outcome commits independently; no
// partial-batch rollback.
type Sweeper struct {
	log     Log
	channel Channel
	cfg     Config

	sleep func(time.Duration) // test seam
}

func NewSweeper(log Log, channel Channel, cfg Config) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.InterSendDelay <= 0 {
		cfg.InterSendDelay = 500 * time.Millisecond
	}
	if cfg.StaleClaimAfter <= 0 {
		cfg.StaleClaimAfter = 10 * time.Minute
	}
	return &Sweeper{log: log, channel: channel, cfg: cfg, sleep: time.Sleep}
}

// Sweep runs one bounded pass. Failures are isolated per record; one bad
// record never blocks the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	ch := s.channel.Name()
	lg := logger.L().With(zap.String("channel", ch.String()))

	if !s.channel.Configured() {
		return Result{}, fmt.Errorf("%s provider not configured", ch)
	}

	batch, err := s.log.SelectEligible(ctx, ch, s.cfg.BatchSize, s.cfg.StaleClaimAfter)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i := range batch {
		rec := &batch[i]

		if i > 0 {
			// fixed throttle between provider calls within a batch
			s.sleep(s.cfg.InterSendDelay)
		}

		status, skipped := s.processOne(ctx, rec, lg)
		if skipped {
			continue
		}
		res.Processed++
		if status == model.StatusSent {
			res.Succeeded++
		} else {
			res.Failed++
		}
		metrics.RetrySweepTotal.WithLabelValues(ch.String(), status.String()).Inc()
	}

	lg.Info("retry sweep completed",
		zap.Int("eligible", len(batch)),
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Sweeper) processOne(ctx context.Context, rec *model.MessageRecord, lg *zap.Logger) (model.MessageStatus, bool) {
	// Malformed records can never succeed on retry.
	if !rec.Resendable() {
		if err := s.log.FailPermanently(ctx, rec, "missing message content"); err != nil {
			lg.Error("short-circuit failed", zap.String("id", rec.ID), zap.Error(err))
			return "", true
		}
		return model.StatusFailedPermanent, false
	}

	// Conditional claim guards against an overlapping sweep dispatching the
	// same record twice.
	claimed, err := s.log.Claim(ctx, rec.ID, rec.RetryCount, s.cfg.StaleClaimAfter)
	if err != nil {
		lg.Error("claim failed", zap.String("id", rec.ID), zap.Error(err))
		return "", true
	}
	if !claimed {
		return "", true
	}

	status, err := Deliver(ctx, s.log, s.channel, rec)
	if err != nil {
		lg.Error("delivery bookkeeping failed", zap.String("id", rec.ID), zap.Error(err))
		return "", true
	}
	if status == model.StatusFailedPermanent {
		lg.Warn("record is now permanent",
			zap.String("id", rec.ID),
			zap.Int("retry_count", rec.RetryCount),
		)
	}
	return status, false
}
