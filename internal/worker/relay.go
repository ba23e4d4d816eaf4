package worker

import (
	"context"
	"time"

	"github.com/educreche/notify-gateway/internal/logger"
	"github.com/educreche/notify-gateway/internal/repository"
	"go.uber.org/zap"
)

// Publisher is the producer slice the relay needs.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Relay polls the outbox table and ships unpublished events to Kafka in id
// order. At-least-once: an event is marked published only after the broker
// acknowledged it, so a crash between the two can re-deliver.
type Relay struct {
	Outbox       repository.OutboxRepository
	Producer     Publisher
	PollInterval time.Duration
	BatchSize    int
}

func NewRelay(outbox repository.OutboxRepository, producer Publisher) *Relay {
	return &Relay{
		Outbox:       outbox,
		Producer:     producer,
		PollInterval: time.Second,
		BatchSize:    100,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if r.PollInterval <= 0 {
		r.PollInterval = time.Second
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}

	tick := time.NewTicker(r.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := r.relayOnce(ctx); err != nil {
				logger.L().Error("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

func (r *Relay) relayOnce(ctx context.Context) error {
	events, err := r.Outbox.SelectUnpublished(ctx, r.BatchSize)
	if err != nil {
		return err
	}

	published := make([]int64, 0, len(events))
	for _, ev := range events {
		if err := r.Producer.Publish(ctx, ev.AggregateID, ev.Payload); err != nil {
			// Stop the pass here to preserve per-aggregate ordering; bump the
			// attempt counter so a stuck event is visible.
			_ = r.Outbox.BumpAttempts(ctx, ev.ID)
			logger.L().Warn("outbox publish failed",
				zap.Int64("outbox_id", ev.ID),
				zap.String("aggregate_id", ev.AggregateID),
				zap.Error(err),
			)
			break
		}
		published = append(published, ev.ID)
	}

	if len(published) > 0 {
		if err := r.Outbox.MarkPublished(ctx, published); err != nil {
			return err
		}
		logger.L().Debug("outbox events relayed", zap.Int("count", len(published)))
	}
	return nil
}
