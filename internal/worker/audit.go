package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/educreche/notify-gateway/internal/kafka"
	"github.com/educreche/notify-gateway/internal/logger"
	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/repository"
	"go.uber.org/zap"
)

// Audit consumes message_log status events from Kafka and lands them in the
// ClickHouse audit store with size/time-based batch flushes.
type Audit struct {
	Consumer  *kafka.Consumer
	Repo      repository.CHAuditRepository
	BatchSize int
	BatchWait time.Duration
}

func NewAudit(consumer *kafka.Consumer, repo repository.CHAuditRepository) *Audit {
	return &Audit{
		Consumer:  consumer,
		Repo:      repo,
		BatchSize: 200,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled. At-least-once: Kafka offsets commit only
// after the ClickHouse insert; duplicates are acceptable in an audit log.
func (a *Audit) Run(ctx context.Context) error {
	if a.BatchSize <= 0 {
		a.BatchSize = 200
	}
	if a.BatchWait <= 0 {
		a.BatchWait = time.Second
	}

	var (
		events  []model.MessageEvent
		pending []kafka.Message
		lastAt  = time.Now()
	)

	flush := func() {
		if len(events) == 0 {
			return
		}
		if err := a.Repo.InsertBatch(ctx, events); err != nil {
			logger.L().Error("audit flush failed", zap.Int("batch", len(events)), zap.Error(err))
			// keep the buffer; the next flush retries the same batch
			return
		}
		for _, m := range pending {
			if err := a.Consumer.Commit(ctx, m); err != nil {
				logger.L().Error("audit commit failed", zap.Error(err))
			}
		}
		logger.L().Debug("audit events flushed", zap.Int("count", len(events)))
		events = events[:0]
		pending = pending[:0]
		lastAt = time.Now()
	}

	for {
		if ctx.Err() != nil {
			flush()
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, a.BatchWait)
		m, err := a.Consumer.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				flush()
				return nil
			}
			// fetch timeout doubles as the time-based flush trigger
			flush()
			continue
		}

		var ev model.MessageEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.MessageID == "" {
			// poison message: commit and skip
			_ = a.Consumer.Commit(ctx, m)
			logger.L().Warn("bad audit event payload", zap.Error(err))
			continue
		}

		events = append(events, ev)
		pending = append(pending, m)

		if len(events) >= a.BatchSize || time.Since(lastAt) >= a.BatchWait {
			flush()
		}
	}
}
