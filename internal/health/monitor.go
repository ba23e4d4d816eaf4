package health

import (
	"context"
	"fmt"
	"time"

	"github.com/educreche/notify-gateway/internal/logger"
	"github.com/educreche/notify-gateway/internal/metrics"
	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/util"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Status string

const (
	StatusHealthy Status = "healthy"
	StatusWarning Status = "warning"
)

type Config struct {
	ErrorRateThreshold float64       // default 0.20
	MinEmailsForAlert  int           // default 5
	TimeWindow         time.Duration // default 60m
	AlertCooldown      time.Duration // default 60m
}

func (c Config) withDefaults() Config {
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = 0.20
	}
	if c.MinEmailsForAlert <= 0 {
		c.MinEmailsForAlert = 5
	}
	if c.TimeWindow <= 0 {
		c.TimeWindow = time.Hour
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = time.Hour
	}
	return c
}

type Metrics struct {
	Total     int     `json:"total"`
	Sent      int     `json:"sent"`
	Errored   int     `json:"errored"`
	ErrorRate float64 `json:"errorRate"`
}

type Report struct {
	Status       Status  `json:"healthStatus"`
	AlertCreated bool    `json:"alertCreated"`
	Metrics      Metrics `json:"metrics"`
	Config       Config  `json:"config"`
}

// Stats is the message-log slice the monitor reads.
type Stats interface {
	Stats(ctx context.Context, channel model.Channel, since time.Time) (repository.HealthStats, error)
}

// Monitor is a simple threshold detector over a trailing delivery window.
// Precision is not the goal; the one-alert-per-hour guard against operator
// fatigue is.
type Monitor struct {
	stats         Stats
	notifications repository.NotificationsRepository
	accounts      repository.AccountsRepository
	rds           *redis.Client
	cfg           Config
}

func NewMonitor(stats Stats, notifications repository.NotificationsRepository, accounts repository.AccountsRepository, rds *redis.Client, cfg Config) *Monitor {
	return &Monitor{
		stats:         stats,
		notifications: notifications,
		accounts:      accounts,
		rds:           rds,
		cfg:           cfg.withDefaults(),
	}
}

// Check runs one monitor pass for the channel. Overrides replace individual
// config values for this invocation only.
func (m *Monitor) Check(ctx context.Context, channel model.Channel, overrides Config) (Report, error) {
	cfg := m.cfg
	if overrides.ErrorRateThreshold > 0 {
		cfg.ErrorRateThreshold = overrides.ErrorRateThreshold
	}
	if overrides.MinEmailsForAlert > 0 {
		cfg.MinEmailsForAlert = overrides.MinEmailsForAlert
	}
	if overrides.TimeWindow > 0 {
		cfg.TimeWindow = overrides.TimeWindow
	}

	st, err := m.stats.Stats(ctx, channel, time.Now().Add(-cfg.TimeWindow))
	if err != nil {
		return Report{}, err
	}

	met := Metrics{Total: st.Total, Sent: st.Sent, Errored: st.Errored}
	if st.Total > 0 {
		met.ErrorRate = float64(st.Errored) / float64(st.Total)
	}

	rep := Report{Status: StatusHealthy, Metrics: met, Config: cfg}
	if st.Total < cfg.MinEmailsForAlert || met.ErrorRate < cfg.ErrorRateThreshold {
		return rep, nil
	}
	rep.Status = StatusWarning

	allowed, err := m.acquireGuard(ctx, channel, cfg.AlertCooldown)
	if err != nil {
		return rep, err
	}
	if !allowed {
		return rep, nil
	}

	if err := m.alertOperators(ctx, channel, met, cfg); err != nil {
		return rep, err
	}
	rep.AlertCreated = true
	metrics.HealthAlertsTotal.Inc()

	logger.L().Warn("delivery health alert raised",
		zap.String("channel", channel.String()),
		zap.Int("total", met.Total),
		zap.Float64("error_rate", met.ErrorRate),
	)
	return rep, nil
}

// acquireGuard enforces one alert per cooldown window per channel. Redis
// SET NX EX is the primary guard; the notifications table is the fallback
// when Redis is not reachable.
func (m *Monitor) acquireGuard(ctx context.Context, channel model.Channel, cooldown time.Duration) (bool, error) {
	if m.rds != nil {
		key := "health:alert:" + channel.String()
		ok, err := m.rds.SetNX(ctx, key, time.Now().Unix(), cooldown).Result()
		if err == nil {
			return ok, nil
		}
		logger.L().Warn("redis alert guard unavailable, falling back to db", zap.Error(err))
	}

	exists, err := m.notifications.ExistsSince(ctx, model.CategoryDeliveryHealth, time.Now().Add(-cooldown))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (m *Monitor) alertOperators(ctx context.Context, channel model.Channel, met Metrics, cfg Config) error {
	admins, err := m.accounts.ListAdmins(ctx)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"%s delivery degraded: %d/%d failed (%.0f%%) in the last %s",
		channel, met.Errored, met.Total, met.ErrorRate*100, cfg.TimeWindow,
	)

	batch := make([]model.Notification, 0, len(admins))
	for _, a := range admins {
		batch = append(batch, model.Notification{
			ID:        util.New(),
			AccountID: a.ID,
			Category:  model.CategoryDeliveryHealth,
			Title:     "Delivery health warning",
			Body:      body,
		})
	}
	return m.notifications.InsertBatch(ctx, nil, batch)
}
