package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/educreche/notify-gateway/internal/config"
	"github.com/educreche/notify-gateway/internal/db"
	"github.com/educreche/notify-gateway/internal/logger"
	"github.com/educreche/notify-gateway/internal/metrics"
	"github.com/educreche/notify-gateway/internal/provider"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/retry"
	"github.com/educreche/notify-gateway/internal/service/messagelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Run periodic retry sweeps (email + whatsapp)",
	RunE:  runRetry,
}

// runRetry is the long-running alternative to the cron-invoked HTTP triggers:
// one ticker, both channels, same sweep function. The claim guard makes an
// overlap with an HTTP-triggered sweep safe.
func runRetry(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	logSvc := messagelog.New(dbx, repository.NewMessageLogRepository(dbx), repository.NewOutboxRepository(dbx))

	waChannel := retry.WhatsAppChannel{Client: provider.NewWhatsAppClient(
		cfg.WhatsApp.BaseURL, cfg.WhatsApp.APIKey, cfg.WhatsApp.LocationID,
		cfg.WhatsApp.TimeoutMs, cfg.WhatsApp.Breaker.FailThreshold, cfg.WhatsApp.Breaker.OpenForMs,
	)}
	emailChannel := retry.EmailChannel{Client: provider.NewEmailClient(
		cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.From,
		cfg.Email.TimeoutMs, cfg.Email.Breaker.FailThreshold, cfg.Email.Breaker.OpenForMs,
	)}

	retryCfg := retry.Config{
		BatchSize:       cfg.Retry.BatchSize,
		InterSendDelay:  cfg.Retry.InterSendDelay,
		StaleClaimAfter: cfg.Retry.StaleClaimAfter,
	}
	sweepers := []*retry.Sweeper{
		retry.NewSweeper(logSvc, emailChannel, retryCfg),
		retry.NewSweeper(logSvc, waChannel, retryCfg),
	}

	interval := cfg.Retry.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> retry worker started interval=%s batchSize=%d", interval, retryCfg.BatchSize)

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			for _, s := range sweepers {
				if _, err := s.Sweep(ctx); err != nil {
					log.Printf("[retry] sweep err: %v", err)
				}
			}
		}
	}
}
