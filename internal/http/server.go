package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/educreche/notify-gateway/internal/config"
	"github.com/educreche/notify-gateway/internal/health"
	"github.com/educreche/notify-gateway/internal/http/middleware"
	"github.com/educreche/notify-gateway/internal/metrics"
	"github.com/educreche/notify-gateway/internal/provider"
	"github.com/educreche/notify-gateway/internal/reconcile"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/retry"
	"github.com/educreche/notify-gateway/internal/service/messagelog"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	messagesRepo := repository.NewMessageLogRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)
	invoicesRepo := repository.NewInvoicesRepository(mysqlDB)
	subscriptionsRepo := repository.NewSubscriptionsRepository(mysqlDB)
	contractsRepo := repository.NewContractsRepository(mysqlDB)
	notificationsRepo := repository.NewNotificationsRepository(mysqlDB)
	accountsRepo := repository.NewAccountsRepository(mysqlDB)

	// repos (ClickHouse)
	chAuditRepo := repository.NewCHAuditRepository(clickhouseDB)

	// message log service (single writer of message_log + outbox)
	logSvc := messagelog.New(mysqlDB, messagesRepo, outboxRepo)

	// provider clients
	waClient := provider.NewWhatsAppClient(
		cfg.WhatsApp.BaseURL, cfg.WhatsApp.APIKey, cfg.WhatsApp.LocationID,
		cfg.WhatsApp.TimeoutMs, cfg.WhatsApp.Breaker.FailThreshold, cfg.WhatsApp.Breaker.OpenForMs,
	)
	emailClient := provider.NewEmailClient(
		cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.From,
		cfg.Email.TimeoutMs, cfg.Email.Breaker.FailThreshold, cfg.Email.Breaker.OpenForMs,
	)

	waChannel := retry.WhatsAppChannel{Client: waClient}
	emailChannel := retry.EmailChannel{Client: emailClient}

	retryCfg := retry.Config{
		BatchSize:       cfg.Retry.BatchSize,
		InterSendDelay:  cfg.Retry.InterSendDelay,
		StaleClaimAfter: cfg.Retry.StaleClaimAfter,
	}
	emailSweeper := retry.NewSweeper(logSvc, emailChannel, retryCfg)
	waSweeper := retry.NewSweeper(logSvc, waChannel, retryCfg)

	monitor := health.NewMonitor(messagesRepo, notificationsRepo, accountsRepo, rds, health.Config{
		ErrorRateThreshold: cfg.Health.ErrorRateThreshold,
		MinEmailsForAlert:  cfg.Health.MinEmailsForAlert,
		TimeWindow:         cfg.Health.TimeWindow,
		AlertCooldown:      cfg.Health.AlertCooldown,
	})

	asaasRec := reconcile.NewAsaasReconciler(mysqlDB, invoicesRepo, subscriptionsRepo, notificationsRepo)
	zapsignRec := reconcile.NewZapSignReconciler(mysqlDB, contractsRepo, accountsRepo, notificationsRepo)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(glog.INFO)
	e.Use(echoMid.Recover(), echoMid.Logger(), echoMid.CORS())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	adminMW := middleware.AdminTokenMiddleware(cfg.Admin.Token)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:invite:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1")
	v1.POST("/retry-failed-emails", retrySweepHandler(emailSweeper))
	v1.POST("/retry-failed-whatsapp", retrySweepHandler(waSweeper))
	v1.POST("/check-email-health", emailHealthHandler(monitor))
	v1.POST("/asaas-webhook", asaasWebhookHandler(asaasRec, cfg.Asaas.WebhookToken))
	v1.POST("/zapsign-webhook", zapsignWebhookHandler(zapsignRec, cfg.ZapSign.WebhookToken))
	v1.POST("/resend-invite-whatsapp", resendInviteHandler(logSvc, waChannel), adminMW, rlMW)
	v1.GET("/reports/messages", listDeliveryEventsHandler(chAuditRepo), adminMW)

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
