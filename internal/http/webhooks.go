package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/educreche/notify-gateway/internal/metrics"
	"github.com/educreche/notify-gateway/internal/reconcile"
	echo "github.com/labstack/echo/v4"
)

// Webhook handlers always acknowledge recognized-but-unprocessable payloads
// with 200; providers disable endpoints that keep returning errors. Only a
// local persistence failure surfaces a 5xx.

func asaasWebhookHandler(rec *reconcile.AsaasReconciler, webhookToken string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !tokenOK(c.Request().Header.Get("asaas-access-token"), webhookToken) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook token"})
		}

		var p reconcile.AsaasWebhookPayload
		if err := c.Bind(&p); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("asaas", "ignored").Inc()
			return c.JSON(http.StatusOK, map[string]any{"received": true})
		}

		res, err := rec.Process(c.Request().Context(), p)
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("asaas", "error").Inc()
			c.Logger().Errorf("asaas webhook persistence failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "persistence failed"})
		}

		metrics.WebhookEventsTotal.WithLabelValues("asaas", string(res.Outcome)).Inc()
		if res.Outcome == reconcile.OutcomeOrphaned {
			c.Logger().Warnf("asaas webhook for unknown payment dropped: event=%s", p.Event)
		}

		return c.JSON(http.StatusOK, map[string]any{"received": true})
	}
}

func zapsignWebhookHandler(rec *reconcile.ZapSignReconciler, webhookToken string) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer "))
		if !tokenOK(auth, webhookToken) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook token"})
		}

		var p reconcile.ZapSignWebhookPayload
		if err := c.Bind(&p); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("zapsign", "ignored").Inc()
			return c.JSON(http.StatusOK, map[string]any{"received": true})
		}

		res, err := rec.Process(c.Request().Context(), p)
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("zapsign", "error").Inc()
			c.Logger().Errorf("zapsign webhook persistence failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "persistence failed"})
		}

		metrics.WebhookEventsTotal.WithLabelValues("zapsign", string(res.Outcome)).Inc()
		if res.ContractID == "" {
			return c.JSON(http.StatusOK, map[string]any{"received": true})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":    true,
			"message":    string(res.Outcome),
			"contractId": res.ContractID,
		})
	}
}

// tokenOK verifies the optional shared-secret webhook token. An empty
// configured token disables the check.
func tokenOK(presented, configured string) bool {
	if configured == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(configured)) == 1
}
