package http

import (
	"net/http"
	"time"

	"github.com/educreche/notify-gateway/internal/health"
	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/util"
	echo "github.com/labstack/echo/v4"
)

type healthCheckReq struct {
	ErrorRateThreshold float64 `json:"errorRateThreshold"`
	MinEmailsForAlert  int     `json:"minEmailsForAlert"`
	TimeWindowMinutes  int     `json:"timeWindowMinutes"`
}

// emailHealthHandler runs one alerting-monitor pass over recent email
// delivery. Body is optional; fields override config for this call only.
func emailHealthHandler(monitor *health.Monitor) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := util.New()

		var req healthCheckReq
		if err := c.Bind(&req); err != nil && c.Request().ContentLength > 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"success":   false,
				"error":     "bad request",
				"requestId": requestID,
			})
		}

		overrides := health.Config{
			ErrorRateThreshold: req.ErrorRateThreshold,
			MinEmailsForAlert:  req.MinEmailsForAlert,
			TimeWindow:         time.Duration(req.TimeWindowMinutes) * time.Minute,
		}

		rep, err := monitor.Check(c.Request().Context(), model.ChannelEmail, overrides)
		if err != nil {
			c.Logger().Errorf("health check failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]any{
				"success":   false,
				"error":     "health check failed",
				"requestId": requestID,
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":      true,
			"healthStatus": rep.Status,
			"alertCreated": rep.AlertCreated,
			"metrics":      rep.Metrics,
			"config": map[string]any{
				"errorRateThreshold": rep.Config.ErrorRateThreshold,
				"minEmailsForAlert":  rep.Config.MinEmailsForAlert,
				"timeWindowMinutes":  int(rep.Config.TimeWindow.Minutes()),
			},
			"requestId": requestID,
		})
	}
}
