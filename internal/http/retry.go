package http

import (
	"net/http"

	"github.com/educreche/notify-gateway/internal/retry"
	"github.com/educreche/notify-gateway/internal/util"
	echo "github.com/labstack/echo/v4"
)

// retrySweepHandler triggers one bounded retry sweep for the sweeper's
// channel. Cron-invoked; needs no body.
func retrySweepHandler(sweeper *retry.Sweeper) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := util.New()

		res, err := sweeper.Sweep(c.Request().Context())
		if err != nil {
			c.Logger().Errorf("retry sweep failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]any{
				"success":   false,
				"error":     "sweep failed",
				"requestId": requestID,
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":      true,
			"processed":    res.Processed,
			"successCount": res.Succeeded,
			"failCount":    res.Failed,
			"requestId":    requestID,
		})
	}
}
