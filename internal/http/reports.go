package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
)

// listDeliveryEventsHandler serves the delivery audit log from ClickHouse.
func listDeliveryEventsHandler(chRepo repository.CHAuditRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var channel model.Channel
		if raw := strings.TrimSpace(c.QueryParam("channel")); raw != "" {
			if ch, ok := model.ParseChannel(raw); ok {
				channel = ch
			}
		}

		var status model.MessageStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.MessageStatus(raw)
			if tmp.Valid() {
				status = tmp
			}
		}

		recipient := strings.TrimSpace(c.QueryParam("recipient"))

		events, err := chRepo.List(c.Request().Context(), channel, status, recipient, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(events),
			"results": events,
		})
	}
}
