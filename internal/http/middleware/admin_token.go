package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

// AdminTokenMiddleware authenticates operator endpoints with a static bearer
// token. An unset token is a configuration failure and fails fast with 500 on
// every call rather than degrading to open access.
func AdminTokenMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "admin token not configured"})
			}

			auth := strings.TrimSpace(c.Request().Header.Get("Authorization"))
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			presented := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid token"})
			}

			return next(c)
		}
	}
}
