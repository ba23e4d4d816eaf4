package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitRedis is the slice of the Redis client the limiter uses; satisfied
// by *redis.Client.
type RateLimitRedis interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// RateLimitConfig config for the Redis-based RPS limiter.
type RateLimitConfig struct {
	Redis          RateLimitRedis
	RPS            int
	KeyPrefix      string        // e.g. "rl:invite:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimitMiddleware applies a simple fixed-window per-caller limit keyed by
// client IP. Fails open when Redis is unreachable; throttling is protection
// here, not policy.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Redis == nil || cfg.RPS <= 0 {
				return next(c)
			}

			ctx := c.Request().Context()
			window := int64(cfg.Window.Seconds())
			if window < 1 {
				window = 1
			}
			key := cfg.KeyPrefix + c.RealIP() + ":" + strconv.FormatInt(time.Now().Unix()/window, 10)

			n, err := cfg.Redis.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if n == 1 {
				_ = cfg.Redis.Expire(ctx, key, cfg.Window).Err()
			}
			if n > int64(cfg.RPS) {
				if cfg.RetryAfterHint {
					c.Response().Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}

			return next(c)
		}
	}
}
