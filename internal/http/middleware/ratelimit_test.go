package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type fakeLimiterRedis struct {
	count   int64
	incrErr error
	expires int
}

func (f *fakeLimiterRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		cmd := redis.NewIntCmd(ctx)
		cmd.SetErr(f.incrErr)
		return cmd
	}
	f.count++
	return redis.NewIntResult(f.count, nil)
}

func (f *fakeLimiterRedis) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires++
	return redis.NewBoolResult(true, nil)
}

func hitLimiter(t *testing.T, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/resend-invite-whatsapp", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec
}

func TestRateLimitAllowsUpToRPS(t *testing.T) {
	rds := &fakeLimiterRedis{}
	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 2})

	for i := 0; i < 2; i++ {
		rec := hitLimiter(t, mw)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, rec.Code)
		}
	}
	if rds.expires != 1 {
		t.Fatalf("expires = %d, want 1 (only on first hit of the window)", rds.expires)
	}
}

func TestRateLimitReturns429OverLimit(t *testing.T) {
	rds := &fakeLimiterRedis{}
	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 1, RetryAfterHint: true})

	if rec := hitLimiter(t, mw); rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", rec.Code)
	}

	rec := hitLimiter(t, mw)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q, want \"1\"", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitFailsOpenOnRedisError(t *testing.T) {
	rds := &fakeLimiterRedis{incrErr: errors.New("connection refused")}
	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 1})

	for i := 0; i < 3; i++ {
		if rec := hitLimiter(t, mw); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200 (limiter must fail open)", i+1, rec.Code)
		}
	}
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitConfig{RPS: 1})

	for i := 0; i < 3; i++ {
		if rec := hitLimiter(t, mw); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, rec.Code)
		}
	}
}
