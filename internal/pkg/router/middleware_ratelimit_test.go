package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (s *stubLimiter) CheckAndRecord(_ context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)

	t.Run("allowed request passes with headers", func(t *testing.T) {
		// Arrange
		lim := &stubLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 100, Remaining: 99, ResetAt: now.Add(15 * time.Minute)}}
		r := newTestRouter(t, "app: {}")
		r.POST("/submit", func(*Request) (any, error) { return map[string]any{"success": true}, nil }, RateLimit(lim, clk))

		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.RemoteAddr = "198.51.100.7:4444"
		rec := httptest.NewRecorder()

		// Act
		r.ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("RateLimit-Limit"))
		assert.Equal(t, "99", rec.Header().Get("RateLimit-Remaining"))
		assert.Equal(t, "900", rec.Header().Get("RateLimit-Reset"))
		assert.Empty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, []string{"198.51.100.7"}, lim.keys)
	})

	t.Run("denied request gets 429", func(t *testing.T) {
		lim := &stubLimiter{decision: ratelimit.Decision{Allowed: false, Limit: 100, Remaining: 0, ResetAt: now.Add(90 * time.Second)}}
		r := newTestRouter(t, "app: {}")
		called := false
		r.POST("/submit", func(*Request) (any, error) {
			called = true
			return map[string]any{}, nil
		}, RateLimit(lim, clk))

		rec := serve(r, http.MethodPost, "/submit", "")

		assert.False(t, called)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "90", rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
		assert.Equal(t, map[string]any{"error": MsgTooManyRequests, "retryAfter": float64(90)}, decode(t, rec))
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		lim := &stubLimiter{err: errors.New("redis down")}
		r := newTestRouter(t, "app: {}")
		r.POST("/submit", func(*Request) (any, error) { return map[string]any{}, nil }, RateLimit(lim, clk))

		rec := serve(r, http.MethodPost, "/submit", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	})

	t.Run("nil limiter disables the check", func(t *testing.T) {
		r := newTestRouter(t, "app: {}")
		r.POST("/submit", func(*Request) (any, error) { return map[string]any{}, nil }, RateLimit(nil, nil))

		rec := serve(r, http.MethodPost, "/submit", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("memory limiter end to end", func(t *testing.T) {
		lim, err := ratelimit.NewMemory(ratelimit.Config{Max: 2, Window: time.Minute}, clk)
		require.NoError(t, err)
		r := newTestRouter(t, "app: {}")
		r.POST("/submit", func(*Request) (any, error) { return map[string]any{}, nil }, RateLimit(lim, clk))

		codes := make([]int, 0, 3)
		for range 3 {
			codes = append(codes, serve(r, http.MethodPost, "/submit", "").Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})
}
