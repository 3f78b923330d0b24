package router

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/ratelimit"
)

// MsgTooManyRequests is returned to rate-limited clients.
const MsgTooManyRequests = "Too many requests. Please try again later."

type rateLimitResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// RateLimit admits requests per client address through limiter and answers
// 429 once the window budget is spent. Limiter failures let the request pass.
// A nil limiter disables the check.
func RateLimit(limiter ratelimit.Limiter, clk clock.Clocker) Middleware {
	if clk == nil {
		clk = clock.New()
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := r.RemoteAddr

			d, err := limiter.CheckAndRecord(ctx, key)
			if err != nil {
				slog.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			now := clk.Now()
			reset := math.Ceil(d.ResetAt.Sub(now).Seconds())
			if reset < 0 {
				reset = 0
			}

			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(int(reset)))

			if !d.Allowed {
				retryAfter := int(d.RetryAfter(now).Seconds())
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				instrument.SecurityEvent(ctx, "rate_limit_exceeded",
					"ip", key,
					"path", r.URL.Path,
					"user_agent", r.UserAgent(),
				)

				writeJSON(w, rateLimitResponse{Error: MsgTooManyRequests, RetryAfter: retryAfter}, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
