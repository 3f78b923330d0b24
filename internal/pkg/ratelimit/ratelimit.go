// Package ratelimit counts requests per key over fixed windows.
//
// Two stores are provided: Memory for a single process and Redis for
// counters shared between replicas. Both record every check, so requests
// denied inside a window still count toward it.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrInvalidConfig is returned when a limiter is built with a non-positive
// limit or window.
var ErrInvalidConfig = errors.New("ratelimit: max and window must be positive")

// Config sets the window length and how many requests it admits.
type Config struct {
	Max    int
	Window time.Duration
}

func (c Config) validate() error {
	if c.Max <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Decision is the outcome of one CheckAndRecord call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the wait until the window resets, rounded up to whole
// seconds and never below one second. It is 0 for allowed requests.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	secs := math.Ceil(d.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Limiter records one request for key and reports whether it is allowed.
type Limiter interface {
	CheckAndRecord(ctx context.Context, key string) (Decision, error)
}

func decide(cfg Config, count int64, resetAt time.Time) Decision {
	remaining := int64(cfg.Max) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(cfg.Max),
		Limit:     cfg.Max,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
}
