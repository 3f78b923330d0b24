package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
)

// Redis is a fixed-window limiter whose counters live in Redis, so every
// replica shares the same budget per key.
type Redis struct {
	client redis.UniversalClient
	cfg    Config
	clock  clock.Clocker
	prefix string
}

// NewRedis builds a Redis limiter.
func NewRedis(client redis.UniversalClient, cfg Config, clk clock.Clocker) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Redis{
		client: client,
		cfg:    cfg,
		clock:  clk,
		prefix: "ratelimit:",
	}, nil
}

// CheckAndRecord implements Limiter. The window starts with the first
// request for a key and ends when its key expires.
func (r *Redis) CheckAndRecord(ctx context.Context, key string) (Decision, error) {
	fk := r.prefix + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, fk, 0, r.cfg.Window)
		incr = p.Incr(ctx, fk)
		pttl = p.PTTL(ctx, fk)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	ttl := pttl.Val()
	if ttl <= 0 {
		// Key survived without expiry; start a fresh window from now.
		if err := r.client.PExpire(ctx, fk, r.cfg.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
		ttl = r.cfg.Window
	}

	return decide(r.cfg, incr.Val(), r.clock.Now().Add(ttl.Round(time.Millisecond))), nil
}
