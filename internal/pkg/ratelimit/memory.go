package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
)

type window struct {
	count   int64
	resetAt time.Time
}

// Memory is a process-local fixed-window limiter. Expired windows are swept
// lazily, at most once per window length.
type Memory struct {
	cfg   Config
	clock clock.Clocker

	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

// NewMemory builds a Memory limiter.
func NewMemory(cfg Config, clk clock.Clocker) (*Memory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Memory{
		cfg:       cfg,
		clock:     clk,
		windows:   make(map[string]*window),
		nextSweep: clk.Now().Add(cfg.Window),
	}, nil
}

// CheckAndRecord implements Limiter.
func (m *Memory) CheckAndRecord(_ context.Context, key string) (Decision, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !now.Before(m.nextSweep) {
		for k, w := range m.windows {
			if !now.Before(w.resetAt) {
				delete(m.windows, k)
			}
		}
		m.nextSweep = now.Add(m.cfg.Window)
	}

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.cfg.Window)}
		m.windows[key] = w
	}
	w.count++

	return decide(m.cfg, w.count, w.resetAt), nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
