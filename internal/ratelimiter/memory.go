package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type window struct {
	resetAt time.Time
	count   int64
}

// Memory is a per-key fixed-window counter guarded by a mutex, grounded
// on the teacher's middleware.localRateLimiter fallback limiter.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemory returns an empty Memory limiter.
func NewMemory() *Memory {
	return &Memory{windows: make(map[string]*window)}
}

func (m *Memory) Allow(ctx context.Context, key string, limit int64, windowDur time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(windowDur)}
		m.windows[key] = w
	}
	w.count++

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    w.count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: w.resetAt.Sub(now),
	}, nil
}

func (m *Memory) Close() error { return nil }
