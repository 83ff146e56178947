package app

import (
	"context"
	"sync"
	"time"
)

// Cached wraps a Manager backed by a real store with a TTL layer, so hot
// lookups (every subscribe, every HTTP API call) don't round-trip to the
// backend. Misses are not cached, so a newly created app is visible on
// its very next lookup.
type Cached struct {
	backend Manager
	ttl     time.Duration

	mu     sync.RWMutex
	byKey  map[string]cachedEntry
	byID   map[string]cachedEntry
}

type cachedEntry struct {
	app     App
	expires time.Time
}

// NewCached wraps backend with a TTL cache.
func NewCached(backend Manager, ttl time.Duration) *Cached {
	return &Cached{
		backend: backend,
		ttl:     ttl,
		byKey:   make(map[string]cachedEntry),
		byID:    make(map[string]cachedEntry),
	}
}

func (c *Cached) ByKey(ctx context.Context, key string) (App, error) {
	c.mu.RLock()
	e, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return e.app, nil
	}

	a, err := c.backend.ByKey(ctx, key)
	if err != nil {
		return App{}, err
	}
	c.store(a)
	return a, nil
}

func (c *Cached) ByID(ctx context.Context, id string) (App, error) {
	c.mu.RLock()
	e, ok := c.byID[id]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return e.app, nil
	}

	a, err := c.backend.ByID(ctx, id)
	if err != nil {
		return App{}, err
	}
	c.store(a)
	return a, nil
}

func (c *Cached) store(a App) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cachedEntry{app: a, expires: time.Now().Add(c.ttl)}
	c.byKey[a.Key] = entry
	c.byID[a.ID] = entry
}

func (c *Cached) Close() error {
	return c.backend.Close()
}
