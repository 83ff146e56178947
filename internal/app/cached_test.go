package app

import (
	"context"
	"testing"
	"time"
)

type countingBackend struct {
	calls int
	apps  map[string]App
}

func (b *countingBackend) ByKey(ctx context.Context, key string) (App, error) {
	b.calls++
	for _, a := range b.apps {
		if a.Key == key {
			return a, nil
		}
	}
	return App{}, ErrNotFound
}

func (b *countingBackend) ByID(ctx context.Context, id string) (App, error) {
	b.calls++
	a, ok := b.apps[id]
	if !ok {
		return App{}, ErrNotFound
	}
	return a, nil
}

func (b *countingBackend) Close() error { return nil }

func TestCachedServesFromCacheWithinTTL(t *testing.T) {
	backend := &countingBackend{apps: map[string]App{"app1": Default("app1", "key1", "secret1")}}
	c := NewCached(backend, time.Minute)
	ctx := context.Background()

	if _, err := c.ByID(ctx, "app1"); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if _, err := c.ByID(ctx, "app1"); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("expected backend to be hit once, got %d calls", backend.calls)
	}
}

func TestCachedRefreshesAfterTTL(t *testing.T) {
	backend := &countingBackend{apps: map[string]App{"app1": Default("app1", "key1", "secret1")}}
	c := NewCached(backend, time.Millisecond)
	ctx := context.Background()

	if _, err := c.ByID(ctx, "app1"); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.ByID(ctx, "app1"); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("expected backend to be hit twice after TTL expiry, got %d calls", backend.calls)
	}
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	backend := &countingBackend{apps: map[string]App{}}
	c := NewCached(backend, time.Minute)
	ctx := context.Background()

	c.ByID(ctx, "missing")
	c.ByID(ctx, "missing")
	if backend.calls != 2 {
		t.Errorf("expected every miss to hit the backend, got %d calls", backend.calls)
	}
}
