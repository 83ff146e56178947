package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGetHas(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Error("Get on an absent key should miss")
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get(k) = (%q, %v, %v), want (v, true, nil)", v, ok, err)
	}

	has, _ := c.Has(ctx, "k")
	if !has {
		t.Error("Has should report true for a present key")
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expired entries must not be returned")
	}
}

func TestMemoryDelete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Minute)
	_ = c.Delete(ctx, "k")
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("deleted entries must not be returned")
	}
}

func TestNoneAlwaysMisses(t *testing.T) {
	c := NewNone()
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("the none cache must never return a hit")
	}
}
