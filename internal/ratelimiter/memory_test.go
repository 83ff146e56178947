package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAllowsUnderLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := m.Allow(ctx, "k", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !res.Allowed {
			t.Errorf("request %d should be allowed under a limit of 3", i+1)
		}
	}
}

func TestMemoryRejectsOverLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		m.Allow(ctx, "k", 2, time.Minute)
	}
	res, _ := m.Allow(ctx, "k", 2, time.Minute)
	if res.Allowed {
		t.Error("third request over a limit of 2 should be rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
}

func TestMemoryWindowResets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Allow(ctx, "k", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	res, _ := m.Allow(ctx, "k", 1, time.Millisecond)
	if !res.Allowed {
		t.Error("request after window reset should be allowed again")
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Allow(ctx, "a", 1, time.Minute)
	res, _ := m.Allow(ctx, "b", 1, time.Minute)
	if !res.Allowed {
		t.Error("a different key must have its own independent counter")
	}
}
