package app

import (
	"context"
	"testing"
)

func TestMemoryByKeyAndByID(t *testing.T) {
	m := NewMemory([]App{Default("app1", "key1", "secret1")})
	ctx := context.Background()

	a, err := m.ByKey(ctx, "key1")
	if err != nil || a.ID != "app1" {
		t.Fatalf("ByKey(key1) = (%v, %v), want app1", a, err)
	}

	a2, err := m.ByID(ctx, "app1")
	if err != nil || a2.Key != "key1" {
		t.Fatalf("ByID(app1) = (%v, %v), want key1", a2, err)
	}
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory(nil)
	if _, err := m.ByKey(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("ByKey(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEnsureDemoAppOnlyWhenEmpty(t *testing.T) {
	m := NewMemory(nil)
	EnsureDemoApp(m)
	if m.Count() != 1 {
		t.Fatalf("expected 1 demo app, got %d", m.Count())
	}

	m.Put(Default("custom", "customkey", "customsecret"))
	EnsureDemoApp(m)
	if m.Count() != 2 {
		t.Fatalf("EnsureDemoApp must not run again once apps exist, got count %d", m.Count())
	}
}

func TestWebhooksForFiltersByEventTypeAndPrefix(t *testing.T) {
	a := Default("app1", "key1", "secret1")
	a.Webhooks = []Webhook{
		{URL: "http://a", EventTypes: []string{"channel_occupied"}},
		{URL: "http://b", EventTypes: []string{"channel_occupied"}, Filter: "private-"},
	}

	hooks := a.WebhooksFor("channel_occupied", "public-lobby")
	if len(hooks) != 1 || hooks[0].URL != "http://a" {
		t.Fatalf("expected only the unfiltered webhook for a public channel, got %v", hooks)
	}

	hooks = a.WebhooksFor("channel_occupied", "private-chat")
	if len(hooks) != 2 {
		t.Fatalf("expected both webhooks for a private- channel, got %v", hooks)
	}

	hooks = a.WebhooksFor("member_added", "private-chat")
	if len(hooks) != 0 {
		t.Fatalf("expected no webhooks for an unsubscribed event type, got %v", hooks)
	}
}
