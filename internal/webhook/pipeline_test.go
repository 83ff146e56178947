package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/cache"
)

type fakeApps struct {
	apps map[string]app.App
}

func (f *fakeApps) ByKey(ctx context.Context, key string) (app.App, error) {
	return app.App{}, app.ErrNotFound
}

func (f *fakeApps) ByID(ctx context.Context, id string) (app.App, error) {
	a, ok := f.apps[id]
	if !ok {
		return app.App{}, app.ErrNotFound
	}
	return a, nil
}

func (f *fakeApps) Close() error { return nil }

func newTestApp(appID string, webhooks []app.Webhook) *fakeApps {
	a := app.Default(appID, appID+"-key", appID+"-secret")
	a.Webhooks = webhooks
	return &fakeApps{apps: map[string]app.App{appID: a}}
}

func TestPipelineEmitSkipsAppsWithNoMatchingWebhooks(t *testing.T) {
	apps := newTestApp("app1", nil)
	queue := NewMemoryQueue(4)
	defer queue.Close()
	p := NewPipeline(apps, queue, cache.NewNone(), BatchingConfig{}, nil)

	p.Emit(context.Background(), "app1", Event{Type: ChannelOccupied, Channel: "lobby"})

	select {
	case <-drain(queue):
		t.Fatal("no job should be enqueued when the app has no matching webhooks")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPipelineEmitEnqueuesJobForMatchingWebhook(t *testing.T) {
	apps := newTestApp("app1", []app.Webhook{{URL: "http://example.com", EventTypes: []string{"channel_occupied"}}})
	queue := NewMemoryQueue(4)
	defer queue.Close()
	p := NewPipeline(apps, queue, cache.NewNone(), BatchingConfig{}, nil)

	p.Emit(context.Background(), "app1", Event{Type: ChannelOccupied, Channel: "lobby"})

	select {
	case job := <-drain(queue):
		if job.AppID != "app1" || job.URL != "http://example.com" {
			t.Errorf("unexpected job: %+v", job)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a job to be enqueued")
	}
}

func TestPipelineDedupesIdenticalEvents(t *testing.T) {
	apps := newTestApp("app1", []app.Webhook{{URL: "http://example.com", EventTypes: []string{"channel_occupied"}}})
	queue := NewMemoryQueue(4)
	defer queue.Close()
	p := NewPipeline(apps, queue, cache.NewMemory(), BatchingConfig{}, nil)

	ev := Event{Type: ChannelOccupied, Channel: "lobby"}
	p.Emit(context.Background(), "app1", ev)
	p.Emit(context.Background(), "app1", ev)

	first := <-drain(queue)
	if first.AppID != "app1" {
		t.Fatalf("unexpected first job: %+v", first)
	}
	select {
	case <-drain(queue):
		t.Fatal("the duplicate event must not enqueue a second job")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPipelineBatchesWithinWindow(t *testing.T) {
	apps := newTestApp("app1", []app.Webhook{{URL: "http://example.com", EventTypes: []string{"client_event"}}})
	queue := NewMemoryQueue(4)
	defer queue.Close()
	p := NewPipeline(apps, queue, cache.NewNone(), BatchingConfig{Enabled: true, Duration: 20 * time.Millisecond}, nil)

	p.Emit(context.Background(), "app1", Event{Type: ClientEvent, Channel: "lobby", Event: "client-a"})
	p.Emit(context.Background(), "app1", Event{Type: ClientEvent, Channel: "lobby", Event: "client-b"})

	select {
	case <-drain(queue):
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected a batched job to flush after the batching duration")
	}

	select {
	case <-drain(queue):
		t.Fatal("both events should have flushed in a single batched job")
	case <-time.After(50 * time.Millisecond):
	}
}

// drain wraps MemoryQueue's private jobs channel exposure for assertions
// by running Process against a channel the test can select on.
func drain(q *MemoryQueue) <-chan Job {
	out := make(chan Job, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	go func() {
		q.Process(ctx, func(j Job) error {
			out <- j
			cancel()
			return nil
		})
	}()
	return out
}
