package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/cache"
	"github.com/lumenbridge/broker/internal/metrics"
)

// BatchingConfig mirrors webhooks.batching.{enabled,duration}.
type BatchingConfig struct {
	Enabled  bool
	Duration time.Duration
}

// Pipeline resolves which of an app's webhooks want an Event, dedupes
// near-duplicate notifications via the cache, and either enqueues one
// job per event or batches several into one job per URL.
type Pipeline struct {
	apps     app.Manager
	queue    Queue
	cache    cache.Cache
	batching BatchingConfig
	metrics  *metrics.Recorder

	mu      sync.Mutex
	buffers map[string]*batchBuffer // key = appID + "|" + url
}

type batchBuffer struct {
	appID  string
	url    string
	events []Event
	timer  *time.Timer
}

// NewPipeline builds a Pipeline over the given app registry, queue and
// dedup cache.
func NewPipeline(apps app.Manager, queue Queue, c cache.Cache, batching BatchingConfig, rec *metrics.Recorder) *Pipeline {
	return &Pipeline{
		apps:     apps,
		queue:    queue,
		cache:    c,
		batching: batching,
		metrics:  metrics.OrNop(rec),
		buffers:  make(map[string]*batchBuffer),
	}
}

// Emit implements webhook.Emitter.
func (p *Pipeline) Emit(ctx context.Context, appID string, ev Event) {
	a, err := p.apps.ByID(ctx, appID)
	if err != nil {
		log.Printf("webhook: emit: app %s lookup failed: %v", appID, err)
		return
	}

	hooks := a.WebhooksFor(string(ev.Type), ev.Channel)
	if len(hooks) == 0 {
		return
	}

	if p.isDuplicate(ctx, appID, ev) {
		return
	}

	for _, wh := range hooks {
		if wh.Lambda != "" {
			log.Printf("webhook: app %s: lambda targets are not delivered by this process (%s)", appID, wh.Lambda)
			continue
		}
		if p.batching.Enabled {
			p.buffer(ctx, a, wh.URL, ev)
		} else {
			p.flushOne(ctx, a, wh.URL, []Event{ev})
		}
	}
}

func (p *Pipeline) isDuplicate(ctx context.Context, appID string, ev Event) bool {
	fingerprint := fingerprintEvent(appID, ev)
	seen, _ := p.cache.Has(ctx, fingerprint)
	if seen {
		return true
	}
	_ = p.cache.Set(ctx, fingerprint, "1", 2*time.Second)
	return false
}

func fingerprintEvent(appID string, ev Event) string {
	payload, _ := json.Marshal(ev)
	sum := sha256.Sum256(append([]byte(appID+":"), payload...))
	return "webhook-dedup:" + hex.EncodeToString(sum[:])
}

func (p *Pipeline) buffer(ctx context.Context, a app.App, url string, ev Event) {
	key := a.ID + "|" + url

	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.buffers[key]
	if !ok {
		buf = &batchBuffer{appID: a.ID, url: url}
		p.buffers[key] = buf
		buf.timer = time.AfterFunc(p.batching.Duration, func() {
			p.flushBuffer(context.Background(), a, key)
		})
	}
	buf.events = append(buf.events, ev)
}

func (p *Pipeline) flushBuffer(ctx context.Context, a app.App, key string) {
	p.mu.Lock()
	buf, ok := p.buffers[key]
	if ok {
		delete(p.buffers, key)
	}
	p.mu.Unlock()
	if !ok || len(buf.events) == 0 {
		return
	}
	p.flushOne(ctx, a, buf.url, buf.events)
}

func (p *Pipeline) flushOne(ctx context.Context, a app.App, url string, events []Event) {
	body, err := json.Marshal(struct {
		TimeMS int64   `json:"time_ms"`
		Events []Event `json:"events"`
	}{
		TimeMS: time.Now().UnixMilli(),
		Events: events,
	})
	if err != nil {
		log.Printf("webhook: marshal failed for app %s: %v", a.ID, err)
		return
	}

	job := Job{
		AppID:     a.ID,
		URL:       url,
		Body:      body,
		Signature: Sign(a.Secret, body),
	}
	if err := p.queue.Push(ctx, job); err != nil {
		log.Printf("webhook: enqueue failed for app %s: %v", a.ID, err)
		p.metrics.WebhookJob(a.ID, "enqueue_failed")
		return
	}
	p.metrics.WebhookJob(a.ID, "enqueued")
}
