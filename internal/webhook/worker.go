package webhook

import (
	"context"
	"log"
	"time"

	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/metrics"
)

// WorkerPool drains a Queue with configured concurrency, delivering
// each job and retrying non-2xx responses or transport errors with
// exponential backoff up to MaxAttempts, then dropping the job with a
// logged warning. Grounded on the original implementation's worker
// description and the teacher's continue-on-error fan-out idiom.
type WorkerPool struct {
	queue       Queue
	sender      *Sender
	apps        app.Manager
	concurrency int
	maxAttempts int
	baseBackoff time.Duration
	metrics     *metrics.Recorder
}

// NewWorkerPool builds a pool over queue. concurrency <= 0 defaults to 4.
func NewWorkerPool(queue Queue, sender *Sender, apps app.Manager, concurrency, maxAttempts int, baseBackoff time.Duration, rec *metrics.Recorder) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 4
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseBackoff <= 0 {
		baseBackoff = 500 * time.Millisecond
	}
	return &WorkerPool{
		queue:       queue,
		sender:      sender,
		apps:        apps,
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		metrics:     metrics.OrNop(rec),
	}
}

// Run starts concurrency goroutines pulling from the queue and blocks
// until ctx is cancelled.
func (w *WorkerPool) Run(ctx context.Context) error {
	errCh := make(chan error, w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go func() {
			errCh <- w.queue.Process(ctx, w.handle)
		}()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (w *WorkerPool) handle(job Job) error {
	ctx := context.Background()

	a, err := w.apps.ByID(ctx, job.AppID)
	if err != nil {
		log.Printf("webhook: worker: app %s lookup failed, dropping job: %v", job.AppID, err)
		w.metrics.WebhookJob(job.AppID, "dropped")
		return nil
	}

	if err := w.sender.Deliver(ctx, a.Key, job); err != nil {
		w.retry(job, err)
		return err
	}
	w.metrics.WebhookJob(job.AppID, "delivered")
	return nil
}

func (w *WorkerPool) retry(job Job, cause error) {
	if job.Attempt+1 >= w.maxAttempts {
		log.Printf("webhook: job for app %s to %s dropped after %d attempts: %v", job.AppID, job.URL, job.Attempt+1, cause)
		w.metrics.WebhookJob(job.AppID, "dropped")
		return
	}

	next := job
	next.Attempt++
	backoff := w.baseBackoff * time.Duration(1<<uint(next.Attempt))
	w.metrics.WebhookJob(job.AppID, "retrying")

	go func() {
		time.Sleep(backoff)
		if err := w.queue.Push(context.Background(), next); err != nil {
			log.Printf("webhook: re-enqueue failed for app %s: %v", job.AppID, err)
		}
	}()
}
