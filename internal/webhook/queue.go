package webhook

import "context"

// Job is one signed delivery waiting to go out.
type Job struct {
	AppID     string          `json:"app_id"`
	URL       string          `json:"url,omitempty"`
	Lambda    string          `json:"lambda_function,omitempty"`
	Body      []byte          `json:"body"`
	Signature string          `json:"signature"`
	Attempt   int             `json:"attempt"`
}

// Queue is the pluggable backend jobs are pushed onto and workers pull
// from, grounded on the original implementation's QueueInterface trait
// (add_to_queue / process_queue / disconnect).
type Queue interface {
	// Push enqueues job for delivery.
	Push(ctx context.Context, job Job) error
	// Process blocks pulling jobs and invoking handler for each, until
	// ctx is cancelled. A non-nil handler error re-queues the job via
	// the worker pool's own retry accounting, not the queue's.
	Process(ctx context.Context, handler func(Job) error) error
	Close() error
}
