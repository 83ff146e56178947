package webhook

import "context"

// NoneQueue delivers synchronously: Push calls handler immediately
// instead of buffering. Used when queue.driver=none.
type NoneQueue struct {
	handler func(Job) error
}

func NewNoneQueue() *NoneQueue { return &NoneQueue{} }

func (q *NoneQueue) Push(ctx context.Context, job Job) error {
	if q.handler == nil {
		return nil
	}
	return q.handler(job)
}

// Process registers handler so that subsequent Push calls deliver
// inline; it then blocks until ctx is done, matching Queue's contract.
func (q *NoneQueue) Process(ctx context.Context, handler func(Job) error) error {
	q.handler = handler
	<-ctx.Done()
	return ctx.Err()
}

func (q *NoneQueue) Close() error { return nil }
