package webhook

import (
	"context"
	"fmt"
)

// QueueConfig selects and parameterizes a Queue backend, mirroring the
// queue.* config keys.
type QueueConfig struct {
	Driver            string // memory, redis, redis-cluster, sqs, none
	MemoryCapacity    int
	RedisURL          string
	RedisClusterAddrs []string
	RedisKey          string
	SQSQueueURL       string
}

// NewQueue builds the configured Queue.
func NewQueue(ctx context.Context, cfg QueueConfig) (Queue, error) {
	key := cfg.RedisKey
	if key == "" {
		key = "webhooks"
	}

	switch cfg.Driver {
	case "", "memory":
		return NewMemoryQueue(cfg.MemoryCapacity), nil
	case "redis":
		return NewRedisQueueFromURL(cfg.RedisURL, key)
	case "redis-cluster":
		return NewRedisClusterQueue(cfg.RedisClusterAddrs, key), nil
	case "sqs":
		return NewSQSQueue(ctx, cfg.SQSQueueURL)
	case "none":
		return NewNoneQueue(), nil
	default:
		return nil, fmt.Errorf("webhook: unknown queue driver %q", cfg.Driver)
	}
}
