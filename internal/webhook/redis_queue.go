package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCmdable interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Close() error
}

// RedisQueue is a list-based queue (LPUSH/BRPOP), grounded on the
// teacher's storage.Redis wrapper, generalized from Get/Set/Publish to
// list operations for durable FIFO delivery across process restarts.
type RedisQueue struct {
	client redisCmdable
	key    string
}

// NewRedisQueue wraps an existing client (single-node or cluster).
func NewRedisQueue(client redisCmdable, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// NewRedisQueueFromURL dials a single Redis instance.
func NewRedisQueueFromURL(url, key string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisQueue(redis.NewClient(opt), key), nil
}

func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) Process(ctx context.Context, handler func(Job) error) error {
	for {
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}
		if len(res) < 2 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			continue
		}
		handler(job)
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// NewRedisClusterQueue wraps a Redis Cluster client with the same
// list-based queue semantics.
func NewRedisClusterQueue(addrs []string, key string) *RedisQueue {
	client := redis.NewClusterClient(&redis.ClusterOptions{Addrs: addrs})
	return NewRedisQueue(client, key)
}
