package ratelimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is an INCR+EXPIRE counter shared across nodes, grounded on the
// teacher's middleware.RateLimit (redis.Client().Incr + Expire).
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis dials a single Redis instance.
func NewRedis(url, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opt), prefix: prefix}, nil
}

func (r *Redis) Allow(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	fullKey := r.prefix + key
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		r.client.Expire(ctx, fullKey, window)
	}
	ttl, err := r.client.TTL(ctx, fullKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: ttl,
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
