package adapter

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes and subscribes over a single redis.Client,
// grounded on the teacher's storage.Redis wrapper (Publish/Subscribe)
// but generalized from its one "ws:*" pattern to named topics.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport dials a single Redis instance at url.
func NewRedisTransport(url string) (*RedisTransport, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisTransport{client: redis.NewClient(opt)}, nil
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.client.Publish(ctx, topic, payload).Err()
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	sub := t.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

// RedisClusterTransport is the same publish/subscribe contract over a
// redis.ClusterClient, for deployments that shard the backplane itself.
type RedisClusterTransport struct {
	client *redis.ClusterClient
}

// NewRedisClusterTransport connects to a Redis Cluster given its seed
// addresses.
func NewRedisClusterTransport(addrs []string) (*RedisClusterTransport, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{Addrs: addrs})
	return &RedisClusterTransport{client: client}, nil
}

func (t *RedisClusterTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.client.SPublish(ctx, topic, payload).Err()
}

func (t *RedisClusterTransport) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	sub := t.client.SSubscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()
	return nil
}

func (t *RedisClusterTransport) Close() error {
	return t.client.Close()
}
