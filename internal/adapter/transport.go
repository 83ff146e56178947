package adapter

import "context"

// Transport is the backplane contract the Horizontal adapter meshes
// nodes over: publish-only fan-out topics, no durability, no retry.
// redis_transport.go (single-node and cluster Redis) and
// nats_transport.go implement it against a real broker.
type Transport interface {
	// Publish sends payload to every current subscriber of topic,
	// including this process if it is itself subscribed.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers handler to be called, from a background
	// goroutine the Transport owns, for every message published to
	// topic from any node. Subscribe returns once the subscription is
	// established; handler keeps running until Close.
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error
	// Close releases the underlying connection.
	Close() error
}
