package adapter

import (
	"context"

	"github.com/nats-io/nats.go"
)

// NatsTransport publishes topics as NATS subjects, dots and all — topic
// names produced by Horizontal already avoid NATS wildcard characters.
type NatsTransport struct {
	conn *nats.Conn
}

// NewNatsTransport connects to the NATS server at url.
func NewNatsTransport(url string) (*NatsTransport, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &NatsTransport{conn: conn}, nil
}

func (t *NatsTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.conn.Publish(topic, payload)
}

func (t *NatsTransport) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	_, err := t.conn.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	return err
}

func (t *NatsTransport) Close() error {
	t.conn.Drain()
	return nil
}
