package adapter

import (
	"fmt"

	"github.com/lumenbridge/broker/internal/metrics"
)

// Config selects and parameterizes an Adapter backend, mirroring the
// adapter.* keys in the top-level configuration.
type Config struct {
	Driver            string // local, redis, redis-cluster, nats
	RedisURL          string
	RedisClusterAddrs []string
	NatsURL           string
	Prefix            string // backplane key prefix, e.g. "lumenbridge:"
}

// New builds the configured Adapter. Horizontal drivers start their mesh
// goroutines before returning.
func New(cfg Config, rec *metrics.Recorder) (Adapter, error) {
	local := NewLocal(rec)

	horizontalCfg := HorizontalConfig{Prefix: cfg.Prefix}

	switch cfg.Driver {
	case "", "local":
		return local, nil
	case "redis":
		t, err := NewRedisTransport(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("adapter: redis transport: %w", err)
		}
		return NewHorizontal(local, t, horizontalCfg)
	case "redis-cluster":
		t, err := NewRedisClusterTransport(cfg.RedisClusterAddrs)
		if err != nil {
			return nil, fmt.Errorf("adapter: redis cluster transport: %w", err)
		}
		return NewHorizontal(local, t, horizontalCfg)
	case "nats":
		t, err := NewNatsTransport(cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("adapter: nats transport: %w", err)
		}
		return NewHorizontal(local, t, horizontalCfg)
	default:
		return nil, fmt.Errorf("adapter: unknown driver %q", cfg.Driver)
	}
}
