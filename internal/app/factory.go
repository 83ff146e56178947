package app

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenbridge/broker/internal/storage"
)

// Config selects and parameterizes an App Registry backend, mirroring
// the app_manager.* config keys.
type Config struct {
	Driver      string // memory, pgsql, mysql, dynamodb
	MemoryApps  []App
	PostgresURL string
	MySQLDSN    string
	DynamoTable string
	CacheTTL    time.Duration
}

// New builds the configured Manager. Non-memory backends are wrapped in
// a TTL cache per spec.md §5's "read-mostly, cache with TTL" guidance.
func New(ctx context.Context, cfg Config) (Manager, error) {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.MemoryApps), nil
	case "pgsql":
		backend, err := NewPostgres(storage.PoolConfig{
			URL:               cfg.PostgresURL,
			MaxConns:          20,
			MinConns:          2,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   15 * time.Minute,
			HealthCheckPeriod: 30 * time.Second,
			ConnectTimeout:    10 * time.Second,
			AcquireTimeout:    5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return NewCached(backend, ttl), nil
	case "mysql":
		backend, err := NewMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return NewCached(backend, ttl), nil
	case "dynamodb":
		backend, err := NewDynamoDB(ctx, cfg.DynamoTable)
		if err != nil {
			return nil, err
		}
		return NewCached(backend, ttl), nil
	default:
		return nil, fmt.Errorf("app: unknown driver %q", cfg.Driver)
	}
}

// EnsureDemoApp registers a permissive demo-app/demo-key pair when mem
// starts out empty, matching the original implementation's zero-config
// local-startup behavior.
func EnsureDemoApp(mem *Memory) {
	if mem.Count() > 0 {
		return
	}
	demo := Default("demo-app", "demo-key", "demo-secret")
	demo.Webhooks = []Webhook{{
		URL:        "http://localhost:3000/pusher/webhooks",
		EventTypes: []string{"channel_occupied", "channel_vacated", "member_added", "member_removed"},
	}}
	mem.Put(demo)
}
