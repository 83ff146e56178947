package cache

import "fmt"

// Config selects a cache backend, mirroring the cache.* config keys.
type Config struct {
	Driver            string // memory, redis, redis-cluster, none
	RedisURL          string
	RedisClusterAddrs []string
	Prefix            string
}

// New builds the configured Cache.
func New(cfg Config) (Cache, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedisFromURL(cfg.RedisURL, cfg.Prefix)
	case "redis-cluster":
		return NewRedisCluster(cfg.RedisClusterAddrs, cfg.Prefix), nil
	case "none":
		return NewNone(), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
