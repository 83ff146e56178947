package ratelimiter

import "fmt"

// Config selects a rate limiter backend, mirroring rate_limiter.* keys.
type Config struct {
	Driver   string // memory, redis
	RedisURL string
	Prefix   string
}

// New builds the configured Limiter.
func New(cfg Config) (Limiter, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.RedisURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("ratelimiter: unknown driver %q", cfg.Driver)
	}
}
