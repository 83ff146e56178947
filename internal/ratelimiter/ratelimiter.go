// Package ratelimiter implements the HTTP API's IP-based rate limiting,
// pluggable between an in-process bucket and a shared Redis counter.
package ratelimiter

import (
	"context"
	"time"
)

// Result mirrors the X-RateLimit-* response headers the HTTP API sends.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAfter time.Duration
}

// Limiter is the contract both backends implement, grounded on the
// original implementation's RateLimiter trait (check/increment/reset).
type Limiter interface {
	// Allow increments key's counter for the current window and reports
	// whether the request should proceed.
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (Result, error)
	Close() error
}
