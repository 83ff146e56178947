// Package cache is an opaque string-to-string TTL store. The webhook
// pipeline uses it to dedupe emission, and the Channel Manager reads a
// cache- channel's last-event entry from it on subscribe; no code path in
// this repository writes those last-event entries, so that read misses.
package cache

import (
	"context"
	"time"
)

// Cache is the contract every backend implements.
type Cache interface {
	// Get returns the stored value and true, or ("", false) on miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with the given time-to-live.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key if present; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Has reports whether key is present without paying for the value.
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}
