package cache

import (
	"context"
	"time"
)

// None is the no-op cache backend: every Get misses, Set/Delete are
// silently accepted. Used when cache.driver=none — cache-channel replay
// and webhook dedup are simply skipped.
type None struct{}

func NewNone() None { return None{} }

func (None) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }
func (None) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }
func (None) Delete(ctx context.Context, key string) error                       { return nil }
func (None) Has(ctx context.Context, key string) (bool, error)                  { return false, nil }
func (None) Close() error                                                       { return nil }
