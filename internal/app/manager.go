package app

import (
	"context"
	"fmt"
)

// ErrNotFound is returned by Manager.ByKey/ByID when no app matches.
var ErrNotFound = fmt.Errorf("app: not found")

// Manager is the App Registry contract: a read-mostly lookup fronted by
// a pluggable backend (memory, Postgres, MySQL, DynamoDB).
type Manager interface {
	ByKey(ctx context.Context, key string) (App, error)
	ByID(ctx context.Context, id string) (App, error)
	Close() error
}
