package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lumenbridge/broker/internal/storage"
)

// Postgres is the app_manager.driver=pgsql backend, grounded on the
// teacher's storage.Postgres pool wrapper.
type Postgres struct {
	db *storage.Postgres
}

// NewPostgres opens a pool and returns a Manager over the apps table.
// The table is expected to already exist (schema management is out of
// scope here, matching the teacher's own lack of migration tooling).
func NewPostgres(cfg storage.PoolConfig) (*Postgres, error) {
	db, err := storage.NewPostgres(cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

const selectAppColumns = `
	id, key, secret, enabled, max_connections, max_client_events_per_second,
	max_channels_per_connection, enable_client_messages,
	max_presence_members_per_channel, max_presence_member_size_kb,
	webhooks, max_backend_events_per_second, max_read_requests_per_second`

func (p *Postgres) ByKey(ctx context.Context, key string) (App, error) {
	row := p.db.Pool().QueryRow(ctx, "SELECT "+selectAppColumns+" FROM apps WHERE key = $1", key)
	return scanApp(row)
}

func (p *Postgres) ByID(ctx context.Context, id string) (App, error) {
	row := p.db.Pool().QueryRow(ctx, "SELECT "+selectAppColumns+" FROM apps WHERE id = $1", id)
	return scanApp(row)
}

func scanApp(row pgx.Row) (App, error) {
	var a App
	var webhooksJSON []byte
	err := row.Scan(
		&a.ID, &a.Key, &a.Secret, &a.Enabled, &a.MaxConnections, &a.MaxClientEventsPerSecond,
		&a.MaxChannelsPerConnection, &a.EnableClientMessages,
		&a.MaxPresenceMembersPerChannel, &a.MaxPresenceMemberSizeKB,
		&webhooksJSON, &a.MaxBackendEventsPerSecond, &a.MaxReadRequestsPerSecond,
	)
	if err == pgx.ErrNoRows {
		return App{}, ErrNotFound
	}
	if err != nil {
		return App{}, fmt.Errorf("app: postgres scan: %w", err)
	}
	if len(webhooksJSON) > 0 {
		if err := json.Unmarshal(webhooksJSON, &a.Webhooks); err != nil {
			return App{}, fmt.Errorf("app: postgres webhooks decode: %w", err)
		}
	}
	return a, nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
