package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL is the app_manager.driver=mysql backend, grounded on the mysql
// driver and gorm stack vendored by the pack's chat-service example,
// accessed here through database/sql directly since no runtime query
// code in the pack demonstrates gorm usage worth imitating.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens a connection pool against dsn (the go-sql-driver/mysql
// DSN format, e.g. "user:pass@tcp(host:3306)/dbname").
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("app: mysql open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("app: mysql ping: %w", err)
	}
	return &MySQL{db: db}, nil
}

const selectMySQLAppColumns = `
	id, app_key, secret, enabled, max_connections, max_client_events_per_second,
	max_channels_per_connection, enable_client_messages,
	max_presence_members_per_channel, max_presence_member_size_kb,
	webhooks, max_backend_events_per_second, max_read_requests_per_second`

func (m *MySQL) ByKey(ctx context.Context, key string) (App, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+selectMySQLAppColumns+" FROM apps WHERE app_key = ?", key)
	return scanMySQLApp(row)
}

func (m *MySQL) ByID(ctx context.Context, id string) (App, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+selectMySQLAppColumns+" FROM apps WHERE id = ?", id)
	return scanMySQLApp(row)
}

func scanMySQLApp(row *sql.Row) (App, error) {
	var a App
	var webhooksJSON sql.NullString
	err := row.Scan(
		&a.ID, &a.Key, &a.Secret, &a.Enabled, &a.MaxConnections, &a.MaxClientEventsPerSecond,
		&a.MaxChannelsPerConnection, &a.EnableClientMessages,
		&a.MaxPresenceMembersPerChannel, &a.MaxPresenceMemberSizeKB,
		&webhooksJSON, &a.MaxBackendEventsPerSecond, &a.MaxReadRequestsPerSecond,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return App{}, ErrNotFound
	}
	if err != nil {
		return App{}, fmt.Errorf("app: mysql scan: %w", err)
	}
	if webhooksJSON.Valid && webhooksJSON.String != "" {
		if err := json.Unmarshal([]byte(webhooksJSON.String), &a.Webhooks); err != nil {
			return App{}, fmt.Errorf("app: mysql webhooks decode: %w", err)
		}
	}
	return a, nil
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
