package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig tunes a Postgres connection pool, narrowed from the
// server-wide config so any package can open a pool without importing
// internal/config.
type PoolConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
	AcquireTimeout    time.Duration
}

// Postgres wraps a PostgreSQL connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	cfg  PoolConfig
}

// NewPostgres creates a new PostgreSQL connection pool with configurable
// settings, grounded on the teacher's typed-pool-config construction.
func NewPostgres(cfg PoolConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("connected to postgres (pool: %d-%d connections)", cfg.MinConns, cfg.MaxConns)

	return &Postgres{pool: pool, cfg: cfg}, nil
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
	log.Println("postgres connection pool closed")
}

// HealthCheck verifies the database connection is alive.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Stats returns the current pool statistics.
func (p *Postgres) Stats() *pgxpool.Stat {
	return p.pool.Stat()
}

// AcquireWithTimeout acquires a connection with the configured timeout.
func (p *Postgres) AcquireWithTimeout(ctx context.Context) (*pgxpool.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database connection (timeout: %s): %w", p.cfg.AcquireTimeout, err)
	}
	return conn, nil
}

// LogStats logs current pool statistics.
func (p *Postgres) LogStats() {
	stats := p.pool.Stat()
	log.Printf("db pool stats: total=%d, idle=%d, inUse=%d, maxConns=%d",
		stats.TotalConns(),
		stats.IdleConns(),
		stats.TotalConns()-stats.IdleConns(),
		stats.MaxConns(),
	)
}
