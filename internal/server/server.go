// Package server assembles the App Registry, Adapter, Cache, Webhook
// Pipeline, Rate Limiter, Metrics Recorder, Channel Manager and the
// WebSocket Connection Handler into one running broker, and owns the
// start/stop lifecycle the HTTP API and main binary both drive.
package server

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumenbridge/broker/internal/adapter"
	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/cache"
	"github.com/lumenbridge/broker/internal/channelmanager"
	"github.com/lumenbridge/broker/internal/config"
	"github.com/lumenbridge/broker/internal/metrics"
	"github.com/lumenbridge/broker/internal/ratelimiter"
	"github.com/lumenbridge/broker/internal/webhook"
	"github.com/lumenbridge/broker/internal/websocket"
)

// Server holds every backend the HTTP API and WebSocket handler share.
type Server struct {
	Config      *config.Config
	Apps        app.Manager
	Adapter     adapter.Adapter
	Cache       cache.Cache
	Queue       webhook.Queue
	Webhooks    *webhook.Pipeline
	Workers     *webhook.WorkerPool
	RateLimiter ratelimiter.Limiter
	Metrics     *metrics.Recorder
	Registry    *prometheus.Registry
	Channels    *channelmanager.Manager
	WS          *websocket.Handler

	running   atomic.Bool
	startedAt time.Time
	workersWG chan struct{}
}

// New assembles a Server from cfg, building every pluggable backend
// through its package's factory. The returned Server has not started
// accepting connections yet; call Start.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	reg := prometheus.NewRegistry()
	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New(reg, cfg.Metrics.PrometheusPrefix)
	}

	apps, err := app.New(ctx, app.Config{
		Driver:      cfg.AppManager.Driver,
		PostgresURL: cfg.AppManager.PostgresURL,
		MySQLDSN:    cfg.AppManager.MySQLDSN,
		DynamoTable: cfg.AppManager.DynamoTable,
		CacheTTL:    cfg.AppManager.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("server: app registry: %w", err)
	}
	if mem, ok := apps.(*app.Memory); ok {
		app.EnsureDemoApp(mem)
	}

	ad, err := adapter.New(adapter.Config{
		Driver:            cfg.Adapter.Driver,
		RedisURL:          cfg.Adapter.RedisURL,
		RedisClusterAddrs: cfg.Adapter.RedisClusterAddrs,
		NatsURL:           cfg.Adapter.NatsURL,
		Prefix:            cfg.Adapter.Prefix,
	}, rec)
	if err != nil {
		return nil, fmt.Errorf("server: adapter: %w", err)
	}

	ch, err := cache.New(cache.Config{
		Driver:            cfg.Cache.Driver,
		RedisURL:          cfg.Cache.RedisURL,
		RedisClusterAddrs: cfg.Cache.RedisClusterAddrs,
		Prefix:            cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("server: cache: %w", err)
	}

	queue, err := webhook.NewQueue(ctx, webhook.QueueConfig{
		Driver:            cfg.Queue.Driver,
		MemoryCapacity:    cfg.Queue.MemoryCapacity,
		RedisURL:          cfg.Queue.RedisURL,
		RedisClusterAddrs: cfg.Queue.RedisClusterAddrs,
		SQSQueueURL:       cfg.Queue.SQSQueueURL,
	})
	if err != nil {
		return nil, fmt.Errorf("server: webhook queue: %w", err)
	}

	pipeline := webhook.NewPipeline(apps, queue, ch, webhook.BatchingConfig{
		Enabled:  cfg.Webhooks.BatchingEnabled,
		Duration: cfg.Webhooks.BatchingDuration,
	}, rec)
	sender := webhook.NewSender(10 * time.Second)
	workers := webhook.NewWorkerPool(queue, sender, apps, 4, 5, 500*time.Millisecond, rec)

	limiter, err := ratelimiter.New(ratelimiter.Config{
		Driver:   cfg.RateLimiter.Driver,
		RedisURL: cfg.Adapter.RedisURL,
		Prefix:   "ratelimit:",
	})
	if err != nil {
		return nil, fmt.Errorf("server: rate limiter: %w", err)
	}

	channels := channelmanager.New(ad, ch, pipeline)

	s := &Server{
		Config:      cfg,
		Apps:        apps,
		Adapter:     ad,
		Cache:       ch,
		Queue:       queue,
		Webhooks:    pipeline,
		Workers:     workers,
		RateLimiter: limiter,
		Metrics:     rec,
		Registry:    reg,
		Channels:    channels,
	}
	s.WS = websocket.NewHandler(apps, ad, channels, rec, websocket.Config{
		ActivityTimeout: 120 * time.Second,
		PongTimeout:     30 * time.Second,
	}, s.Running)
	return s, nil
}

// Running reports whether the server is still accepting new connections
// and work, consulted by the WebSocket handshake and the HTTP API's
// /up liveness check.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Start flips the running flag and launches the webhook worker pool.
// ctx governs the worker pool's lifetime, not the server's HTTP layer.
func (s *Server) Start(ctx context.Context) {
	s.running.Store(true)
	s.startedAt = time.Now()
	done := make(chan struct{})
	s.workersWG = done
	go func() {
		defer close(done)
		_ = s.Workers.Run(ctx)
	}()
}

// Shutdown stops admitting new work and releases backend resources.
// Callers are expected to have already stopped the HTTP listener and
// waited out their own grace period for in-flight WebSocket connections
// before calling this.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	if s.workersWG != nil {
		select {
		case <-s.workersWG:
		case <-ctx.Done():
		}
	}

	var firstErr error
	for _, closer := range []func() error{s.Adapter.Close, s.Cache.Close, s.Queue.Close, s.RateLimiter.Close, s.Apps.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Uptime reports how long the server has been accepting connections.
func (s *Server) Uptime() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
