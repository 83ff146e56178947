// Package config loads the broker's configuration from an optional JSON
// file overlaid with environment variables, in the style of the
// teacher's config.Load (typed getters, required-in-production checks),
// generalized into per-driver sub-structs so each package's factory
// takes a narrow config type instead of the whole *Config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SSLConfig mirrors ssl.{enabled,cert_path,key_path,redirect_http,http_port}.
type SSLConfig struct {
	Enabled      bool   `json:"enabled"`
	CertPath     string `json:"cert_path"`
	KeyPath      string `json:"key_path"`
	RedirectHTTP bool   `json:"redirect_http"`
	HTTPPort     string `json:"http_port"`
}

// CORSConfig mirrors cors.{origin[],methods[],allowed_headers[],credentials}.
type CORSConfig struct {
	Origins     []string `json:"origin"`
	Methods     []string `json:"methods"`
	Headers     []string `json:"allowed_headers"`
	Credentials bool     `json:"credentials"`
}

// AdapterConfig mirrors adapter.*.
type AdapterConfig struct {
	Driver            string   `json:"driver"`
	RedisURL          string   `json:"redis_url"`
	RedisClusterAddrs []string `json:"redis_cluster_addrs"`
	NatsURL           string   `json:"nats_url"`
	Prefix            string   `json:"prefix"`
}

// AppManagerConfig mirrors app_manager.*.
type AppManagerConfig struct {
	Driver      string        `json:"driver"`
	PostgresURL string        `json:"postgres_url"`
	MySQLDSN    string        `json:"mysql_dsn"`
	DynamoTable string        `json:"dynamo_table"`
	CacheTTL    time.Duration `json:"cache_ttl"`
}

// CacheConfig mirrors cache.*.
type CacheConfig struct {
	Driver            string   `json:"driver"`
	RedisURL          string   `json:"redis_url"`
	RedisClusterAddrs []string `json:"redis_cluster_addrs"`
	Prefix            string   `json:"prefix"`
}

// QueueConfig mirrors queue.*.
type QueueConfig struct {
	Driver            string   `json:"driver"`
	MemoryCapacity    int      `json:"memory_capacity"`
	RedisURL          string   `json:"redis_url"`
	RedisClusterAddrs []string `json:"redis_cluster_addrs"`
	RedisKey          string   `json:"redis_key"`
	SQSQueueURL       string   `json:"sqs_queue_url"`
}

// MetricsConfig mirrors metrics.{enabled,host,port,driver,prometheus.prefix}.
type MetricsConfig struct {
	Enabled          bool   `json:"enabled"`
	Host             string `json:"host"`
	Port             string `json:"port"`
	Driver           string `json:"driver"`
	PrometheusPrefix string `json:"prometheus_prefix"`
}

// RateLimiterConfig mirrors rate_limiter.{enabled,driver,api_rate_limit.*}.
type RateLimiterConfig struct {
	Enabled       bool   `json:"enabled"`
	Driver        string `json:"driver"`
	MaxRequests   int64  `json:"max_requests"`
	WindowSeconds int    `json:"window_seconds"`
	TrustHops     int    `json:"trust_hops"`
}

// WebhooksConfig mirrors webhooks.batching.{enabled,duration}.
type WebhooksConfig struct {
	BatchingEnabled  bool          `json:"batching_enabled"`
	BatchingDuration time.Duration `json:"batching_duration"`
}

// InstanceConfig mirrors instance.process_id.
type InstanceConfig struct {
	ProcessID string `json:"process_id"`
}

// Config holds all configuration for the server.
type Config struct {
	Host                string        `json:"host"`
	Port                string        `json:"port"`
	Debug               bool          `json:"debug"`
	ShutdownGracePeriod time.Duration `json:"shutdown_grace_period"`

	SSL         SSLConfig         `json:"ssl"`
	CORS        CORSConfig        `json:"cors"`
	Adapter     AdapterConfig     `json:"adapter"`
	AppManager  AppManagerConfig  `json:"app_manager"`
	Cache       CacheConfig       `json:"cache"`
	Queue       QueueConfig       `json:"queue"`
	Metrics     MetricsConfig     `json:"metrics"`
	RateLimiter RateLimiterConfig `json:"rate_limiter"`
	Webhooks    WebhooksConfig    `json:"webhooks"`
	Instance    InstanceConfig    `json:"instance"`

	// AdminSecret guards the operator-only /usage and /metrics routes.
	// Empty disables the guard (local/dev).
	AdminSecret []byte `json:"-"`
}

// Load reads a JSON config file (path from CONFIG_FILE, default
// config.json; missing file is not an error), then overlays
// environment variables for host/port, every driver selector, and the
// REDIS_URL/NATS_URL shortcuts, then lets DEBUG=1 win over everything.
func Load() (*Config, error) {
	cfg := defaults()

	path := getEnv("CONFIG_FILE", "config.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	applyEnv(cfg)

	if getEnv("DEBUG", "") == "1" {
		cfg.Debug = true
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Host:                "0.0.0.0",
		Port:                "6001",
		ShutdownGracePeriod: 10 * time.Second,
		Adapter:             AdapterConfig{Driver: "local", Prefix: "lumenbridge:"},
		AppManager:          AppManagerConfig{Driver: "memory", CacheTTL: 30 * time.Second},
		Cache:               CacheConfig{Driver: "memory", Prefix: "lumenbridge:"},
		Queue:               QueueConfig{Driver: "memory", MemoryCapacity: 1024},
		Metrics:             MetricsConfig{Host: "0.0.0.0", Port: "9090", Driver: "prometheus", PrometheusPrefix: "lumenbridge"},
		RateLimiter:         RateLimiterConfig{Driver: "memory", MaxRequests: 100, WindowSeconds: 60},
		Webhooks:            WebhooksConfig{BatchingEnabled: true, BatchingDuration: time.Second},
	}
}

// applyEnv overlays the environment variables spec.md §6 names: host,
// port, every driver selector, and REDIS_URL/NATS_URL shortcuts.
func applyEnv(cfg *Config) {
	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.Port = getEnv("PORT", cfg.Port)

	cfg.Adapter.Driver = getEnv("ADAPTER_DRIVER", cfg.Adapter.Driver)
	cfg.AppManager.Driver = getEnv("APP_MANAGER_DRIVER", cfg.AppManager.Driver)
	cfg.Cache.Driver = getEnv("CACHE_DRIVER", cfg.Cache.Driver)
	cfg.Queue.Driver = getEnv("QUEUE_DRIVER", cfg.Queue.Driver)
	cfg.RateLimiter.Driver = getEnv("RATE_LIMITER_DRIVER", cfg.RateLimiter.Driver)
	cfg.Metrics.Driver = getEnv("METRICS_DRIVER", cfg.Metrics.Driver)

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Adapter.RedisURL = redisURL
		cfg.Cache.RedisURL = redisURL
		cfg.Queue.RedisURL = redisURL
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.Adapter.NatsURL = natsURL
	}

	cfg.AppManager.PostgresURL = getEnv("DATABASE_URL", cfg.AppManager.PostgresURL)
	cfg.AppManager.MySQLDSN = getEnv("MYSQL_DSN", cfg.AppManager.MySQLDSN)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i, o := range parts {
			parts[i] = strings.TrimSpace(o)
		}
		cfg.CORS.Origins = parts
	}

	cfg.Instance.ProcessID = getEnv("PROCESS_ID", cfg.Instance.ProcessID)

	if secret := os.Getenv("ADMIN_SECRET"); secret != "" {
		cfg.AdminSecret = []byte(secret)
	}

	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
}

// validate applies the production-only requirements the teacher's
// config.Load enforces for secrets, generalized to this repo's surface.
func validate(cfg *Config) error {
	if cfg.SSL.Enabled {
		if cfg.SSL.CertPath == "" || cfg.SSL.KeyPath == "" {
			return fmt.Errorf("config: ssl.enabled requires cert_path and key_path")
		}
	}
	if cfg.AppManager.Driver == "pgsql" && cfg.AppManager.PostgresURL == "" {
		return fmt.Errorf("config: app_manager.driver=pgsql requires DATABASE_URL")
	}
	if cfg.AppManager.Driver == "mysql" && cfg.AppManager.MySQLDSN == "" {
		return fmt.Errorf("config: app_manager.driver=mysql requires MYSQL_DSN")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
