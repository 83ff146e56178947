package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "HOST", "PORT", "DEBUG", "ADAPTER_DRIVER", "APP_MANAGER_DRIVER",
		"CACHE_DRIVER", "QUEUE_DRIVER", "RATE_LIMITER_DRIVER", "METRICS_DRIVER",
		"REDIS_URL", "NATS_URL", "DATABASE_URL", "MYSQL_DSN", "CORS_ALLOWED_ORIGINS",
		"PROCESS_ID", "ADMIN_SECRET",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.json"))
	defer os.Unsetenv("CONFIG_FILE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "6001", cfg.Port)
	assert.Equal(t, "local", cfg.Adapter.Driver)
	assert.Equal(t, "memory", cfg.AppManager.Driver)
	assert.False(t, cfg.Debug)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":"7001","adapter":{"driver":"redis","redis_url":"redis://file:6379"}}`), 0o644))
	os.Setenv("CONFIG_FILE", path)
	defer os.Unsetenv("CONFIG_FILE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port)
	assert.Equal(t, "redis", cfg.Adapter.Driver)
	assert.Equal(t, "redis://file:6379", cfg.Adapter.RedisURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":"7001","adapter":{"driver":"redis"}}`), 0o644))
	os.Setenv("CONFIG_FILE", path)
	os.Setenv("PORT", "9999")
	os.Setenv("ADAPTER_DRIVER", "nats")
	os.Setenv("REDIS_URL", "redis://env:6379")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "nats", cfg.Adapter.Driver)
	assert.Equal(t, "redis://env:6379", cfg.Cache.RedisURL)
}

func TestLoad_DebugAlwaysWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"debug":false}`), 0o644))
	os.Setenv("CONFIG_FILE", path)
	os.Setenv("DEBUG", "1")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestLoad_PgsqlRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.json"))
	os.Setenv("APP_MANAGER_DRIVER", "pgsql")
	defer clearEnv(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CORSOriginsFromEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.json"))
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins)
}
