package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgegate/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, models.StoreTypeMemory, cfg.Store.Type)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.Tiers[models.TierFree].Limit)
	assert.Equal(t, 1000, cfg.RateLimit.Tiers[models.TierPaid].Limit)
	assert.Equal(t, 10000, cfg.RateLimit.Tiers[models.TierEnterprise].Limit)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.RateLimit.Burst.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.Burst.Limit)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: 9999
  host: "127.0.0.1"
upstream:
  url: "http://backend:8000"
store:
  type: "redis"
  redis:
    addr: "redis.internal:6379"
    db: 2
ratelimit:
  tiers:
    free:
      limit: 50
      window: 30s
    paid:
      limit: 500
      window: 30s
    enterprise:
      limit: 5000
      window: 30s
  endpoints:
    search:
      window: 1m
      limits:
        free: 5
        paid: 50
  exempt:
    - "svc-billing"
session:
  ttl: 2h
logging:
  level: "debug"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "http://backend:8000", cfg.Upstream.URL)
	assert.Equal(t, models.StoreTypeRedis, cfg.Store.Type)
	assert.Equal(t, "redis.internal:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 50, cfg.RateLimit.Tiers[models.TierFree].Limit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Tiers[models.TierFree].Window)
	assert.Equal(t, 5, cfg.RateLimit.Endpoints["search"].Limits[models.TierFree])
	assert.Equal(t, []string{"svc-billing"}, cfg.RateLimit.Exempt)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("EDGEGATE_PORT", "7070")
	t.Setenv("EDGEGATE_HOST", "10.1.2.3")
	t.Setenv("EDGEGATE_UPSTREAM_URL", "http://api.internal:9000")
	t.Setenv("EDGEGATE_STORE_TYPE", "sqlite")
	t.Setenv("EDGEGATE_SQLITE_PATH", "/tmp/edgegate.db")
	t.Setenv("EDGEGATE_BURST_LIMIT", "25")
	t.Setenv("EDGEGATE_EXEMPT", "svc-a, svc-b,")
	t.Setenv("EDGEGATE_SESSION_TTL", "48h")
	t.Setenv("EDGEGATE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "10.1.2.3", cfg.Server.Host)
	assert.Equal(t, "http://api.internal:9000", cfg.Upstream.URL)
	assert.Equal(t, models.StoreTypeSQLite, cfg.Store.Type)
	assert.Equal(t, "/tmp/edgegate.db", cfg.Store.SQLite.Path)
	assert.Equal(t, 25, cfg.RateLimit.Burst.Limit)
	assert.Equal(t, []string{"svc-a", "svc-b"}, cfg.RateLimit.Exempt)
	assert.Equal(t, 48*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	content := `
server:
  port: 9999
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("EDGEGATE_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_InvalidTierPolicyIsFatal(t *testing.T) {
	// A nonpositive tier limit must fail validation at startup, not at
	// request time.
	content := `
ratelimit:
  tiers:
    free:
      limit: -5
      window: 1m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be positive")
}

func TestLoad_InvalidStoreType(t *testing.T) {
	t.Setenv("EDGEGATE_STORE_TYPE", "cassandra")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store type")
}

func TestLoad_RedisRequiresAddr(t *testing.T) {
	content := `
store:
  type: "redis"
  redis:
    addr: ""
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis store requires an address")
}
