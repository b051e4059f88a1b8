// Package models - service configuration and operational settings.
// Configuration is hierarchical (server, store, ratelimit, session, cache,
// logging, metrics, observability), loaded once at startup, and immutable
// afterwards. Hot reload, if it ever lands, must swap the whole Config value
// rather than mutating fields under running requests.
package models

import (
	"errors"
	"fmt"
	"time"
)

// KV store backend constants.
const (
	StoreTypeMemory   = "memory"
	StoreTypeRedis    = "redis"
	StoreTypePostgres = "postgres"
	StoreTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Store         StoreConfig         `yaml:"store" json:"store"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit" json:"ratelimit"`
	Session       SessionConfig       `yaml:"session" json:"session"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

// UpstreamConfig names the business API this layer fronts. Requests that
// pass admission are proxied there unmodified.
type UpstreamConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// StoreConfig selects and parameterizes the shared KV backend. All stateful
// concerns (sessions, counters, cache entries) share one store, partitioned
// by key prefix.
type StoreConfig struct {
	Type      string         `yaml:"type" json:"type"`
	OpTimeout time.Duration  `yaml:"op_timeout" json:"op_timeout"`
	Redis     RedisConfig    `yaml:"redis" json:"redis"`
	Postgres  PostgresConfig `yaml:"postgres" json:"postgres"`
	SQLite    SQLiteConfig   `yaml:"sqlite" json:"sqlite"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// TierPolicy is the quota assigned to one service tier.
type TierPolicy struct {
	Limit  int           `yaml:"limit" json:"limit"`
	Window time.Duration `yaml:"window" json:"window"`
}

// EndpointPolicy is an additional, independent quota applied on top of the
// global tier limit for a named sensitive endpoint. Limits are per tier.
type EndpointPolicy struct {
	Limits map[Tier]int  `yaml:"limits" json:"limits"`
	Window time.Duration `yaml:"window" json:"window"`
}

// BurstPolicy guards against sub-second request storms regardless of tier.
type BurstPolicy struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Limit   int           `yaml:"limit" json:"limit"`
	Window  time.Duration `yaml:"window" json:"window"`
}

// RateLimitConfig holds the tier table, per-endpoint overrides, burst
// thresholds, and the exemption list. Read-only after startup.
type RateLimitConfig struct {
	Enabled   bool                      `yaml:"enabled" json:"enabled"`
	Tiers     map[Tier]TierPolicy       `yaml:"tiers" json:"tiers"`
	Endpoints map[string]EndpointPolicy `yaml:"endpoints" json:"endpoints"`
	Burst     BurstPolicy               `yaml:"burst" json:"burst"`
	Exempt    []string                  `yaml:"exempt" json:"exempt"`
}

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig returns a configuration that works out of the box:
// in-memory store, free/paid/enterprise tier table, burst guard at 10 req/s.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Upstream: UpstreamConfig{
			URL:     "http://localhost:9000",
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Type:      StoreTypeMemory,
			OpTimeout: 2 * time.Second,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
			SQLite: SQLiteConfig{
				Path: "./edgegate.db",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Tiers: map[Tier]TierPolicy{
				TierFree:       {Limit: 100, Window: time.Minute},
				TierPaid:       {Limit: 1000, Window: time.Minute},
				TierEnterprise: {Limit: 10000, Window: time.Minute},
			},
			Endpoints: map[string]EndpointPolicy{},
			Burst: BurstPolicy{
				Enabled: true,
				Limit:   10,
				Window:  time.Second,
			},
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Cache: CacheConfig{
			DefaultTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "edgegate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// Validate checks the configuration for fatal misconfigurations. Policy
// errors are the only unrecoverable failures in this service, so they are
// caught here at startup rather than at request time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Type {
	case StoreTypeMemory, StoreTypeRedis, StoreTypePostgres, StoreTypeSQLite:
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}
	if c.Store.OpTimeout <= 0 {
		return errors.New("store op_timeout must be positive")
	}
	if c.Store.Type == StoreTypeRedis && c.Store.Redis.Addr == "" {
		return errors.New("redis store requires an address")
	}
	if c.Store.Type == StoreTypePostgres && c.Store.Postgres.DSN == "" {
		return errors.New("postgres store requires a DSN")
	}
	if c.Store.Type == StoreTypeSQLite && c.Store.SQLite.Path == "" {
		return errors.New("sqlite store requires a path")
	}

	if c.RateLimit.Enabled {
		if err := c.validateRateLimit(); err != nil {
			return err
		}
	}

	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		return errors.New("cache default_ttl must be positive")
	}

	if c.Upstream.URL == "" {
		return errors.New("upstream url is required")
	}

	return nil
}

func (c *Config) validateRateLimit() error {
	// Every known tier must have a policy so request-time lookup can never
	// hit a hole.
	for _, tier := range AllTiers {
		policy, ok := c.RateLimit.Tiers[tier]
		if !ok {
			return fmt.Errorf("missing rate limit policy for tier %q", tier)
		}
		if policy.Limit <= 0 {
			return fmt.Errorf("tier %q: limit must be positive", tier)
		}
		if policy.Window <= 0 {
			return fmt.Errorf("tier %q: window must be positive", tier)
		}
	}
	for tier := range c.RateLimit.Tiers {
		if !tier.Valid() {
			return fmt.Errorf("rate limit policy for unknown tier %q", tier)
		}
	}

	for name, ep := range c.RateLimit.Endpoints {
		if ep.Window <= 0 {
			return fmt.Errorf("endpoint %q: window must be positive", name)
		}
		for tier, limit := range ep.Limits {
			if !tier.Valid() {
				return fmt.Errorf("endpoint %q: unknown tier %q", name, tier)
			}
			if limit <= 0 {
				return fmt.Errorf("endpoint %q: tier %q limit must be positive", name, tier)
			}
		}
	}

	if c.RateLimit.Burst.Enabled {
		if c.RateLimit.Burst.Limit <= 0 {
			return errors.New("burst limit must be positive")
		}
		if c.RateLimit.Burst.Window <= 0 || c.RateLimit.Burst.Window > 10*time.Second {
			return errors.New("burst window must be positive and at most 10s")
		}
	}

	return nil
}
