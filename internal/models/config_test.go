package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "unsupported store type",
			mutate:  func(c *Config) { c.Store.Type = "dynamo" },
			wantErr: "unsupported store type",
		},
		{
			name:    "zero op timeout",
			mutate:  func(c *Config) { c.Store.OpTimeout = 0 },
			wantErr: "op_timeout must be positive",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Store.Type = StoreTypeRedis
				c.Store.Redis.Addr = ""
			},
			wantErr: "redis store requires an address",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Store.Type = StoreTypePostgres
			},
			wantErr: "postgres store requires a DSN",
		},
		{
			name: "missing tier policy",
			mutate: func(c *Config) {
				delete(c.RateLimit.Tiers, TierPaid)
			},
			wantErr: `missing rate limit policy for tier "paid"`,
		},
		{
			name: "nonpositive tier limit",
			mutate: func(c *Config) {
				c.RateLimit.Tiers[TierFree] = TierPolicy{Limit: 0, Window: time.Minute}
			},
			wantErr: "limit must be positive",
		},
		{
			name: "nonpositive tier window",
			mutate: func(c *Config) {
				c.RateLimit.Tiers[TierFree] = TierPolicy{Limit: 100, Window: 0}
			},
			wantErr: "window must be positive",
		},
		{
			name: "policy for unknown tier",
			mutate: func(c *Config) {
				c.RateLimit.Tiers[Tier("platinum")] = TierPolicy{Limit: 1, Window: time.Minute}
			},
			wantErr: "unknown tier",
		},
		{
			name: "endpoint with zero window",
			mutate: func(c *Config) {
				c.RateLimit.Endpoints["search"] = EndpointPolicy{
					Limits: map[Tier]int{TierFree: 5},
				}
			},
			wantErr: `endpoint "search": window must be positive`,
		},
		{
			name: "endpoint limit for unknown tier",
			mutate: func(c *Config) {
				c.RateLimit.Endpoints["search"] = EndpointPolicy{
					Limits: map[Tier]int{Tier("vip"): 5},
					Window: time.Minute,
				}
			},
			wantErr: `endpoint "search": unknown tier`,
		},
		{
			name: "burst window too long",
			mutate: func(c *Config) {
				c.RateLimit.Burst.Window = time.Minute
			},
			wantErr: "burst window must be positive and at most 10s",
		},
		{
			name: "burst limit nonpositive",
			mutate: func(c *Config) {
				c.RateLimit.Burst.Limit = 0
			},
			wantErr: "burst limit must be positive",
		},
		{
			name: "rate limiting disabled skips tier checks",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				delete(c.RateLimit.Tiers, TierPaid)
			},
		},
		{
			name:    "zero session ttl",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantErr: "session ttl must be positive",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Cache.DefaultTTL = 0 },
			wantErr: "cache default_ttl must be positive",
		},
		{
			name:    "missing upstream url",
			mutate:  func(c *Config) { c.Upstream.URL = "" },
			wantErr: "upstream url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
