// Package cache provides a typed read-through/write-through cache over the
// shared KV store. All values are JSON-serialized before storage; a payload
// that fails to decode reads as a miss, so cache corruption degrades to a
// cold lookup rather than an outage.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"edgegate/internal/kv"
)

// Prefix is the key namespace for cached values within the shared store.
const Prefix = "cache:"

// Cache wraps a kv.Store with JSON encoding and a default expiry.
type Cache struct {
	store      kv.Store
	defaultTTL time.Duration
}

// New creates a Cache. defaultTTL applies to Set calls that omit a TTL.
func New(store kv.Store, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Cache{store: store, defaultTTL: defaultTTL}
}

func (c *Cache) key(key string) string {
	return Prefix + key
}

// Get reads the value at key into out. Returns false on miss, expiry,
// backend failure, and undecodable payloads alike.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	data, ok := c.store.Get(ctx, c.key(key))
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("cache payload undecodable, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores value at key. An optional TTL overrides the cache default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl ...time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache value not serializable, dropping", "key", key, "error", err)
		return false
	}

	expiry := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		expiry = ttl[0]
	}
	return c.store.Set(ctx, c.key(key), data, expiry)
}

// Delete removes the value at key.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	return c.store.Delete(ctx, c.key(key))
}

// Exists reports whether a live value is stored at key.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	_, ok := c.store.Get(ctx, c.key(key))
	return ok
}

// DeletePrefix removes every cached value under the given prefix and returns
// the number deleted. It enumerates then deletes, so a concurrent writer can
// race a new entry past the sweep; this is a maintenance operation, not a
// consistency primitive, and must stay off the hot path.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) int {
	const batch = 1000

	deleted := 0
	for {
		keys := c.store.ListKeys(ctx, c.key(prefix), batch)
		if len(keys) == 0 {
			return deleted
		}
		progress := 0
		for _, key := range keys {
			if c.store.Delete(ctx, key) {
				deleted++
				progress++
			}
		}
		// A failing backend would return the same keys forever.
		if len(keys) < batch || progress == 0 {
			return deleted
		}
	}
}
