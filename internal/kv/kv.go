// Package kv provides a uniform get/set/delete/list interface over a
// distributed, eventually-consistent, TTL-capable key-value store. It is the
// single shared substrate for every stateful concern in the service: sessions
// ("session:"), rate counters ("ratelimit:", "burst:"), and cached values
// ("cache:") all live in one store, partitioned by key prefix.
//
// The contract is deliberately best-effort. No hot-path method returns an
// error: transient backend failures are logged and reported as a miss (Get)
// or false (Set/Delete), so callers degrade gracefully instead of failing the
// request. The store offers no atomic increment, no transactions, and no
// ordering across replicas beyond last-write-wins per key; layers above must
// tolerate that (see ratelimit for the documented soft-limit consequence).
package kv

import (
	"context"
	"time"
)

// Store is the key-value adapter contract. Implementations must be safe for
// concurrent use and must bound every operation with their configured
// per-call timeout.
type Store interface {
	// Get returns the value at key. ok is false on miss, expiry, and
	// transient backend failure alike.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set writes value at key with the given TTL, fully resetting any
	// previous expiry. A non-positive ttl stores without expiry. Returns
	// false (and logs) on backend failure; writes are best-effort.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool

	// Delete removes key. Returns false on backend failure. Deleting an
	// absent key is not a failure.
	Delete(ctx context.Context, key string) bool

	// ListKeys enumerates up to limit keys with the given prefix. This is
	// expensive (a scan on every backend) and exists for administrative
	// enumeration only; it must never run on the admission hot path.
	ListKeys(ctx context.Context, prefix string, limit int) []string

	// Ping reports backend reachability for health checks.
	Ping(ctx context.Context) error

	// Close releases connections and stops background goroutines.
	Close() error
}
