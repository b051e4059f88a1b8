// Package ratelimit provides tiered, fixed-window rate limiting over the
// shared KV store, plus the HTTP middleware chain that composes it into
// request admission (burst guard, tier quota, anonymous IP quota, and
// per-endpoint overrides).
//
// Fixed windows are chosen over sliding windows deliberately: the store has
// no atomic increment, so every window boundary is a hard reset rather than
// a continuously decaying quota. A client can therefore burst up to 2x the
// limit across a boundary, and concurrent requests in the same window can
// read the same count and both write count+1, over-admitting by at most the
// number of in-flight racers. These are accepted soft-limit semantics;
// deployments needing hard guarantees must use a backend with atomic
// counters.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"edgegate/internal/kv"
)

// Counter key namespaces within the shared store. Minute-granularity tier
// and endpoint counters live under CounterPrefix; the sub-second burst guard
// has its own namespace so the two never collide.
const (
	CounterPrefix = "ratelimit:"
	BurstPrefix   = "burst:"
)

// Policy is a quota: at most Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one admission check, carrying everything the
// middleware needs for headers and rejection bodies.
type Decision struct {
	Allowed   bool
	Limit     int
	Used      int
	Remaining int
	ResetAt   time.Time
}

// Limiter implements fixed-window counting. It holds no per-request state;
// all counters live in the store and expire on their own.
type Limiter struct {
	store kv.Store
	now   func() time.Time
}

// NewLimiter creates a Limiter over the given store.
func NewLimiter(store kv.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// window computes the deterministic bucket id for the current wall-clock
// time and the instant the next window starts.
func (l *Limiter) window(p Policy) (id int64, resetAt time.Time) {
	now := l.now()
	id = now.UnixNano() / int64(p.Window)
	resetAt = time.Unix(0, (id+1)*int64(p.Window)).UTC()
	return id, resetAt
}

// counterKey appends the window bucket id to the caller's scope key, e.g.
// "ratelimit:tier:user_42" -> "ratelimit:tier:user_42:29384756".
func counterKey(scope string, windowID int64) string {
	return scope + ":" + strconv.FormatInt(windowID, 10)
}

// counterTTL keeps counters alive slightly past their window so a write at
// the end of the window still covers the whole of it, then lets the store
// reclaim them without explicit cleanup.
func counterTTL(p Policy) time.Duration {
	return p.Window + p.Window/2
}

// readCount returns the current counter value, treating miss, failure, and
// garbage alike as zero: reads fail open.
func (l *Limiter) readCount(ctx context.Context, key string) int {
	data, ok := l.store.Get(ctx, key)
	if !ok {
		return 0
	}
	count, err := strconv.Atoi(string(data))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// Allow checks and consumes one request against the policy for the given
// scope key. The read-then-write pair is not atomic; see the package comment
// for the over-admission bound this implies. Counters only ever increase
// within a window; the write is best-effort, so a dropped increment
// under-counts slightly rather than failing the request.
func (l *Limiter) Allow(ctx context.Context, scope string, p Policy) Decision {
	windowID, resetAt := l.window(p)
	key := counterKey(scope, windowID)

	count := l.readCount(ctx, key)
	allowed := count < p.Limit

	used := count
	if allowed {
		used = count + 1
		l.store.Set(ctx, key, []byte(strconv.Itoa(used)), counterTTL(p))
	}

	remaining := p.Limit - used
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed,
		Limit:     p.Limit,
		Used:      used,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Usage is the read-only variant of Allow: same computation, no write.
func (l *Limiter) Usage(ctx context.Context, scope string, p Policy) Decision {
	windowID, resetAt := l.window(p)
	count := l.readCount(ctx, counterKey(scope, windowID))

	remaining := p.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count < p.Limit,
		Limit:     p.Limit,
		Used:      count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Reset deletes the current window's counter. Administrative override only.
func (l *Limiter) Reset(ctx context.Context, scope string, p Policy) bool {
	windowID, _ := l.window(p)
	return l.store.Delete(ctx, counterKey(scope, windowID))
}
