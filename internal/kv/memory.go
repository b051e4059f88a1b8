package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryEntry holds a stored value and its absolute expiry. A zero expiry
// means the entry never expires.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore implements Store using an in-process map. State is local to
// the process, so it cannot enforce a global limit across replicas; it is
// intended for development, tests, and single-instance deployments. A
// background janitor evicts expired entries so long-lived processes do not
// accumulate dead counters.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewMemoryStore creates an in-memory store and starts the eviction janitor
// with the given sweep interval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	go m.janitor(cleanupInterval)
	return m
}

// Get returns the live value at key. Expired entries read as absent even if
// the janitor has not swept them yet.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		return nil, false
	}

	// Copy so callers cannot mutate stored bytes.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	m.mu.Unlock()
	return true
}

func (m *MemoryStore) Delete(ctx context.Context, key string) bool {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return true
}

func (m *MemoryStore) ListKeys(ctx context.Context, prefix string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	keys := make([]string, 0, limit)
	for key, e := range m.entries {
		if len(keys) >= limit {
			break
		}
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the eviction janitor. Safe to call more than once.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
