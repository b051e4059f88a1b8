// Package session stores keyed session records in the shared KV store under
// the "session:" namespace. Records are TTL-governed: absence after expiry is
// the deletion mechanism, and no other component writes session keys.
//
// A secondary index at "user_sessions:<userId>" maps each user to their
// session ids so enumeration does not scan the whole namespace. The index is
// maintained best-effort alongside Create, Extend, and Delete and pruned of
// dead ids on read; a stale index entry costs one extra Get, never a wrong
// answer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"edgegate/internal/kv"
)

// Key namespaces within the shared store.
const (
	Prefix      = "session:"
	IndexPrefix = "user_sessions:"
)

// indexSlack keeps index entries alive slightly longer than the sessions
// they point at, so a session extended near its expiry is still findable.
const indexSlack = time.Hour

// Session is a single session record. CreatedAt and Metadata are fixed at
// creation; Extend refreshes the TTL without touching either.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store manages session records and the per-user index. Store unavailability
// surfaces as absent on reads (forcing re-authentication upstream) and is
// logged, not returned, on writes.
type Store struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a session store with the given session lifetime.
func NewStore(store kv.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{store: store, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string   { return Prefix + id }
func indexKey(userID string) string { return IndexPrefix + userID }

// Create writes a new session record with a fresh TTL, overwriting any
// existing record at that id, and registers the id in the user's index.
func (s *Store) Create(ctx context.Context, sessionID, userID string, metadata map[string]string) (*Session, error) {
	if sessionID == "" || userID == "" {
		return nil, errors.New("session: id and user id are required")
	}

	record := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Metadata:  metadata,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, errors.New("session: record not serializable")
	}
	if !s.store.Set(ctx, sessionKey(sessionID), data, s.ttl) {
		slog.Warn("session write dropped", "session_id", sessionID, "user_id", userID)
	}

	s.indexAdd(ctx, userID, sessionID)
	return record, nil
}

// Get returns the session at id, or nil when absent, expired, or the store
// is unreachable.
func (s *Store) Get(ctx context.Context, sessionID string) *Session {
	data, ok := s.store.Get(ctx, sessionKey(sessionID))
	if !ok {
		return nil
	}

	var record Session
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn("session record undecodable, treating as absent", "session_id", sessionID, "error", err)
		return nil
	}
	return &record
}

// Extend rewrites the current record with a refreshed TTL and re-registers
// the index entry so it outlives the extended session. It is a no-op on
// absent sessions: an expired session is gone and cannot be resurrected.
// Returns the live record, or nil when there was nothing to extend.
func (s *Store) Extend(ctx context.Context, sessionID string) *Session {
	record := s.Get(ctx, sessionID)
	if record == nil {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		slog.Warn("session record not serializable on extend", "session_id", sessionID, "error", err)
		return record
	}
	if !s.store.Set(ctx, sessionKey(sessionID), data, s.ttl) {
		slog.Warn("session extend dropped", "session_id", sessionID)
	}

	s.indexAdd(ctx, record.UserID, sessionID)
	return record
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) {
	record := s.Get(ctx, sessionID)
	s.store.Delete(ctx, sessionKey(sessionID))
	if record != nil {
		s.indexRemove(ctx, record.UserID, sessionID)
	}
}

// ListByUser returns the ids of the user's live sessions via the secondary
// index. Dead ids found along the way are pruned back into the index.
func (s *Store) ListByUser(ctx context.Context, userID string) []string {
	ids := s.indexRead(ctx, userID)
	if len(ids) == 0 {
		return nil
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.store.Get(ctx, sessionKey(id)); ok {
			live = append(live, id)
		}
	}
	if len(live) != len(ids) {
		s.indexWrite(ctx, userID, live)
	}
	return live
}

// ScanSessions enumerates up to limit session keys by prefix scan. This is
// O(total sessions) on every backend and exists for operator tooling only.
func (s *Store) ScanSessions(ctx context.Context, limit int) []string {
	keys := s.store.ListKeys(ctx, Prefix, limit)
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, key[len(Prefix):])
	}
	return ids
}

func (s *Store) indexRead(ctx context.Context, userID string) []string {
	data, ok := s.store.Get(ctx, indexKey(userID))
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		slog.Warn("session index undecodable, treating as empty", "user_id", userID, "error", err)
		return nil
	}
	return ids
}

func (s *Store) indexWrite(ctx context.Context, userID string, ids []string) {
	if len(ids) == 0 {
		s.store.Delete(ctx, indexKey(userID))
		return
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if !s.store.Set(ctx, indexKey(userID), data, s.ttl+indexSlack) {
		slog.Warn("session index write dropped", "user_id", userID)
	}
}

func (s *Store) indexAdd(ctx context.Context, userID, sessionID string) {
	ids := s.indexRead(ctx, userID)
	for _, id := range ids {
		if id == sessionID {
			// Idempotent create: already indexed.
			s.indexWrite(ctx, userID, ids)
			return
		}
	}
	s.indexWrite(ctx, userID, append(ids, sessionID))
}

func (s *Store) indexRemove(ctx context.Context, userID, sessionID string) {
	ids := s.indexRead(ctx, userID)
	kept := ids[:0]
	for _, id := range ids {
		if id != sessionID {
			kept = append(kept, id)
		}
	}
	s.indexWrite(ctx, userID, kept)
}
