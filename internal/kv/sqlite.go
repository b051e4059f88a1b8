package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"edgegate/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx ON kv_entries (expires_at);
`

// SQLiteStore implements Store on a local SQLite file for single-node
// deployments without external infrastructure. Expiry timestamps are stored
// as unix milliseconds (NULL for no expiry) and handled the same way as the
// Postgres backend: filtered on read, reaped periodically.
type SQLiteStore struct {
	db        *sql.DB
	opTimeout time.Duration
	done      chan struct{}
}

// NewSQLiteStore opens (or creates) the database file and ensures the schema.
func NewSQLiteStore(cfg models.SQLiteConfig, opTimeout time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		opTimeout: opTimeout,
		done:      make(chan struct{}),
	}
	go s.reaper()
	return s, nil
}

func (s *SQLiteStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Warn("kv get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var expiresAt *int64
	if ttl > 0 {
		t := time.Now().Add(ttl).UnixMilli()
		expiresAt = &t
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		slog.Warn("kv set dropped", "key", key, "error", err)
		return false
	}
	return true
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) bool {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		slog.Warn("kv delete failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *SQLiteStore) ListKeys(ctx context.Context, prefix string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries
		 WHERE key LIKE ? || '%' AND (expires_at IS NULL OR expires_at > ?)
		 LIMIT ?`,
		prefix, nowMillis(), limit,
	)
	if err != nil {
		slog.Warn("kv list failed", "prefix", prefix, "error", err)
		return nil
	}
	defer rows.Close()

	keys := make([]string, 0, limit)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			slog.Warn("kv list scan failed", "prefix", prefix, "error", err)
			break
		}
		keys = append(keys, key)
	}
	return keys
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	close(s.done)
	return s.db.Close()
}

func (s *SQLiteStore) reaper() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
			if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, nowMillis()); err != nil {
				slog.Warn("kv expiry sweep failed", "error", err)
			}
			cancel()
		}
	}
}
