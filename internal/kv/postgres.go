package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"edgegate/internal/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx ON kv_entries (expires_at);
`

// PostgresStore implements Store on a kv_entries table. Postgres has no
// native TTL, so expiry is a filter on read plus a periodic reaper that
// deletes rows past their expires_at. Between sweeps an expired row still
// reads as absent, which preserves the adapter contract.
type PostgresStore struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
	done      chan struct{}
}

// NewPostgresStore connects, ensures the schema, and starts the expiry
// reaper.
func NewPostgresStore(cfg models.PostgresConfig, opTimeout time.Duration) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(context.Background(), pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ps := &PostgresStore{
		pool:      pool,
		opTimeout: opTimeout,
		done:      make(chan struct{}),
	}
	go ps.reaper()
	return ps, nil
}

func (p *PostgresStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opTimeout)
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Warn("kv get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		slog.Warn("kv set dropped", "key", key, "error", err)
		return false
	}
	return true
}

func (p *PostgresStore) Delete(ctx context.Context, key string) bool {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	if _, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		slog.Warn("kv delete failed", "key", key, "error", err)
		return false
	}
	return true
}

func (p *PostgresStore) ListKeys(ctx context.Context, prefix string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT key FROM kv_entries
		 WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())
		 LIMIT $2`,
		prefix, limit,
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

func (p *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	close(p.done)
	p.pool.Close()
	return nil
}

// reaper deletes expired rows once a minute. Losing a sweep is harmless;
// expired rows are already invisible to readers.
func (p *PostgresStore) reaper() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.opTimeout)
			if _, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`); err != nil {
				slog.Warn("kv expiry sweep failed", "error", err)
			}
			cancel()
		}
	}
}
