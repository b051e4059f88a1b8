package kv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"edgegate/internal/models"
)

// RedisStore implements Store on go-redis. This is the intended production
// backend: Redis gives native TTLs and cheap SCAN-based prefix enumeration,
// and its last-write-wins per-key semantics match the adapter contract.
type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies reachability with a ping.
func NewRedisStore(cfg models.RedisConfig, opTimeout time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, opTimeout: opTimeout}, nil
}

func (r *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("kv get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("kv set dropped", "key", key, "error", err)
		return false
	}
	return true
}

func (r *RedisStore) Delete(ctx context.Context, key string) bool {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("kv delete failed", "key", key, "error", err)
		return false
	}
	return true
}

func (r *RedisStore) ListKeys(ctx context.Context, prefix string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	keys := make([]string, 0, limit)
	iter := r.client.Scan(ctx, 0, prefix+"*", int64(limit)).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("kv scan failed, returning partial result", "prefix", prefix, "error", err)
	}
	return keys
}

func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
