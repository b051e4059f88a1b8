package kv

import (
	"fmt"
	"time"

	"edgegate/internal/models"
)

// NewStore creates a Store for the configured backend type.
func NewStore(cfg models.StoreConfig) (Store, error) {
	switch cfg.Type {
	case models.StoreTypeMemory:
		return NewMemoryStore(time.Minute), nil
	case models.StoreTypeRedis:
		return NewRedisStore(cfg.Redis, cfg.OpTimeout)
	case models.StoreTypePostgres:
		return NewPostgresStore(cfg.Postgres, cfg.OpTimeout)
	case models.StoreTypeSQLite:
		return NewSQLiteStore(cfg.SQLite, cfg.OpTimeout)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
