package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgegate/internal/models"
)

func testStoreConfig() models.StoreConfig {
	return models.StoreConfig{
		Type:      models.StoreTypeMemory,
		OpTimeout: 2 * time.Second,
	}
}

func TestNewStore_UnsupportedType(t *testing.T) {
	cfg := testStoreConfig()
	cfg.Type = "etcd"

	_, err := NewStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store type")
}

func TestNewStore_SQLite(t *testing.T) {
	cfg := testStoreConfig()
	cfg.Type = models.StoreTypeSQLite
	cfg.SQLite.Path = t.TempDir() + "/kv.db"

	store, err := NewStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.True(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, ok := store.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)

	keys := store.ListKeys(ctx, "k", 10)
	assert.Equal(t, []string{"k1"}, keys)

	require.True(t, store.Delete(ctx, "k1"))
	_, ok = store.Get(ctx, "k1")
	assert.False(t, ok)
}
