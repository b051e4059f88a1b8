package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgegate/internal/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend := kv.NewMemoryStore(time.Hour)
	t.Cleanup(func() { backend.Close() })
	return NewStore(backend, time.Hour)
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.Create(ctx, "s1", "user1", map[string]string{"device": "cli"})
	require.NoError(t, err)
	assert.Equal(t, "s1", record.ID)
	assert.Equal(t, "user1", record.UserID)
	assert.False(t, record.CreatedAt.IsZero())

	got := store.Get(ctx, "s1")
	require.NotNil(t, got)
	assert.Equal(t, "user1", got.UserID)
	assert.Equal(t, "cli", got.Metadata["device"])
}

func TestStore_CreateRequiresIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "", "user1", nil)
	assert.Error(t, err)

	_, err = store.Create(ctx, "s1", "", nil)
	assert.Error(t, err)
}

func TestStore_IdempotentCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "user1", map[string]string{"v": "first"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "s1", "user1", map[string]string{"v": "second"})
	require.NoError(t, err)

	// A single retrievable record reflecting the latest call.
	got := store.Get(ctx, "s1")
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Metadata["v"])

	ids := store.ListByUser(ctx, "user1")
	assert.Equal(t, []string{"s1"}, ids)
}

func TestStore_GetAbsent(t *testing.T) {
	store := newTestStore(t)
	assert.Nil(t, store.Get(context.Background(), "nope"))
}

func TestStore_ExtendPreservesRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "s1", "user1", map[string]string{"device": "cli"})
	require.NoError(t, err)

	extended := store.Extend(ctx, "s1")
	require.NotNil(t, extended)
	assert.Equal(t, created.CreatedAt, extended.CreatedAt, "extend must not change created_at")
	assert.Equal(t, created.Metadata, extended.Metadata, "extend must not change metadata")
}

// ttlRecordingStore captures the TTL of every write so tests can observe
// expiry refreshes that the Store interface does not expose.
type ttlRecordingStore struct {
	kv.Store
	setTTLs map[string]time.Duration
}

func (r *ttlRecordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	r.setTTLs[key] = ttl
	return r.Store.Set(ctx, key, value, ttl)
}

func TestStore_ExtendRefreshesIndexEntry(t *testing.T) {
	backend := kv.NewMemoryStore(time.Hour)
	defer backend.Close()
	recorder := &ttlRecordingStore{Store: backend, setTTLs: make(map[string]time.Duration)}
	store := NewStore(recorder, time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "user1", nil)
	require.NoError(t, err)

	// A session extended near its expiry must stay listable for its whole
	// extended lifetime, so extend re-registers the index entry too.
	recorder.setTTLs = make(map[string]time.Duration)
	require.NotNil(t, store.Extend(ctx, "s1"))

	assert.Equal(t, time.Hour, recorder.setTTLs[Prefix+"s1"])
	assert.Equal(t, time.Hour+indexSlack, recorder.setTTLs[IndexPrefix+"user1"],
		"extend must rewrite the index entry with a fresh TTL")

	assert.Equal(t, []string{"s1"}, store.ListByUser(ctx, "user1"))
}

func TestStore_ExtendDoesNotResurrect(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Nil(t, store.Extend(ctx, "never-existed"))
	assert.Nil(t, store.Get(ctx, "never-existed"), "extend of an absent session must not create one")
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "user1", nil)
	require.NoError(t, err)

	store.Delete(ctx, "s1")
	assert.Nil(t, store.Get(ctx, "s1"))
	assert.Empty(t, store.ListByUser(ctx, "user1"))
}

func TestStore_ListByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "user1", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "s2", "user1", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "s3", "user2", nil)
	require.NoError(t, err)

	ids := store.ListByUser(ctx, "user1")
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	assert.Empty(t, store.ListByUser(ctx, "nobody"))
}

func TestStore_ListByUserPrunesDeadSessions(t *testing.T) {
	backend := kv.NewMemoryStore(time.Hour)
	defer backend.Close()
	store := NewStore(backend, time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "user1", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "s2", "user1", nil)
	require.NoError(t, err)

	// Simulate s1 expiring underneath the index.
	backend.Delete(ctx, Prefix+"s1")

	ids := store.ListByUser(ctx, "user1")
	assert.Equal(t, []string{"s2"}, ids)

	// The dead id was pruned from the index, not just filtered.
	ids = store.ListByUser(ctx, "user1")
	assert.Equal(t, []string{"s2"}, ids)
}

func TestStore_ScanSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "user1", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "s2", "user2", nil)
	require.NoError(t, err)

	ids := store.ScanSessions(ctx, 100)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	assert.Len(t, store.ScanSessions(ctx, 1), 1)
}
