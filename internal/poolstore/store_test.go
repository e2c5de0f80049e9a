//go:build integration
// +build integration

package poolstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/poolstore"
)

// testRedisConfig mirrors the teacher's test/integration convention of
// pointing at a real local Redis, on a dedicated DB index so tests never
// collide with anything a developer runs against DB 0.
func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{
		Enabled:      true,
		Addr:         "localhost:6379",
		DB:           15,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func newTestStore(t *testing.T, prefix string) *poolstore.Store {
	t.Helper()
	store, err := poolstore.New(testRedisConfig(), prefix)
	require.NoError(t, err, "requires a Redis instance reachable at localhost:6379")
	t.Cleanup(func() {
		ctx := context.Background()
		ids, _ := store.Keys(ctx)
		for _, id := range ids {
			_ = store.Delete(ctx, id)
		}
		store.Close()
	})
	return store
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t, fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alpha", []byte("42")))

	got, err := store.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("42"), got)
}

func TestStore_LoadMissingKeyReturnsRedisNil(t *testing.T) {
	store := newTestStore(t, fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano()))

	_, err := store.Load(context.Background(), "never-saved")
	require.Error(t, err)
	assert.True(t, errors.Is(err, redis.Nil))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t, fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "beta", []byte("1")))
	require.NoError(t, store.Delete(ctx, "beta"))

	_, err := store.Load(ctx, "beta")
	assert.True(t, errors.Is(err, redis.Nil))
}

func TestStore_KeysListsOnlyThisPrefix(t *testing.T) {
	prefix := fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano())
	store := newTestStore(t, prefix)
	other := newTestStore(t, prefix+"-other")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "one", []byte("1")))
	require.NoError(t, store.Save(ctx, "two", []byte("2")))
	require.NoError(t, other.Save(ctx, "unrelated", []byte("99")))

	ids, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, ids)
}

// fakeRestorable is the minimal RestoreAll target: it satisfies
// poolstore's unexported restorablePool contract (a single
// Restore([]byte) bool method) without pulling in internal/pool or
// internal/coresched, keeping this test focused on poolstore's own
// Save/Load/Keys/RestoreAll wiring.
type fakeRestorable struct {
	limit    int
	restored []string
	reject   map[string]bool
}

func (f *fakeRestorable) Restore(data []byte) bool {
	id := string(data)
	if f.reject[id] || len(f.restored) >= f.limit {
		return false
	}
	f.restored = append(f.restored, id)
	return true
}

func TestRestoreAll_RestoresEveryPersistedID(t *testing.T) {
	store := newTestStore(t, fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "slot-0", []byte("slot-0")))
	require.NoError(t, store.Save(ctx, "slot-1", []byte("slot-1")))
	require.NoError(t, store.Save(ctx, "slot-2", []byte("slot-2")))

	target := &fakeRestorable{limit: 10}
	restored, err := poolstore.RestoreAll(ctx, store, target)
	require.NoError(t, err)
	assert.Equal(t, 3, restored)
	assert.ElementsMatch(t, []string{"slot-0", "slot-1", "slot-2"}, target.restored)
}

func TestRestoreAll_SkipsRejectedAndContinues(t *testing.T) {
	store := newTestStore(t, fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "keep", []byte("keep")))
	require.NoError(t, store.Save(ctx, "drop", []byte("drop")))

	target := &fakeRestorable{limit: 10, reject: map[string]bool{"drop": true}}
	restored, err := poolstore.RestoreAll(ctx, store, target)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Equal(t, []string{"keep"}, target.restored)
}

func TestRestoreAll_StopsAtCapacityWithoutErroring(t *testing.T) {
	store := newTestStore(t, fmt.Sprintf("coroctl-test-%d", time.Now().UnixNano()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", []byte("a")))
	require.NoError(t, store.Save(ctx, "b", []byte("b")))

	target := &fakeRestorable{limit: 1}
	restored, err := poolstore.RestoreAll(ctx, store, target)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
}
