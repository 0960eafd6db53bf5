package locationclock

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

func newBadgerTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

func withBothStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("badger", func(t *testing.T) { fn(t, newBadgerTestStore(t)) })
}

func TestGetOrInit_LazyInitFiresCallbackOnce(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var fired int

		c, err := GetOrInit(ctx, s, "loc-a", 100, func(LocationClock) { fired++ })
		require.NoError(t, err)
		assert.Equal(t, int64(100), c.ClockAnchor)
		assert.Equal(t, 1, fired)

		c2, err := GetOrInit(ctx, s, "loc-a", 999, func(LocationClock) { fired++ })
		require.NoError(t, err)
		assert.Equal(t, int64(100), c2.ClockAnchor, "existing anchor is not reinitialized to a new tick")
		assert.Equal(t, 1, fired, "callback does not fire on subsequent reads")
	})
}

func TestStore_SyncAutoInitializesWhenMissing(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c, err := s.Sync(ctx, "loc-b", 50, "irrelevant-etag")
		require.NoError(t, err)
		assert.Equal(t, int64(50), c.ClockAnchor)
	})
}

func TestStore_SyncRejectsStaleEtag(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c, _, err := s.InitAnchor(ctx, "loc-c", 10)
		require.NoError(t, err)

		_, err = s.Sync(ctx, "loc-c", 20, "stale")
		var concurrent *worlderr.ConcurrentAdvancementError
		require.ErrorAs(t, err, &concurrent)

		updated, err := s.Sync(ctx, "loc-c", 20, c.ETag)
		require.NoError(t, err)
		assert.Equal(t, int64(20), updated.ClockAnchor)
	})
}

func TestBatchUpdateAll_OnlyUpdatesExistingAnchors(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, _, err := s.InitAnchor(ctx, "loc-1", 0)
		require.NoError(t, err)
		_, _, err = s.InitAnchor(ctx, "loc-2", 0)
		require.NoError(t, err)

		result, err := BatchUpdateAll(ctx, s, 500)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Synced)
		assert.Equal(t, 0, result.Failed)

		c1, err := s.Get(ctx, "loc-1")
		require.NoError(t, err)
		assert.Equal(t, int64(500), c1.ClockAnchor)

		// A location never observed before never gets an anchor manufactured.
		neverSeen, err := s.Get(ctx, "loc-never-seen")
		require.NoError(t, err)
		assert.Nil(t, neverSeen)
	})
}

func TestInitAnchor_RejectsNegativeTick(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		_, _, err := s.InitAnchor(context.Background(), "loc-x", -1)
		var validationErr *worlderr.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
