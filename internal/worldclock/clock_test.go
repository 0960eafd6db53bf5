package worldclock

import (
	"context"
	"testing"
	"time"

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

func TestStore_GetUninitializedReturnsNil(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		got, err := s.Get(context.Background())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_InitializeRejectsSecondCall(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Initialize(ctx, 0)
		require.NoError(t, err)

		_, err = s.Initialize(ctx, 0)
		var validationErr *worlderr.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestStore_AdvanceRejectsNonPositiveDuration(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		clock, err := s.Initialize(ctx, 0)
		require.NoError(t, err)

		_, err = s.Advance(ctx, 0, "scheduled", clock.ETag)
		var validationErr *worlderr.ValidationError
		assert.ErrorAs(t, err, &validationErr)

		_, err = s.Advance(ctx, -1, "scheduled", clock.ETag)
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestStore_AdvanceIsMonotonicAndAppendsHistory(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		clock, err := s.Initialize(ctx, 0)
		require.NoError(t, err)

		updated, err := s.Advance(ctx, 60_000, "scheduled", clock.ETag)
		require.NoError(t, err)
		assert.Equal(t, int64(60_000), updated.CurrentTick)
		require.Len(t, updated.AdvancementHistory, 1)
		assert.Equal(t, int64(60_000), updated.AdvancementHistory[0].TickAfter)

		updated2, err := s.Advance(ctx, 30_000, "scheduled", updated.ETag)
		require.NoError(t, err)
		assert.Equal(t, int64(90_000), updated2.CurrentTick)
		assert.Greater(t, updated2.CurrentTick, updated.CurrentTick)
		require.Len(t, updated2.AdvancementHistory, 2)
	})
}

func TestStore_AdvanceFailsOnEtagMismatch(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		clock, err := s.Initialize(ctx, 0)
		require.NoError(t, err)

		_, err = s.Advance(ctx, 1000, "scheduled", "stale-etag")
		var concurrent *worlderr.ConcurrentAdvancementError
		require.ErrorAs(t, err, &concurrent)
		assert.Equal(t, clock.ETag, concurrent.CurrentTag)

		// A retry with the correct etag succeeds.
		_, err = s.Advance(ctx, 1000, "scheduled", clock.ETag)
		require.NoError(t, err)
	})
}

func TestStore_GetTickAtReplaysHistory(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		before, err := s.GetTickAt(ctx, time.Now())
		require.NoError(t, err)
		assert.Nil(t, before)

		clock, err := s.Initialize(ctx, 0)
		require.NoError(t, err)

		atInit, err := s.GetTickAt(ctx, clock.InitializedAt)
		require.NoError(t, err)
		require.NotNil(t, atInit)
		assert.Equal(t, int64(0), *atInit)

		updated, err := s.Advance(ctx, 60_000, "scheduled", clock.ETag)
		require.NoError(t, err)

		atAfter, err := s.GetTickAt(ctx, updated.LastAdvanced)
		require.NoError(t, err)
		require.NotNil(t, atAfter)
		assert.Equal(t, int64(60_000), *atAfter)

		beforeInit, err := s.GetTickAt(ctx, clock.InitializedAt.Add(-time.Hour))
		require.NoError(t, err)
		assert.Nil(t, beforeInit)
	})
}
