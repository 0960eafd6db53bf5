package graph

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// newBadgerTestStore opens a BadgerDB instance rooted in a temp dir, closed
// automatically at test cleanup.
func newBadgerTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

// withBothStores runs fn against both Store implementations so the §4.3
// invariants stay identical across in-memory and durable backends.
func withBothStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("badger", func(t *testing.T) { fn(t, newBadgerTestStore(t)) })
}

func TestStore_UpsertCreatesThenVersionBumpsOnlyOnContentChange(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		loc := domain.Location{ID: "l1", Name: "Plaza", Description: "A stone plaza."}
		res, err := s.Upsert(ctx, loc)
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Nil(t, res.UpdatedRevision)

		got, err := s.Get(ctx, "l1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, "No exits available.", got.ExitsSummaryCache)

		// No-op update: same name/description, should not bump version.
		res, err = s.Upsert(ctx, domain.Location{ID: "l1", Name: "Plaza", Description: "A stone plaza."})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Nil(t, res.UpdatedRevision)

		got, err = s.Get(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)

		// Description change bumps version.
		res, err = s.Upsert(ctx, domain.Location{ID: "l1", Name: "Plaza", Description: "A sunlit stone plaza."})
		require.NoError(t, err)
		require.NotNil(t, res.UpdatedRevision)
		assert.Equal(t, int64(2), *res.UpdatedRevision)
	})
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		got, err := s.Get(context.Background(), "absent")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_EnsureExitIdempotentAndBackfillsDescription(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, domain.Location{ID: "b", Name: "B"})
		require.NoError(t, err)

		res, err := s.EnsureExit(ctx, "a", domain.North, "b", "")
		require.NoError(t, err)
		assert.True(t, res.Created)

		res, err = s.EnsureExit(ctx, "a", domain.North, "b", "a stout oak door")
		require.NoError(t, err)
		assert.False(t, res.Created)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.Len(t, got.Exits, 1)
		assert.Equal(t, "a stout oak door", got.Exits[0].Description)
		assert.Equal(t, "Exits: north", got.ExitsSummaryCache)

		// A second backfill attempt is a no-op; the description is never
		// overwritten once present.
		res, err = s.EnsureExit(ctx, "a", domain.North, "b", "a different door")
		require.NoError(t, err)
		assert.False(t, res.Created)
		got, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "a stout oak door", got.Exits[0].Description)
	})
}

func TestStore_EnsureExitBidirectionalUsesOppositeTable(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, domain.Location{ID: "b", Name: "B"})
		require.NoError(t, err)

		result, err := s.EnsureExitBidirectional(ctx, "a", domain.Up, "b", true, "a rope ladder", "a trapdoor")
		require.NoError(t, err)
		assert.Equal(t, 2, result.ExitsCreated)
		assert.Equal(t, 1, result.ReciprocalApplied)

		a, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.Len(t, a.Exits, 1)
		assert.Equal(t, domain.Up, a.Exits[0].Direction)

		b, err := s.Get(ctx, "b")
		require.NoError(t, err)
		require.Len(t, b.Exits, 1)
		assert.Equal(t, domain.Down, b.Exits[0].Direction)
		assert.Equal(t, "a", b.Exits[0].ToLocationID)
	})
}

func TestStore_MoveErrors(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Move(ctx, "ghost", domain.North)
		var fromMissing *worlderr.FromMissingError
		assert.ErrorAs(t, err, &fromMissing)

		_, err = s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = s.Move(ctx, "a", domain.North)
		var noExit *worlderr.NoExitError
		assert.ErrorAs(t, err, &noExit)

		_, err = s.EnsureExit(ctx, "a", domain.North, "missing-target", "")
		require.NoError(t, err)
		_, err = s.Move(ctx, "a", domain.North)
		var targetMissing *worlderr.TargetMissingError
		assert.ErrorAs(t, err, &targetMissing)
	})
}

func TestStore_MoveSucceeds(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, domain.Location{ID: "b", Name: "B"})
		require.NoError(t, err)
		_, err = s.EnsureExit(ctx, "a", domain.North, "b", "")
		require.NoError(t, err)

		result, err := s.Move(ctx, "a", domain.North)
		require.NoError(t, err)
		assert.Equal(t, "b", result.Location.ID)
	})
}

func TestStore_RemoveExitRegeneratesSummary(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, domain.Location{ID: "b", Name: "B"})
		require.NoError(t, err)
		_, err = s.EnsureExit(ctx, "a", domain.North, "b", "")
		require.NoError(t, err)

		removed, err := s.RemoveExit(ctx, "a", domain.North)
		require.NoError(t, err)
		assert.True(t, removed)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, got.Exits)
		assert.Equal(t, "No exits available.", got.ExitsSummaryCache)

		removed, err = s.RemoveExit(ctx, "a", domain.North)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestStore_ApplyExitsAggregatesCounts(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			_, err := s.Upsert(ctx, domain.Location{ID: id, Name: id})
			require.NoError(t, err)
		}

		batch := []ExitBatchItem{
			{From: "a", Direction: domain.North, To: "b", Reciprocal: true},
			{From: "a", Direction: domain.East, To: "c", Reciprocal: false},
		}
		result, err := s.ApplyExits(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 3, result.ExitsCreated)
		assert.Equal(t, 1, result.ReciprocalApplied)
	})
}

func TestStore_ListAllAndDeleteLocation(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, domain.Location{ID: "b", Name: "B"})
		require.NoError(t, err)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		err = s.DeleteLocation(ctx, "a")
		require.NoError(t, err)

		all, err = s.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		err = s.DeleteLocation(ctx, "a")
		var notFound *worlderr.LocationNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestStore_ExitsReturnedInCanonicalOrder(t *testing.T) {
	withBothStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Upsert(ctx, domain.Location{ID: "a", Name: "A"})
		require.NoError(t, err)
		for _, id := range []string{"b", "c", "d"} {
			_, err := s.Upsert(ctx, domain.Location{ID: id, Name: id})
			require.NoError(t, err)
		}

		_, err = s.EnsureExit(ctx, "a", domain.Southwest, "b", "")
		require.NoError(t, err)
		_, err = s.EnsureExit(ctx, "a", domain.North, "c", "")
		require.NoError(t, err)
		_, err = s.EnsureExit(ctx, "a", domain.Up, "d", "")
		require.NoError(t, err)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.Len(t, got.Exits, 3)
		assert.Equal(t, []domain.Direction{domain.North, domain.Southwest, domain.Up}, []domain.Direction{
			got.Exits[0].Direction, got.Exits[1].Direction, got.Exits[2].Direction,
		})
	})
}
