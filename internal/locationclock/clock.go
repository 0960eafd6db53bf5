// Package locationclock implements location clocks (component C5): a
// per-location tick anchor, lazily initialized from the world clock and
// batch-synced on world advancement.
package locationclock

import (
	"context"
	"sync"
	"time"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// batchConcurrency bounds in-flight writes during BatchUpdateAll (§4.5: "capped
// at a fixed batch size, e.g., 50 concurrent writes").
const batchConcurrency = 50

// LocationClock is the per-location tick anchor.
type LocationClock struct {
	LocationID string    `json:"locationId"`
	ClockAnchor int64    `json:"clockAnchor"`
	LastSynced time.Time `json:"lastSynced"`
	ETag       string    `json:"etag"`
}

// Store is the location clocks' operation contract.
type Store interface {
	// Get returns the anchor for locationID, or nil if never initialized.
	Get(ctx context.Context, locationID string) (*LocationClock, error)

	// InitAnchor creates the anchor at anchorTick if absent. Returns the
	// existing anchor, unchanged, if one is already present.
	InitAnchor(ctx context.Context, locationID string, anchorTick int64) (clock *LocationClock, created bool, err error)

	// Sync upserts locationID to tick, guarded by currentEtag when the
	// anchor already exists. Auto-initializes (ignoring the etag) when
	// missing.
	Sync(ctx context.Context, locationID string, tick int64, currentEtag string) (*LocationClock, error)

	// ListAll returns every anchor that currently exists. BatchUpdateAll
	// uses this to avoid manufacturing anchors for unobserved locations.
	ListAll(ctx context.Context) ([]LocationClock, error)
}

// GetOrInit resolves getLocationAnchor (§4.5): lazily initializes the
// anchor to worldTick on first access. onInitialized, if non-nil, is
// invoked with the new anchor so the caller can emit
// Location.Clock.Initialized without this package depending on a telemetry
// type.
func GetOrInit(ctx context.Context, s Store, locationID string, worldTick int64, onInitialized func(LocationClock)) (*LocationClock, error) {
	clock, created, err := s.InitAnchor(ctx, locationID, worldTick)
	if err != nil {
		return nil, err
	}
	if created && onInitialized != nil {
		onInitialized(*clock)
	}
	return clock, nil
}

// BatchUpdateAllResult reports how many anchors BatchUpdateAll touched.
type BatchUpdateAllResult struct {
	Synced int
	Failed int
}

// BatchUpdateAll syncs every existing anchor to tick, at most
// batchConcurrency writes in flight at once. It never creates new anchors:
// locations that have never been observed initialize lazily on next read.
func BatchUpdateAll(ctx context.Context, s Store, tick int64) (BatchUpdateAllResult, error) {
	anchors, err := s.ListAll(ctx)
	if err != nil {
		return BatchUpdateAllResult{}, err
	}

	var (
		mu      sync.Mutex
		result  BatchUpdateAllResult
		wg      sync.WaitGroup
		limiter = make(chan struct{}, batchConcurrency)
	)

	for _, anchor := range anchors {
		anchor := anchor
		wg.Add(1)
		limiter <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-limiter }()

			_, err := s.Sync(ctx, anchor.LocationID, tick, anchor.ETag)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				return
			}
			result.Synced++
		}()
	}
	wg.Wait()

	return result, nil
}

func validateTick(tick int64) error {
	if tick < 0 {
		return &worlderr.ValidationError{Field: "tick", Message: "must be >= 0"}
	}
	return nil
}
