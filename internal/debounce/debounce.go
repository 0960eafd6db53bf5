// Package debounce implements the exit-hint debouncer (component C10): a
// per-(player, origin, direction) TTL store that suppresses duplicate
// generation-hint emissions within a configurable window.
package debounce

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Record is one debounce entry, partitioned per-player so lookups stay
// single-partition.
type Record struct {
	ID               string
	ScopeKey         string
	DebounceKey      string
	PlayerID         string
	OriginLocationID string
	Direction        string
	LastEmitUtc      time.Time
	TTLSeconds       int64
}

// DefaultWindow is the debounce window used when the caller supplies none.
const DefaultWindow = 60 * time.Second

// autoExpireGrace is added to the debounce window when computing a
// record's TTL, so storage-level expiry always lags the in-window check.
const autoExpireGrace = 60 * time.Second

// ScopeKey and DebounceKey build the partition and entry keys for a given
// player/origin/direction triple (§3 ExitHintDebounceRecord).
func ScopeKey(playerID string) string { return "player:" + playerID }

func DebounceKey(playerID, originLocationID, direction string) string {
	return playerID + ":" + originLocationID + ":" + direction
}

// Store is the debounce store's operation contract. Implementations must
// be safe to call concurrently; races within a partition are resolved
// last-write-wins, which is acceptable per §5 since both writers carry
// approximately the same lastEmitUtc.
type Store interface {
	// Get returns the debounce record for scopeKey+debounceKey, or nil if
	// absent or already expired.
	Get(ctx context.Context, scopeKey, debounceKey string) (*Record, error)

	// Upsert writes rec, replacing any prior record at the same key and
	// resetting its TTL.
	Upsert(ctx context.Context, rec Record) error
}

// ShouldEmit implements §4.10's shouldEmit. now is supplied by the caller
// (rather than read from the wall clock here) so the debounce boundary is
// deterministic to test. On any storage error this fails open — emit=true
// — because availability of the generation hint is preferred over strict
// debounce enforcement.
func ShouldEmit(ctx context.Context, s Store, logger *zap.Logger, playerID, originLocationID, direction string, window time.Duration, now time.Time) (emit bool, debounceHit bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = DefaultWindow
	}

	scopeKey := ScopeKey(playerID)
	debounceKey := DebounceKey(playerID, originLocationID, direction)

	existing, err := s.Get(ctx, scopeKey, debounceKey)
	if err != nil {
		logger.Warn("debounce store read failed, failing open",
			zap.String("playerId", playerID),
			zap.String("debounceKey", debounceKey),
			zap.Error(err),
		)
		return true, false
	}

	if existing != nil && now.Sub(existing.LastEmitUtc) < window {
		return false, true
	}

	ttlSeconds := int64(math.Ceil(window.Seconds())) + int64(autoExpireGrace.Seconds())
	rec := Record{
		ID:               debounceKey,
		ScopeKey:         scopeKey,
		DebounceKey:      debounceKey,
		PlayerID:         playerID,
		OriginLocationID: originLocationID,
		Direction:        direction,
		LastEmitUtc:      now,
		TTLSeconds:       ttlSeconds,
	}

	if err := s.Upsert(ctx, rec); err != nil {
		logger.Warn("debounce store write failed, failing open",
			zap.String("playerId", playerID),
			zap.String("debounceKey", debounceKey),
			zap.Error(err),
		)
		return true, false
	}

	return true, false
}
