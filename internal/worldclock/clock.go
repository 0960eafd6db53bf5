// Package worldclock implements the world clock (component C4): a
// singleton monotonic tick counter advanced under optimistic concurrency,
// with a bounded advancement history.
package worldclock

import (
	"context"
	"time"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// historyCap bounds advancementHistory length. Capping is safe as long as
// monotonicity of currentTick is preserved; dropping the oldest entries
// never touches currentTick.
const historyCap = 10_000

// Advancement is one entry in the append-only history.
type Advancement struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs"`
	Reason     string    `json:"reason"`
	TickAfter  int64     `json:"tickAfter"`
}

// WorldClock is the singleton record.
type WorldClock struct {
	CurrentTick        int64         `json:"currentTick"`
	LastAdvanced       time.Time     `json:"lastAdvanced"`
	AdvancementHistory []Advancement `json:"advancementHistory"`
	ETag               string        `json:"etag"`

	// InitializedAt/InitialTick survive history capping so GetTickAt can
	// still distinguish "before initialization" from "tick 0" after the
	// oldest history entries have been dropped.
	InitializedAt time.Time `json:"initializedAt"`
	InitialTick   int64     `json:"initialTick"`
}

// Store is the world clock's operation contract.
type Store interface {
	// Get returns the singleton, or nil if Initialize has never been called.
	Get(ctx context.Context) (*WorldClock, error)

	// Initialize creates the singleton at initialTick. Fails with
	// ValidationError if already initialized.
	Initialize(ctx context.Context, initialTick int64) (*WorldClock, error)

	// Advance applies an ETag-guarded tick advancement. currentEtag must
	// match the stored ETag or ConcurrentAdvancementError is returned.
	Advance(ctx context.Context, durationMs int64, reason string, currentEtag string) (*WorldClock, error)

	// GetTickAt replays advancementHistory to reconstruct the tick in
	// effect at timestamp. Returns nil if timestamp precedes initialization.
	GetTickAt(ctx context.Context, timestamp time.Time) (*int64, error)
}

func validateAdvance(durationMs int64) error {
	if durationMs <= 0 {
		return &worlderr.ValidationError{Field: "durationMs", Message: "must be > 0"}
	}
	return nil
}

// replayTickAt is shared logic: given the initialization time (history[0]'s
// implied start), the ordered history, and a target timestamp, find the
// tick in effect at that timestamp. History is assumed ordered by Timestamp
// ascending, which both Store implementations guarantee by construction.
func replayTickAt(initializedAt time.Time, history []Advancement, initialTick int64, timestamp time.Time) *int64 {
	if timestamp.Before(initializedAt) {
		return nil
	}
	tick := initialTick
	for _, adv := range history {
		if adv.Timestamp.After(timestamp) {
			break
		}
		tick = adv.TickAfter
	}
	return &tick
}

func appendCapped(history []Advancement, entry Advancement) []Advancement {
	history = append(history, entry)
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	return history
}
