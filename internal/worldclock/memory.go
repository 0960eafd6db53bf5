package worldclock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local dev.
type MemoryStore struct {
	mu    sync.Mutex
	clock *WorldClock
}

// NewMemoryStore returns an uninitialized in-memory world clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context) (*WorldClock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clock == nil {
		return nil, nil
	}
	clone := *s.clock
	clone.AdvancementHistory = append([]Advancement{}, s.clock.AdvancementHistory...)
	return &clone, nil
}

func (s *MemoryStore) Initialize(_ context.Context, initialTick int64) (*WorldClock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock != nil {
		return nil, &worlderr.ValidationError{Field: "worldClock", Message: "already initialized"}
	}

	now := time.Now().UTC()
	s.clock = &WorldClock{
		CurrentTick:   initialTick,
		LastAdvanced:  now,
		InitializedAt: now,
		InitialTick:   initialTick,
		ETag:          uuid.NewString(),
	}
	clone := *s.clock
	return &clone, nil
}

func (s *MemoryStore) Advance(_ context.Context, durationMs int64, reason string, currentEtag string) (*WorldClock, error) {
	if err := validateAdvance(durationMs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock == nil {
		return nil, &worlderr.ValidationError{Field: "worldClock", Message: "not initialized"}
	}
	if s.clock.ETag != currentEtag {
		return nil, &worlderr.ConcurrentAdvancementError{Resource: "worldClock", SuppliedTag: currentEtag, CurrentTag: s.clock.ETag}
	}

	now := time.Now().UTC()
	s.clock.CurrentTick += durationMs
	s.clock.LastAdvanced = now
	s.clock.AdvancementHistory = appendCapped(s.clock.AdvancementHistory, Advancement{
		Timestamp:  now,
		DurationMs: durationMs,
		Reason:     reason,
		TickAfter:  s.clock.CurrentTick,
	})
	s.clock.ETag = uuid.NewString()

	clone := *s.clock
	clone.AdvancementHistory = append([]Advancement{}, s.clock.AdvancementHistory...)
	return &clone, nil
}

func (s *MemoryStore) GetTickAt(_ context.Context, timestamp time.Time) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock == nil {
		return nil, nil
	}
	return replayTickAt(s.clock.InitializedAt, s.clock.AdvancementHistory, s.clock.InitialTick, timestamp), nil
}
