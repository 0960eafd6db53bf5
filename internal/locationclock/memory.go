package locationclock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local dev.
type MemoryStore struct {
	mu      sync.Mutex
	anchors map[string]LocationClock
}

// NewMemoryStore returns an empty in-memory location-clock store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{anchors: make(map[string]LocationClock)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, locationID string) (*LocationClock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.anchors[locationID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) InitAnchor(_ context.Context, locationID string, anchorTick int64) (*LocationClock, bool, error) {
	if err := validateTick(anchorTick); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.anchors[locationID]; ok {
		return &existing, false, nil
	}

	c := LocationClock{LocationID: locationID, ClockAnchor: anchorTick, LastSynced: time.Now().UTC(), ETag: uuid.NewString()}
	s.anchors[locationID] = c
	return &c, true, nil
}

func (s *MemoryStore) Sync(_ context.Context, locationID string, tick int64, currentEtag string) (*LocationClock, error) {
	if err := validateTick(tick); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.anchors[locationID]
	if !ok {
		c := LocationClock{LocationID: locationID, ClockAnchor: tick, LastSynced: time.Now().UTC(), ETag: uuid.NewString()}
		s.anchors[locationID] = c
		return &c, nil
	}

	if existing.ETag != currentEtag {
		return nil, &worlderr.ConcurrentAdvancementError{Resource: "locationClock:" + locationID, SuppliedTag: currentEtag, CurrentTag: existing.ETag}
	}

	existing.ClockAnchor = tick
	existing.LastSynced = time.Now().UTC()
	existing.ETag = uuid.NewString()
	s.anchors[locationID] = existing
	return &existing, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]LocationClock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LocationClock, 0, len(s.anchors))
	for _, c := range s.anchors {
		out = append(out, c)
	}
	return out, nil
}
