package player

import (
	"context"
	"sync"
	"time"

	"github.com/piquet-h/worldengine/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local
// development, following the same shape as graph.MemoryStore.
type MemoryStore struct {
	mu         sync.Mutex
	players    map[string]domain.Player
	externalID map[string]string // normalized externalId -> player id
}

// NewMemoryStore returns an empty in-memory player repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:    make(map[string]domain.Player),
		externalID: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) Bootstrap(_ context.Context, guid string, now time.Time) (BootstrapResult, error) {
	if err := validateGuid(guid); err != nil {
		return BootstrapResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.players[guid]; ok {
		return BootstrapResult{Player: existing, Created: false}, nil
	}

	p := newGuestPlayer(guid, now)
	s.players[guid] = p
	return BootstrapResult{Player: p, Created: true}, nil
}

func (s *MemoryStore) UpdateLocation(_ context.Context, id string, locationID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return notFoundErr(id)
	}
	p.CurrentLocationID = locationID
	p.UpdatedUtc = now
	s.players[id] = p
	return nil
}

func (s *MemoryStore) LinkExternalID(_ context.Context, id string, externalID string, now time.Time) (LinkResult, error) {
	normalized := normalizeExternalID(externalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return LinkResult{}, notFoundErr(id)
	}

	if owner, present := s.externalID[normalized]; present && owner != id {
		return LinkResult{Conflict: true, ExistingPlayerID: owner}, nil
	}

	if p.ExternalID == normalized {
		return LinkResult{Player: p, Conflict: false}, nil
	}

	p.ExternalID = normalized
	p.Guest = false
	p.UpdatedUtc = now
	s.players[id] = p
	s.externalID[normalized] = id

	return LinkResult{Player: p, Conflict: false}, nil
}
