package graph

import (
	"context"
	"sync"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// MemoryStore is a mutex-guarded in-memory Store, intended for tests and
// local development. It never persists across process restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	locations map[string]domain.Location
}

// NewMemoryStore returns an empty in-memory location graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locations: make(map[string]domain.Location)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return nil, nil
	}
	loc.Exits = sortExits(loc.Exits)
	return &loc, nil
}

func (s *MemoryStore) Upsert(_ context.Context, loc domain.Location) (UpsertResult, error) {
	if err := validateUpsert(loc); err != nil {
		return UpsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.locations[loc.ID]
	if !found {
		loc.Version = 1
		loc.Exits = sortExits(loc.Exits)
		loc.ExitsSummaryCache = summarize(loc.Exits)
		s.locations[loc.ID] = loc
		return UpsertResult{Created: true, ID: loc.ID}, nil
	}

	contentChanged := existing.Name != loc.Name || existing.Description != loc.Description
	updated := existing
	updated.Name = loc.Name
	updated.Description = loc.Description
	updated.Exits = sortExits(loc.Exits)
	updated.ExitAvailability = loc.ExitAvailability
	updated.ExitsSummaryCache = summarize(updated.Exits)
	if contentChanged {
		updated.Version = existing.Version + 1
	}
	s.locations[loc.ID] = updated

	result := UpsertResult{Created: false, ID: loc.ID}
	if contentChanged {
		rev := updated.Version
		result.UpdatedRevision = &rev
	}
	return result, nil
}

func (s *MemoryStore) Move(_ context.Context, fromID string, dir domain.Direction) (MoveResult, error) {
	s.mu.RLock()
	from, ok := s.locations[fromID]
	s.mu.RUnlock()
	if !ok {
		return MoveResult{}, &worlderr.FromMissingError{LocationID: fromID}
	}

	idx := findExit(from.Exits, dir)
	if idx < 0 {
		return MoveResult{}, &worlderr.NoExitError{LocationID: fromID, Direction: string(dir)}
	}
	targetID := from.Exits[idx].ToLocationID

	s.mu.RLock()
	target, ok := s.locations[targetID]
	s.mu.RUnlock()
	if !ok {
		return MoveResult{}, &worlderr.TargetMissingError{LocationID: targetID}
	}
	target.Exits = sortExits(target.Exits)
	return MoveResult{Location: target}, nil
}

func (s *MemoryStore) EnsureExit(_ context.Context, from string, dir domain.Direction, to string, desc string) (EnsureExitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[from]
	if !ok {
		return EnsureExitResult{}, &worlderr.FromMissingError{LocationID: from}
	}

	updatedExits, created := ensureExitInPlace(append([]domain.Exit{}, loc.Exits...), dir, to, desc)
	loc.Exits = sortExits(updatedExits)
	loc.ExitsSummaryCache = summarize(loc.Exits)
	s.locations[from] = loc
	return EnsureExitResult{Created: created}, nil
}

func (s *MemoryStore) EnsureExitBidirectional(ctx context.Context, from string, dir domain.Direction, to string, reciprocal bool, forwardDesc, reciprocalDesc string) (ApplyExitsResult, error) {
	fwd, err := s.EnsureExit(ctx, from, dir, to, forwardDesc)
	if err != nil {
		return ApplyExitsResult{}, err
	}
	result := ApplyExitsResult{}
	if fwd.Created {
		result.ExitsCreated++
	} else {
		result.ExitsSkipped++
	}

	if !reciprocal {
		return result, nil
	}

	opp, ok := domain.Opposite[dir]
	if !ok {
		return result, &worlderr.ValidationError{Field: "direction", Message: "no reciprocal direction defined"}
	}
	back, err := s.EnsureExit(ctx, to, opp, from, reciprocalDesc)
	if err != nil {
		return result, err
	}
	if back.Created {
		result.ExitsCreated++
		result.ReciprocalApplied++
	} else {
		result.ExitsSkipped++
	}
	return result, nil
}

func (s *MemoryStore) RemoveExit(_ context.Context, from string, dir domain.Direction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[from]
	if !ok {
		return false, &worlderr.FromMissingError{LocationID: from}
	}

	remaining, removed := removeExitInPlace(loc.Exits, dir)
	if removed == 0 {
		return false, nil
	}
	loc.Exits = remaining
	loc.ExitsSummaryCache = summarize(loc.Exits)
	s.locations[from] = loc
	return true, nil
}

func (s *MemoryStore) ApplyExits(ctx context.Context, batch []ExitBatchItem) (ApplyExitsResult, error) {
	total := ApplyExitsResult{}
	for _, item := range batch {
		r, err := s.EnsureExitBidirectional(ctx, item.From, item.Direction, item.To, item.Reciprocal, item.Description, item.ReciprocalDesc)
		if err != nil {
			return total, err
		}
		total.ExitsCreated += r.ExitsCreated
		total.ExitsSkipped += r.ExitsSkipped
		total.ReciprocalApplied += r.ReciprocalApplied
	}
	return total, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Location, 0, len(s.locations))
	for _, loc := range s.locations {
		loc.Exits = sortExits(loc.Exits)
		out = append(out, loc)
	}
	return out, nil
}

func (s *MemoryStore) DeleteLocation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[id]; !ok {
		return &worlderr.LocationNotFoundError{LocationID: id}
	}
	delete(s.locations, id)
	return nil
}
