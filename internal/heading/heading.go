// Package heading implements the move pipeline's heading store: the last
// canonical direction a player moved, consulted by the direction
// normalizer to resolve relative tokens (left/right/forward/back) on the
// player's next move.
package heading

import (
	"sync"

	"github.com/piquet-h/worldengine/internal/domain"
)

// Store is the heading store's operation contract. §9 documents the
// single-writer-per-player invariant: a player has at most one outstanding
// move, so Get/Set races within a player are not expected in practice.
type Store interface {
	// Get returns the player's last heading, or nil if never set.
	Get(playerGuid string) *domain.Direction
	// Set records dir as the player's new heading.
	Set(playerGuid string, dir domain.Direction)
}

// MemoryStore is a mutex-guarded in-memory heading store, shared across
// handlers in a single process. Per §9, behavior under multi-process
// deployment is unspecified — a horizontally scaled deployment must make
// this partition-local or delegate to a durable store, which this core
// does not attempt since the heading store's value has a lifetime of a
// single session and is cheap to rebuild from the next move.
type MemoryStore struct {
	mu       sync.RWMutex
	headings map[string]domain.Direction
}

// NewMemoryStore returns an empty heading store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{headings: make(map[string]domain.Direction)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(playerGuid string) *domain.Direction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, ok := s.headings[playerGuid]
	if !ok {
		return nil
	}
	return &dir
}

func (s *MemoryStore) Set(playerGuid string, dir domain.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.headings[playerGuid] = dir
}
