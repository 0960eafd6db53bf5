package descriptionlayer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local dev.
type MemoryStore struct {
	mu     sync.RWMutex
	layers map[string]DescriptionLayer // keyed by layer ID
}

// NewMemoryStore returns an empty in-memory description layer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{layers: make(map[string]DescriptionLayer)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) AppendLayer(_ context.Context, scopeID string, layerType LayerType, value string, effectiveFromTick int64, effectiveToTick *int64, metadata map[string]string) (DescriptionLayer, error) {
	if scopeID == "" {
		return DescriptionLayer{}, &worlderr.ValidationError{Field: "scopeId", Message: "cannot be empty"}
	}

	l := DescriptionLayer{
		ID:                newLayerID(),
		ScopeID:           scopeID,
		LayerType:         layerType,
		Value:             value,
		EffectiveFromTick: effectiveFromTick,
		EffectiveToTick:   effectiveToTick,
		AuthoredAt:        time.Now().UTC(),
		Metadata:          metadata,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[l.ID] = l
	return l, nil
}

func (s *MemoryStore) ListByScope(_ context.Context, scopeID string) ([]DescriptionLayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []DescriptionLayer
	for _, l := range s.layers {
		if l.ScopeID == scopeID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuthoredAt.After(out[j].AuthoredAt) })
	return out, nil
}

func (s *MemoryStore) DeleteLayer(_ context.Context, layerID string, scopeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.layers[layerID]
	if !ok || l.ScopeID != scopeID {
		return &worlderr.ValidationError{Field: "layerId", Message: "not found in scope " + scopeID}
	}
	delete(s.layers, layerID)
	return nil
}

func (s *MemoryStore) ForEachBatch(_ context.Context, batchSize int, fn func(batch []DescriptionLayer) error) error {
	s.mu.Lock()
	all := make([]DescriptionLayer, 0, len(s.layers))
	for _, l := range s.layers {
		all = append(all, l)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// SetIntegrityHash updates a layer's stored hash in place. Layers are
// otherwise append-only; the integrity hash is the sole mutable field,
// written only by the integrity job.
func (s *MemoryStore) SetIntegrityHash(_ context.Context, layerID string, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.layers[layerID]
	if !ok {
		return &worlderr.ValidationError{Field: "layerId", Message: "not found"}
	}
	l.IntegrityHash = hash
	s.layers[layerID] = l
	return nil
}
