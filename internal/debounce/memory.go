package debounce

import (
	"context"
	"sync"
	"time"
)

type key struct {
	scopeKey    string
	debounceKey string
}

// MemoryStore is a mutex-guarded in-memory Store for single-process tests
// and dev. It is NOT safe across processes — per §4.10/§9, multi-process
// deployments should use BadgerStore or an equivalent durable partition.
type MemoryStore struct {
	mu      sync.Mutex
	records map[key]Record
	expires map[key]time.Time // wall-clock write time + TTLSeconds
}

// NewMemoryStore returns an empty in-memory debounce store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[key]Record), expires: make(map[key]time.Time)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, scopeKey, debounceKey string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{scopeKey: scopeKey, debounceKey: debounceKey}
	rec, ok := s.records[k]
	if !ok {
		return nil, nil
	}

	if time.Now().UTC().After(s.expires[k]) {
		delete(s.records, k)
		delete(s.expires, k)
		return nil, nil
	}

	return &rec, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{scopeKey: rec.ScopeKey, debounceKey: rec.DebounceKey}
	s.records[k] = rec
	s.expires[k] = time.Now().UTC().Add(time.Duration(rec.TTLSeconds) * time.Second)
	return nil
}
