package eventlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

type partitionKey struct {
	scopeKey string
	id       string
}

// MemoryStore is a mutex-guarded in-memory Store for tests and local dev.
type MemoryStore struct {
	mu             sync.RWMutex
	records        map[partitionKey]WorldEventRecord
	idempotency    map[string]partitionKey
	deadLetters    []DeadLetterRecord
	ids            *idGenerator
}

// NewMemoryStore returns an empty in-memory event log store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[partitionKey]WorldEventRecord),
		idempotency: make(map[string]partitionKey),
		ids:         newIDGenerator(),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(_ context.Context, rec WorldEventRecord) (WorldEventRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.ids.next()
	}
	key := partitionKey{scopeKey: rec.ScopeKey, id: rec.ID}

	if existing, ok := s.records[key]; ok {
		return existing, false, nil
	}

	if rec.IdempotencyKey != "" {
		if owner, ok := s.idempotency[rec.IdempotencyKey]; ok && owner != key {
			// A dead-lettered owner has exhausted the pipeline; §4.9 step 5
			// treats it as "not found" for duplicate-suppression purposes,
			// so a fresh envelope is allowed to claim the same key.
			if ownerRec, present := s.records[owner]; !present || ownerRec.Status != StatusDeadLettered {
				return WorldEventRecord{}, false, &worlderr.ConflictError{
					Resource: "idempotencyKey",
					Message:  "already bound to a different event record",
				}
			}
		}
	}

	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.IngestedUtc.IsZero() {
		rec.IngestedUtc = time.Now().UTC()
	}
	if rec.OccurredUtc.IsZero() {
		rec.OccurredUtc = rec.IngestedUtc
	}
	if rec.Version == 0 {
		rec.Version = 1
	}

	s.records[key] = rec
	if rec.IdempotencyKey != "" {
		s.idempotency[rec.IdempotencyKey] = key
	}
	return rec, true, nil
}

func (s *MemoryStore) Get(_ context.Context, scopeKey, id string) (*WorldEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[partitionKey{scopeKey: scopeKey, id: id}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) GetByIdempotencyKey(_ context.Context, key string) (*WorldEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	rec, ok := s.records[owner]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, scopeKey, id string, newStatus Status, processedUtc *time.Time, meta map[string]string) (WorldEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := partitionKey{scopeKey: scopeKey, id: id}
	rec, ok := s.records[key]
	if !ok {
		return WorldEventRecord{}, &worlderr.NotFoundError{Resource: "WorldEventRecord", ID: id}
	}

	if err := validateTransition(rec.Status, newStatus); err != nil {
		return WorldEventRecord{}, err
	}

	rec.Status = newStatus
	rec.Version++
	if processedUtc != nil {
		rec.ProcessedUtc = processedUtc
	}
	if meta != nil {
		if rec.ProcessingMetadata == nil {
			rec.ProcessingMetadata = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			rec.ProcessingMetadata[k] = v
		}
	}

	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) QueryByScope(_ context.Context, scopeKey string, opts QueryOptions) ([]WorldEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []WorldEventRecord
	for k, r := range s.records {
		if k.scopeKey != scopeKey {
			continue
		}
		if !opts.matches(r) {
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OccurredUtc.Before(out[j].OccurredUtc) })

	limit := opts.limitOrDefault()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetRecent(_ context.Context, limit int) ([]WorldEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultQueryLimit
	}

	all := make([]WorldEventRecord, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OccurredUtc.After(all[j].OccurredUtc) })

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) WriteDeadLetter(_ context.Context, rec DeadLetterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.DeadLetteredUtc.IsZero() {
		rec.DeadLetteredUtc = time.Now().UTC()
	}
	s.deadLetters = append(s.deadLetters, rec)
	return nil
}
