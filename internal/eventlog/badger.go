package eventlog

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// Key scheme: canonical records live under prefixEvent+<scopeKey>+":"+<id>,
// which doubles as the single-partition scan prefix for QueryByScope. A
// secondary index under prefixIdempotency+<key> stores the owning
// scopeKey+id pair so GetByIdempotencyKey avoids a full-store scan.
const (
	prefixEvent       = "event:"
	prefixIdempotency = "eventidemp:"
	prefixDeadLetter  = "deadletter:"
)

type idempotencyIndexEntry struct {
	ScopeKey string `json:"scopeKey"`
	ID       string `json:"id"`
}

// BadgerStore implements Store atop a shared BadgerDB handle.
type BadgerStore struct {
	db  *badger.DB
	ids *idGenerator
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, ids: newIDGenerator()}
}

var _ Store = (*BadgerStore)(nil)

func eventKey(scopeKey, id string) []byte {
	return []byte(prefixEvent + scopeKey + ":" + id)
}

func idempotencyKey(key string) []byte { return []byte(prefixIdempotency + key) }

func deadLetterKey(id string) []byte { return []byte(prefixDeadLetter + id) }

func (s *BadgerStore) getTxn(txn *badger.Txn, scopeKey, id string) (*WorldEventRecord, error) {
	item, err := txn.Get(eventKey(scopeKey, id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &worlderr.InternalError{Operation: "eventlog.get", Cause: err}
	}
	var rec WorldEventRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, &worlderr.InternalError{Operation: "eventlog.get.unmarshal", Cause: err}
	}
	return &rec, nil
}

func (s *BadgerStore) Create(_ context.Context, rec WorldEventRecord) (WorldEventRecord, bool, error) {
	if rec.ID == "" {
		rec.ID = s.ids.next()
	}

	var out WorldEventRecord
	var created bool

	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTxn(txn, rec.ScopeKey, rec.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = *existing
			created = false
			return nil
		}

		if rec.IdempotencyKey != "" {
			item, err := txn.Get(idempotencyKey(rec.IdempotencyKey))
			if err != nil && err != badger.ErrKeyNotFound {
				return &worlderr.InternalError{Operation: "eventlog.create.idempotencyLookup", Cause: err}
			}
			if err == nil {
				var owner idempotencyIndexEntry
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &owner) }); err != nil {
					return &worlderr.InternalError{Operation: "eventlog.create.idempotencyUnmarshal", Cause: err}
				}
				if owner.ScopeKey != rec.ScopeKey || owner.ID != rec.ID {
					// A dead-lettered owner has exhausted the pipeline; §4.9
					// step 5 treats it as "not found" for duplicate-suppression
					// purposes, so a fresh envelope may claim the same key.
					ownerRec, err := s.getTxn(txn, owner.ScopeKey, owner.ID)
					if err != nil {
						return err
					}
					if ownerRec == nil || ownerRec.Status != StatusDeadLettered {
						return &worlderr.ConflictError{
							Resource: "idempotencyKey",
							Message:  "already bound to a different event record",
						}
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

		data, err := json.Marshal(rec)
		if err != nil {
			return &worlderr.InternalError{Operation: "eventlog.create.marshal", Cause: err}
		}
		if err := txn.Set(eventKey(rec.ScopeKey, rec.ID), data); err != nil {
			return &worlderr.InternalError{Operation: "eventlog.create.set", Cause: err}
		}

		if rec.IdempotencyKey != "" {
			idxData, err := json.Marshal(idempotencyIndexEntry{ScopeKey: rec.ScopeKey, ID: rec.ID})
			if err != nil {
				return &worlderr.InternalError{Operation: "eventlog.create.idempotencyMarshal", Cause: err}
			}
			if err := txn.Set(idempotencyKey(rec.IdempotencyKey), idxData); err != nil {
				return &worlderr.InternalError{Operation: "eventlog.create.idempotencySet", Cause: err}
			}
		}

		out = rec
		created = true
		return nil
	})
	if err != nil {
		return WorldEventRecord{}, false, err
	}
	return out, created, nil
}

func (s *BadgerStore) Get(_ context.Context, scopeKey, id string) (*WorldEventRecord, error) {
	var rec *WorldEventRecord
	err := s.db.View(func(txn *badger.Txn) error {
		r, err := s.getTxn(txn, scopeKey, id)
		rec = r
		return err
	})
	return rec, err
}

func (s *BadgerStore) GetByIdempotencyKey(_ context.Context, key string) (*WorldEventRecord, error) {
	var rec *WorldEventRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idempotencyKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return &worlderr.InternalError{Operation: "eventlog.getByIdempotencyKey", Cause: err}
		}
		var owner idempotencyIndexEntry
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &owner) }); err != nil {
			return &worlderr.InternalError{Operation: "eventlog.getByIdempotencyKey.unmarshal", Cause: err}
		}
		r, err := s.getTxn(txn, owner.ScopeKey, owner.ID)
		rec = r
		return err
	})
	return rec, err
}

func (s *BadgerStore) UpdateStatus(_ context.Context, scopeKey, id string, newStatus Status, processedUtc *time.Time, meta map[string]string) (WorldEventRecord, error) {
	var out WorldEventRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTxn(txn, scopeKey, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return &worlderr.NotFoundError{Resource: "WorldEventRecord", ID: id}
		}

		if err := validateTransition(existing.Status, newStatus); err != nil {
			return err
		}

		existing.Status = newStatus
		existing.Version++
		if processedUtc != nil {
			existing.ProcessedUtc = processedUtc
		}
		if meta != nil {
			if existing.ProcessingMetadata == nil {
				existing.ProcessingMetadata = make(map[string]string, len(meta))
			}
			for k, v := range meta {
				existing.ProcessingMetadata[k] = v
			}
		}

		data, err := json.Marshal(existing)
		if err != nil {
			return &worlderr.InternalError{Operation: "eventlog.updateStatus.marshal", Cause: err}
		}
		if err := txn.Set(eventKey(scopeKey, id), data); err != nil {
			return &worlderr.InternalError{Operation: "eventlog.updateStatus.set", Cause: err}
		}
		out = *existing
		return nil
	})
	if err != nil {
		return WorldEventRecord{}, err
	}
	return out, nil
}

func (s *BadgerStore) QueryByScope(_ context.Context, scopeKey string, opts QueryOptions) ([]WorldEventRecord, error) {
	var out []WorldEventRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixEvent + scopeKey + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec WorldEventRecord
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return &worlderr.InternalError{Operation: "eventlog.queryByScope.unmarshal", Cause: err}
			}
			if opts.matches(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OccurredUtc.Before(out[j].OccurredUtc) })

	limit := opts.limitOrDefault()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *BadgerStore) GetRecent(_ context.Context, limit int) ([]WorldEventRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var out []WorldEventRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixEvent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec WorldEventRecord
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return &worlderr.InternalError{Operation: "eventlog.getRecent.unmarshal", Cause: err}
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OccurredUtc.After(out[j].OccurredUtc) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *BadgerStore) WriteDeadLetter(_ context.Context, rec DeadLetterRecord) error {
	if rec.DeadLetteredUtc.IsZero() {
		rec.DeadLetteredUtc = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return &worlderr.InternalError{Operation: "eventlog.writeDeadLetter.marshal", Cause: err}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deadLetterKey(rec.ID), data)
	})
}
