package debounce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

const prefixDebounce = "debounce:"

func debounceEntryKey(scopeKey, debounceKey string) []byte {
	return []byte(prefixDebounce + scopeKey + ":" + debounceKey)
}

// BadgerStore implements Store atop a shared BadgerDB handle, using
// Badger's native per-key TTL for auto-expiry instead of a manual sweep —
// the partition-local durable variant called for in §4.10/§9's Open
// Question on multi-process debounce correctness.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func (s *BadgerStore) Get(_ context.Context, scopeKey, debounceKey string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(debounceEntryKey(scopeKey, debounceKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return &worlderr.InternalError{Operation: "debounce.get", Cause: err}
		}
		return item.Value(func(val []byte) error {
			var r Record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BadgerStore) Upsert(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &worlderr.InternalError{Operation: "debounce.upsert.marshal", Cause: err}
	}

	ttl := time.Duration(rec.TTLSeconds) * time.Second
	entry := badger.NewEntry(debounceEntryKey(rec.ScopeKey, rec.DebounceKey), data)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}
