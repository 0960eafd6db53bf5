package locationclock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

const prefixLocationClock = "locclock:"

// BadgerStore implements Store atop a shared BadgerDB handle.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func locationClockKey(locationID string) []byte {
	return []byte(prefixLocationClock + locationID)
}

func (s *BadgerStore) readTxn(txn *badger.Txn, locationID string) (*LocationClock, error) {
	item, err := txn.Get(locationClockKey(locationID))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &worlderr.InternalError{Operation: "locationclock.get", Cause: err}
	}
	var c LocationClock
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &c)
	}); err != nil {
		return nil, &worlderr.InternalError{Operation: "locationclock.get.unmarshal", Cause: err}
	}
	return &c, nil
}

func (s *BadgerStore) writeTxn(txn *badger.Txn, c LocationClock) error {
	data, err := json.Marshal(c)
	if err != nil {
		return &worlderr.InternalError{Operation: "locationclock.marshal", Cause: err}
	}
	if err := txn.Set(locationClockKey(c.LocationID), data); err != nil {
		return &worlderr.InternalError{Operation: "locationclock.set", Cause: err}
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, locationID string) (*LocationClock, error) {
	var c *LocationClock
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.readTxn(txn, locationID)
		if err != nil {
			return err
		}
		c = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BadgerStore) InitAnchor(_ context.Context, locationID string, anchorTick int64) (*LocationClock, bool, error) {
	if err := validateTick(anchorTick); err != nil {
		return nil, false, err
	}

	var (
		result  LocationClock
		created bool
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.readTxn(txn, locationID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = *existing
			return nil
		}
		result = LocationClock{LocationID: locationID, ClockAnchor: anchorTick, LastSynced: time.Now().UTC(), ETag: uuid.NewString()}
		created = true
		return s.writeTxn(txn, result)
	})
	if err != nil {
		return nil, false, err
	}
	return &result, created, nil
}

func (s *BadgerStore) Sync(_ context.Context, locationID string, tick int64, currentEtag string) (*LocationClock, error) {
	if err := validateTick(tick); err != nil {
		return nil, err
	}

	var result LocationClock
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.readTxn(txn, locationID)
		if err != nil {
			return err
		}
		if existing == nil {
			result = LocationClock{LocationID: locationID, ClockAnchor: tick, LastSynced: time.Now().UTC(), ETag: uuid.NewString()}
			return s.writeTxn(txn, result)
		}
		if existing.ETag != currentEtag {
			return &worlderr.ConcurrentAdvancementError{Resource: "locationClock:" + locationID, SuppliedTag: currentEtag, CurrentTag: existing.ETag}
		}
		existing.ClockAnchor = tick
		existing.LastSynced = time.Now().UTC()
		existing.ETag = uuid.NewString()
		result = *existing
		return s.writeTxn(txn, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *BadgerStore) ListAll(_ context.Context) ([]LocationClock, error) {
	var out []LocationClock
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixLocationClock)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c LocationClock
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return &worlderr.InternalError{Operation: "locationclock.listAll.unmarshal", Cause: err}
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
