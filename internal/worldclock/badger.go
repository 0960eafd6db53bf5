package worldclock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// worldClockKey is a single well-known key: the world clock is a singleton.
const worldClockKey = "worldclock:singleton"

// BadgerStore implements Store atop a shared BadgerDB handle.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func (s *BadgerStore) readTxn(txn *badger.Txn) (*WorldClock, error) {
	item, err := txn.Get([]byte(worldClockKey))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &worlderr.InternalError{Operation: "worldclock.get", Cause: err}
	}
	var clock WorldClock
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &clock)
	}); err != nil {
		return nil, &worlderr.InternalError{Operation: "worldclock.get.unmarshal", Cause: err}
	}
	return &clock, nil
}

func (s *BadgerStore) writeTxn(txn *badger.Txn, clock WorldClock) error {
	data, err := json.Marshal(clock)
	if err != nil {
		return &worlderr.InternalError{Operation: "worldclock.marshal", Cause: err}
	}
	if err := txn.Set([]byte(worldClockKey), data); err != nil {
		return &worlderr.InternalError{Operation: "worldclock.set", Cause: err}
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context) (*WorldClock, error) {
	var clock *WorldClock
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.readTxn(txn)
		if err != nil {
			return err
		}
		clock = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clock, nil
}

func (s *BadgerStore) Initialize(_ context.Context, initialTick int64) (*WorldClock, error) {
	var result WorldClock
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.readTxn(txn)
		if err != nil {
			return err
		}
		if existing != nil {
			return &worlderr.ValidationError{Field: "worldClock", Message: "already initialized"}
		}
		now := time.Now().UTC()
		result = WorldClock{
			CurrentTick:   initialTick,
			LastAdvanced:  now,
			InitializedAt: now,
			InitialTick:   initialTick,
			ETag:          uuid.NewString(),
		}
		return s.writeTxn(txn, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *BadgerStore) Advance(_ context.Context, durationMs int64, reason string, currentEtag string) (*WorldClock, error) {
	if err := validateAdvance(durationMs); err != nil {
		return nil, err
	}

	var result WorldClock
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.readTxn(txn)
		if err != nil {
			return err
		}
		if existing == nil {
			return &worlderr.ValidationError{Field: "worldClock", Message: "not initialized"}
		}
		if existing.ETag != currentEtag {
			return &worlderr.ConcurrentAdvancementError{Resource: "worldClock", SuppliedTag: currentEtag, CurrentTag: existing.ETag}
		}

		now := time.Now().UTC()
		existing.CurrentTick += durationMs
		existing.LastAdvanced = now
		existing.AdvancementHistory = appendCapped(existing.AdvancementHistory, Advancement{
			Timestamp:  now,
			DurationMs: durationMs,
			Reason:     reason,
			TickAfter:  existing.CurrentTick,
		})
		existing.ETag = uuid.NewString()

		result = *existing
		return s.writeTxn(txn, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *BadgerStore) GetTickAt(_ context.Context, timestamp time.Time) (*int64, error) {
	var clock *WorldClock
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.readTxn(txn)
		if err != nil {
			return err
		}
		clock = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if clock == nil {
		return nil, nil
	}
	return replayTickAt(clock.InitializedAt, clock.AdvancementHistory, clock.InitialTick, timestamp), nil
}
