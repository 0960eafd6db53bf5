package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// Badger key prefixes. Locations are keyed flat by ID; the graph has no
// secondary indexes because every lookup is by location ID or a full scan.
const prefixLocation = "loc:"

// BadgerStore implements Store atop a BadgerDB handle shared with the rest
// of the world engine's durable components.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle. The handle's
// lifecycle (open/close) is owned by the composition root, not this store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func locationKey(id string) []byte {
	return []byte(prefixLocation + id)
}

func (s *BadgerStore) getTxn(txn *badger.Txn, id string) (*domain.Location, error) {
	item, err := txn.Get(locationKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &worlderr.InternalError{Operation: "graph.get", Cause: err}
	}
	var loc domain.Location
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &loc)
	}); err != nil {
		return nil, &worlderr.InternalError{Operation: "graph.get.unmarshal", Cause: err}
	}
	return &loc, nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*domain.Location, error) {
	var loc *domain.Location
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}
		loc = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loc != nil {
		loc.Exits = sortExits(loc.Exits)
	}
	return loc, nil
}

func (s *BadgerStore) putTxn(txn *badger.Txn, loc domain.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return &worlderr.InternalError{Operation: "graph.marshal", Cause: err}
	}
	if err := txn.Set(locationKey(loc.ID), data); err != nil {
		return &worlderr.InternalError{Operation: "graph.set", Cause: err}
	}
	return nil
}

func (s *BadgerStore) Upsert(_ context.Context, loc domain.Location) (UpsertResult, error) {
	if err := validateUpsert(loc); err != nil {
		return UpsertResult{}, err
	}

	var result UpsertResult
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTxn(txn, loc.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			loc.Version = 1
			loc.Exits = sortExits(loc.Exits)
			loc.ExitsSummaryCache = summarize(loc.Exits)
			result = UpsertResult{Created: true, ID: loc.ID}
			return s.putTxn(txn, loc)
		}

		contentChanged := existing.Name != loc.Name || existing.Description != loc.Description
		updated := *existing
		updated.Name = loc.Name
		updated.Description = loc.Description
		updated.Exits = sortExits(loc.Exits)
		updated.ExitAvailability = loc.ExitAvailability
		updated.ExitsSummaryCache = summarize(updated.Exits)
		if contentChanged {
			updated.Version = existing.Version + 1
		}
		result = UpsertResult{Created: false, ID: loc.ID}
		if contentChanged {
			rev := updated.Version
			result.UpdatedRevision = &rev
		}
		return s.putTxn(txn, updated)
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

func (s *BadgerStore) Move(_ context.Context, fromID string, dir domain.Direction) (MoveResult, error) {
	var result MoveResult
	err := s.db.View(func(txn *badger.Txn) error {
		from, err := s.getTxn(txn, fromID)
		if err != nil {
			return err
		}
		if from == nil {
			return &worlderr.FromMissingError{LocationID: fromID}
		}

		idx := findExit(from.Exits, dir)
		if idx < 0 {
			return &worlderr.NoExitError{LocationID: fromID, Direction: string(dir)}
		}
		targetID := from.Exits[idx].ToLocationID

		target, err := s.getTxn(txn, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return &worlderr.TargetMissingError{LocationID: targetID}
		}
		target.Exits = sortExits(target.Exits)
		result = MoveResult{Location: *target}
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	return result, nil
}

func (s *BadgerStore) EnsureExit(_ context.Context, from string, dir domain.Direction, to string, desc string) (EnsureExitResult, error) {
	var result EnsureExitResult
	err := s.db.Update(func(txn *badger.Txn) error {
		loc, err := s.getTxn(txn, from)
		if err != nil {
			return err
		}
		if loc == nil {
			return &worlderr.FromMissingError{LocationID: from}
		}

		updatedExits, created := ensureExitInPlace(append([]domain.Exit{}, loc.Exits...), dir, to, desc)
		loc.Exits = sortExits(updatedExits)
		loc.ExitsSummaryCache = summarize(loc.Exits)
		result = EnsureExitResult{Created: created}
		return s.putTxn(txn, *loc)
	})
	if err != nil {
		return EnsureExitResult{}, err
	}
	return result, nil
}

func (s *BadgerStore) EnsureExitBidirectional(ctx context.Context, from string, dir domain.Direction, to string, reciprocal bool, forwardDesc, reciprocalDesc string) (ApplyExitsResult, error) {
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

func (s *BadgerStore) RemoveExit(_ context.Context, from string, dir domain.Direction) (bool, error) {
	var removedAny bool
	err := s.db.Update(func(txn *badger.Txn) error {
		loc, err := s.getTxn(txn, from)
		if err != nil {
			return err
		}
		if loc == nil {
			return &worlderr.FromMissingError{LocationID: from}
		}

		remaining, removed := removeExitInPlace(loc.Exits, dir)
		if removed == 0 {
			return nil
		}
		loc.Exits = remaining
		loc.ExitsSummaryCache = summarize(loc.Exits)
		removedAny = true
		return s.putTxn(txn, *loc)
	})
	if err != nil {
		return false, err
	}
	return removedAny, nil
}

// ApplyExits applies each batch item as its own atomic transaction: the
// contract (§4.3) is atomic-per-edge, not atomic-across-the-batch.
func (s *BadgerStore) ApplyExits(ctx context.Context, batch []ExitBatchItem) (ApplyExitsResult, error) {
	total := ApplyExitsResult{}
	for _, item := range batch {
		r, err := s.EnsureExitBidirectional(ctx, item.From, item.Direction, item.To, item.Reciprocal, item.Description, item.ReciprocalDesc)
		if err != nil {
			return total, fmt.Errorf("edge %s -%s-> %s: %w", item.From, item.Direction, item.To, err)
		}
		total.ExitsCreated += r.ExitsCreated
		total.ExitsSkipped += r.ExitsSkipped
		total.ReciprocalApplied += r.ReciprocalApplied
	}
	return total, nil
}

func (s *BadgerStore) ListAll(_ context.Context) ([]domain.Location, error) {
	var out []domain.Location
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixLocation)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var loc domain.Location
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &loc)
			}); err != nil {
				return &worlderr.InternalError{Operation: "graph.listAll.unmarshal", Cause: err}
			}
			loc.Exits = sortExits(loc.Exits)
			out = append(out, loc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) DeleteLocation(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(locationKey(id))
		if err == badger.ErrKeyNotFound {
			return &worlderr.LocationNotFoundError{LocationID: id}
		}
		if err != nil {
			return &worlderr.InternalError{Operation: "graph.deleteLocation", Cause: err}
		}
		if err := txn.Delete(locationKey(id)); err != nil {
			return &worlderr.InternalError{Operation: "graph.deleteLocation", Cause: err}
		}
		return nil
	})
}
