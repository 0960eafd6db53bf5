package player

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// Badger key prefixes: players are keyed flat by id, as graph.BadgerStore
// keys locations, plus a secondary externalId index entry pointing back to
// the owning id, following the same pattern eventlog.BadgerStore uses for
// its idempotency-key index.
const (
	prefixPlayer     = "player:"
	prefixExternalID = "playerext:"
)

func playerKey(id string) []byte        { return []byte(prefixPlayer + id) }
func externalIDKey(normalized string) []byte { return []byte(prefixExternalID + normalized) }

// BadgerStore implements Store atop a shared BadgerDB handle.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func (s *BadgerStore) getTxn(txn *badger.Txn, id string) (*domain.Player, error) {
	item, err := txn.Get(playerKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &worlderr.InternalError{Operation: "player.get", Cause: err}
	}
	var p domain.Player
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	}); err != nil {
		return nil, &worlderr.InternalError{Operation: "player.get.unmarshal", Cause: err}
	}
	return &p, nil
}

func (s *BadgerStore) putTxn(txn *badger.Txn, p domain.Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return &worlderr.InternalError{Operation: "player.put.marshal", Cause: err}
	}
	return txn.Set(playerKey(p.ID), data)
}

func (s *BadgerStore) Get(_ context.Context, id string) (*domain.Player, error) {
	var p *domain.Player
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}
		p = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *BadgerStore) Bootstrap(_ context.Context, guid string, now time.Time) (BootstrapResult, error) {
	if err := validateGuid(guid); err != nil {
		return BootstrapResult{}, err
	}

	var result BootstrapResult
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTxn(txn, guid)
		if err != nil {
			return err
		}
		if existing != nil {
			result = BootstrapResult{Player: *existing, Created: false}
			return nil
		}

		p := newGuestPlayer(guid, now)
		if err := s.putTxn(txn, p); err != nil {
			return err
		}
		result = BootstrapResult{Player: p, Created: true}
		return nil
	})
	if err != nil {
		return BootstrapResult{}, err
	}
	return result, nil
}

func (s *BadgerStore) UpdateLocation(_ context.Context, id string, locationID string, now time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		p, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundErr(id)
		}
		p.CurrentLocationID = locationID
		p.UpdatedUtc = now
		return s.putTxn(txn, *p)
	})
}

func (s *BadgerStore) LinkExternalID(_ context.Context, id string, externalID string, now time.Time) (LinkResult, error) {
	normalized := normalizeExternalID(externalID)

	var result LinkResult
	err := s.db.Update(func(txn *badger.Txn) error {
		p, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundErr(id)
		}

		item, err := txn.Get(externalIDKey(normalized))
		switch err {
		case nil:
			var owner string
			if verr := item.Value(func(val []byte) error { owner = string(val); return nil }); verr != nil {
				return &worlderr.InternalError{Operation: "player.link.index.read", Cause: verr}
			}
			if owner != id {
				result = LinkResult{Conflict: true, ExistingPlayerID: owner}
				return nil
			}
		case badger.ErrKeyNotFound:
			// no existing owner, proceed
		default:
			return &worlderr.InternalError{Operation: "player.link.index.get", Cause: err}
		}

		if p.ExternalID == normalized {
			result = LinkResult{Player: *p, Conflict: false}
			return nil
		}

		p.ExternalID = normalized
		p.Guest = false
		p.UpdatedUtc = now

		if err := s.putTxn(txn, *p); err != nil {
			return err
		}
		if err := txn.Set(externalIDKey(normalized), []byte(id)); err != nil {
			return &worlderr.InternalError{Operation: "player.link.index.set", Cause: err}
		}

		result = LinkResult{Player: *p, Conflict: false}
		return nil
	})
	if err != nil {
		return LinkResult{}, err
	}
	return result, nil
}
