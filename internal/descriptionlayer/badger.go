package descriptionlayer

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

func sortByAuthoredAtDesc(layers []DescriptionLayer) {
	sort.Slice(layers, func(i, j int) bool { return layers[i].AuthoredAt.After(layers[j].AuthoredAt) })
}

// Key scheme: canonical records live under prefixLayer+<id>; a secondary
// index under prefixLayerScope+<scopeId>+":"+<id> supports per-scope scans
// without loading every layer in the store.
const (
	prefixLayer      = "layer:"
	prefixLayerScope = "layerscope:"
)

// BadgerStore implements Store atop a shared BadgerDB handle.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func layerKey(id string) []byte { return []byte(prefixLayer + id) }

func layerScopeIndexKey(scopeID, id string) []byte {
	return []byte(prefixLayerScope + scopeID + ":" + id)
}

func (s *BadgerStore) AppendLayer(_ context.Context, scopeID string, layerType LayerType, value string, effectiveFromTick int64, effectiveToTick *int64, metadata map[string]string) (DescriptionLayer, error) {
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

	data, err := json.Marshal(l)
	if err != nil {
		return DescriptionLayer{}, &worlderr.InternalError{Operation: "descriptionlayer.marshal", Cause: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(layerKey(l.ID), data); err != nil {
			return err
		}
		return txn.Set(layerScopeIndexKey(scopeID, l.ID), []byte(l.ID))
	})
	if err != nil {
		return DescriptionLayer{}, &worlderr.InternalError{Operation: "descriptionlayer.append", Cause: err}
	}
	return l, nil
}

func (s *BadgerStore) getTxn(txn *badger.Txn, id string) (*DescriptionLayer, error) {
	item, err := txn.Get(layerKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &worlderr.InternalError{Operation: "descriptionlayer.get", Cause: err}
	}
	var l DescriptionLayer
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &l)
	}); err != nil {
		return nil, &worlderr.InternalError{Operation: "descriptionlayer.get.unmarshal", Cause: err}
	}
	return &l, nil
}

func (s *BadgerStore) ListByScope(_ context.Context, scopeID string) ([]DescriptionLayer, error) {
	var out []DescriptionLayer
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixLayerScope + scopeID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return &worlderr.InternalError{Operation: "descriptionlayer.listByScope", Cause: err}
			}

			l, err := s.getTxn(txn, id)
			if err != nil {
				return err
			}
			if l != nil {
				out = append(out, *l)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByAuthoredAtDesc(out)
	return out, nil
}

func (s *BadgerStore) DeleteLayer(_ context.Context, layerID string, scopeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTxn(txn, layerID)
		if err != nil {
			return err
		}
		if existing == nil || existing.ScopeID != scopeID {
			return &worlderr.ValidationError{Field: "layerId", Message: "not found in scope " + scopeID}
		}
		if err := txn.Delete(layerKey(layerID)); err != nil {
			return &worlderr.InternalError{Operation: "descriptionlayer.delete", Cause: err}
		}
		return txn.Delete(layerScopeIndexKey(scopeID, layerID))
	})
}

func (s *BadgerStore) ForEachBatch(_ context.Context, batchSize int, fn func(batch []DescriptionLayer) error) error {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixLayer)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().KeyCopy(nil)[len(prefixLayer):]))
		}
		return nil
	})
	if err != nil {
		return &worlderr.InternalError{Operation: "descriptionlayer.forEachBatch.scan", Cause: err}
	}

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		batch := make([]DescriptionLayer, 0, end-start)
		err := s.db.View(func(txn *badger.Txn) error {
			for _, id := range ids[start:end] {
				l, err := s.getTxn(txn, id)
				if err != nil {
					return err
				}
				if l != nil {
					batch = append(batch, *l)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) SetIntegrityHash(_ context.Context, layerID string, hash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTxn(txn, layerID)
		if err != nil {
			return err
		}
		if existing == nil {
			return &worlderr.ValidationError{Field: "layerId", Message: "not found"}
		}
		existing.IntegrityHash = hash
		data, err := json.Marshal(existing)
		if err != nil {
			return &worlderr.InternalError{Operation: "descriptionlayer.setIntegrityHash.marshal", Cause: err}
		}
		return txn.Set(layerKey(layerID), data)
	})
}
