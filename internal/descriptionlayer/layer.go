// Package descriptionlayer implements the description layer store
// (component C6): temporally-scoped, priority-ordered, realm-inherited
// text layers per location, with a periodic content-integrity job.
package descriptionlayer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// LayerType is one of the five recognized layer kinds.
type LayerType string

const (
	LayerBase    LayerType = "base"
	LayerAmbient LayerType = "ambient"
	LayerDynamic LayerType = "dynamic"
	LayerWeather LayerType = "weather"
	LayerLighting LayerType = "lighting"
)

// RealmTier is one level of the realm containment chain consulted when a
// location has no location-scoped layer of its own.
type RealmTier string

const (
	TierLocal       RealmTier = "local"
	TierRegional    RealmTier = "regional"
	TierMacro       RealmTier = "macro"
	TierContinental RealmTier = "continental"
	TierGlobal      RealmTier = "global"
)

// TierOrder is the fixed outward-walking order of the containment chain.
var TierOrder = []RealmTier{TierLocal, TierRegional, TierMacro, TierContinental, TierGlobal}

// DescriptionLayer is one append-only layer record.
type DescriptionLayer struct {
	ID                string            `json:"id"`
	ScopeID           string            `json:"scopeId"`
	LayerType         LayerType         `json:"layerType"`
	Value             string            `json:"value"`
	EffectiveFromTick int64             `json:"effectiveFromTick"`
	EffectiveToTick   *int64            `json:"effectiveToTick,omitempty"`
	AuthoredAt        time.Time         `json:"authoredAt"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	IntegrityHash     string            `json:"integrityHash,omitempty"`
}

// LocationScope is the scopeId for a location's own layers.
func LocationScope(locationID string) string { return "loc:" + locationID }

// RealmScope is the scopeId for a realm's layers.
func RealmScope(realmID string) string { return "realm:" + realmID }

// RealmChainResolver maps a location to its realm IDs at each containment
// tier. Tiers absent from the map are skipped during resolution. There is
// no nesting of realms within realms: each tier names a realm ID directly.
type RealmChainResolver interface {
	Chain(ctx context.Context, locationID string) (map[RealmTier]string, error)
}

// StaticRealmChainResolver is a fixed, in-memory assignment of locations to
// realm chains, suitable for tests and small worlds.
type StaticRealmChainResolver struct {
	chains map[string]map[RealmTier]string
}

// NewStaticRealmChainResolver builds a resolver from a fixed map.
func NewStaticRealmChainResolver(chains map[string]map[RealmTier]string) *StaticRealmChainResolver {
	return &StaticRealmChainResolver{chains: chains}
}

func (r *StaticRealmChainResolver) Chain(_ context.Context, locationID string) (map[RealmTier]string, error) {
	return r.chains[locationID], nil
}

// Store is the description layer store's operation contract.
type Store interface {
	// AppendLayer writes a new immutable layer record under scopeID.
	AppendLayer(ctx context.Context, scopeID string, layerType LayerType, value string, effectiveFromTick int64, effectiveToTick *int64, metadata map[string]string) (DescriptionLayer, error)

	// ListByScope returns every layer recorded under scopeID, most recent
	// authoredAt first.
	ListByScope(ctx context.Context, scopeID string) ([]DescriptionLayer, error)

	// DeleteLayer removes a single layer by ID. Admin-only at the caller's
	// discretion; the store itself performs no authorization.
	DeleteLayer(ctx context.Context, layerID string, scopeID string) error

	// ForEachBatch iterates every layer across every scope in fixed-size
	// batches, invoking fn per batch. Used by the integrity job.
	ForEachBatch(ctx context.Context, batchSize int, fn func(batch []DescriptionLayer) error) error

	// SetIntegrityHash updates a layer's stored hash in place. The
	// integrity hash is the sole mutable field on an otherwise append-only
	// record; only the integrity job writes it.
	SetIntegrityHash(ctx context.Context, layerID string, hash string) error
}

func temporallyValid(l DescriptionLayer, tick int64) bool {
	if tick < l.EffectiveFromTick {
		return false
	}
	if l.EffectiveToTick != nil && tick >= *l.EffectiveToTick {
		return false
	}
	return true
}

func latestValid(layers []DescriptionLayer, tick int64) *DescriptionLayer {
	var candidates []DescriptionLayer
	for _, l := range layers {
		if temporallyValid(l, tick) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].AuthoredAt.After(candidates[j].AuthoredAt) })
	return &candidates[0]
}

// GetActiveLayerForLocation resolves §4.6's getActiveLayerForLocation:
// location scope first, then the realm containment chain outward, then nil.
func GetActiveLayerForLocation(ctx context.Context, s Store, resolver RealmChainResolver, locationID string, layerType LayerType, tick int64) (*DescriptionLayer, error) {
	locLayers, err := s.ListByScope(ctx, LocationScope(locationID))
	if err != nil {
		return nil, err
	}
	locLayers = filterByType(locLayers, layerType)
	if found := latestValid(locLayers, tick); found != nil {
		return found, nil
	}

	if resolver == nil {
		return nil, nil
	}
	chain, err := resolver.Chain(ctx, locationID)
	if err != nil {
		return nil, err
	}
	for _, tier := range TierOrder {
		realmID, ok := chain[tier]
		if !ok || realmID == "" {
			continue
		}
		realmLayers, err := s.ListByScope(ctx, RealmScope(realmID))
		if err != nil {
			return nil, err
		}
		realmLayers = filterByType(realmLayers, layerType)
		if found := latestValid(realmLayers, tick); found != nil {
			return found, nil
		}
	}
	return nil, nil
}

func filterByType(layers []DescriptionLayer, layerType LayerType) []DescriptionLayer {
	out := make([]DescriptionLayer, 0, len(layers))
	for _, l := range layers {
		if l.LayerType == layerType {
			out = append(out, l)
		}
	}
	return out
}

// SetLayerForLocation appends a new layer to a location's scope.
func SetLayerForLocation(ctx context.Context, s Store, locationID string, layerType LayerType, value string, effectiveFromTick int64, effectiveToTick *int64, metadata map[string]string) (DescriptionLayer, error) {
	return s.AppendLayer(ctx, LocationScope(locationID), layerType, value, effectiveFromTick, effectiveToTick, metadata)
}

// SetLayerForRealm appends a new layer to a realm's scope.
func SetLayerForRealm(ctx context.Context, s Store, realmID string, layerType LayerType, value string, effectiveFromTick int64, effectiveToTick *int64, metadata map[string]string) (DescriptionLayer, error) {
	return s.AppendLayer(ctx, RealmScope(realmID), layerType, value, effectiveFromTick, effectiveToTick, metadata)
}

// IntegrityMismatch describes one layer whose stored hash no longer
// matches its recomputed hash, reported with truncated hashes per §4.6.
type IntegrityMismatch struct {
	LayerID       string
	ScopeID       string
	StoredHash    string
	RecomputedHash string
	ContentLength int
}

// truncateHash returns the first 32 hex characters of a full SHA-256 hex
// digest, per §4.6's truncated-hash reporting convention.
func truncateHash(hash string) string {
	if len(hash) <= 32 {
		return hash
	}
	return hash[:32]
}

// RunIntegrityJob iterates every layer in batches of batchSize, computing
// SHA-256(value). On first pass (no stored hash) it records the hash; on
// subsequent passes it compares and reports a mismatch without blocking.
// recomputeAll forces recomputation even for layers with an unchanged
// hash already on record.
func RunIntegrityJob(ctx context.Context, s Store, batchSize int, recomputeAll bool) ([]IntegrityMismatch, int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var mismatches []IntegrityMismatch
	var computed int

	err := s.ForEachBatch(ctx, batchSize, func(batch []DescriptionLayer) error {
		for _, l := range batch {
			recomputedFull := sha256.Sum256([]byte(l.Value))
			recomputed := hex.EncodeToString(recomputedFull[:])

			if l.IntegrityHash == "" {
				if err := s.SetIntegrityHash(ctx, l.ID, recomputed); err != nil {
					return err
				}
				computed++
				continue
			}

			if !recomputeAll && strings.EqualFold(l.IntegrityHash, recomputed) {
				continue
			}

			if l.IntegrityHash != recomputed {
				mismatches = append(mismatches, IntegrityMismatch{
					LayerID:        l.ID,
					ScopeID:        l.ScopeID,
					StoredHash:     truncateHash(l.IntegrityHash),
					RecomputedHash: truncateHash(recomputed),
					ContentLength:  len(l.Value),
				})
			}
			computed++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return mismatches, computed, nil
}

func newLayerID() string { return uuid.NewString() }
