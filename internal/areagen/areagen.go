// Package areagen implements the area generation orchestrator (component
// C9): anchor resolution, budget clamping, terrain derivation, and
// idempotent envelope enqueue onto the world event log.
package areagen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/eventlog"
	"github.com/piquet-h/worldengine/internal/graph"
	"github.com/piquet-h/worldengine/internal/telemetry"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// Mode is the caller's requested generation style.
type Mode string

const (
	ModeUrban      Mode = "urban"
	ModeWilderness Mode = "wilderness"
	ModeAuto       Mode = "auto"
)

// TerrainGuidance is one row of the terrain guidance table (§Glossary): it
// guides generation but does not constrain it.
type TerrainGuidance struct {
	Terrain           string
	TypicalExitCount  int
	ExitPattern       string
	Hint              string
	DefaultDirections []domain.Direction
}

// GuidanceTable maps a derived terrain name to its guidance row. auto-mode
// derivation below consults TypicalExitCount as the split point between
// the two terrains this core recognizes.
var GuidanceTable = map[string]TerrainGuidance{
	"urban": {
		Terrain:           "urban",
		TypicalExitCount:  4,
		ExitPattern:       "grid",
		Hint:              "dense, rectilinear streets and buildings with frequent cross-connections",
		DefaultDirections: []domain.Direction{domain.North, domain.South, domain.East, domain.West},
	},
	"wilderness": {
		Terrain:           "wilderness",
		TypicalExitCount:  2,
		ExitPattern:       "sparse",
		Hint:              "winding, irregular paths with long stretches between junctions",
		DefaultDirections: []domain.Direction{domain.North, domain.South},
	},
}

// DeriveTerrain resolves mode to a concrete terrain name. auto consults
// the anchor's existing exit count against GuidanceTable's urban row: an
// anchor already as dense as a typical urban junction continues urban,
// otherwise the area generates as wilderness.
func DeriveTerrain(mode Mode, anchor *domain.Location) string {
	switch mode {
	case ModeUrban:
		return "urban"
	case ModeWilderness:
		return "wilderness"
	default:
		if anchor != nil && len(anchor.Exits) >= GuidanceTable["urban"].TypicalExitCount {
			return "urban"
		}
		return "wilderness"
	}
}

// Request is orchestrate's input (§4.9), matching the
// AreaGenerationRequest transient type in §3.
type Request struct {
	AnchorLocationID string
	Mode             Mode
	BudgetLocations  int
	RealmHints       []string
	IdempotencyKey   string
}

// Result is orchestrate's output.
type Result struct {
	EnqueuedCount    int
	AnchorLocationID string
	Terrain          string
	IdempotencyKey   string
	Clamped          bool
	MaxBudget        int
}

// Orchestrator wires the collaborators orchestrate needs.
type Orchestrator struct {
	Graph              graph.Store
	Events             eventlog.Store
	Sink               telemetry.Sink
	MaxBudgetLocations int
}

func (o *Orchestrator) emit(ctx context.Context, name telemetry.EventName, correlationID string, fields map[string]any) {
	sink := o.Sink
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	_ = sink.Emit(ctx, telemetry.Event{
		Name:          telemetry.ValidateEventName(name),
		CorrelationID: correlationID,
		OccurredUtc:   time.Now().UTC(),
		Fields:        fields,
	})
}

func (o *Orchestrator) maxBudget() int {
	if o.MaxBudgetLocations <= 0 {
		return 20
	}
	return o.MaxBudgetLocations
}

// Orchestrate implements §4.9's seven numbered steps.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request, correlationID string, now time.Time) (Result, error) {
	anchorID, anchor, err := o.resolveAnchor(ctx, req.AnchorLocationID)
	if err != nil {
		return Result{}, err
	}

	maxBudget := o.maxBudget()
	budget, clamped := clampBudget(req.BudgetLocations, maxBudget)

	terrain := DeriveTerrain(req.Mode, anchor)

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = deriveIdempotencyKey(anchorID, req.Mode, budget, req.RealmHints)
	}

	existing, err := o.Events.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return Result{}, &worlderr.InternalError{Operation: "areagen.idempotency.lookup", Cause: err}
	}
	if existing != nil && existing.Status != eventlog.StatusDeadLettered {
		o.emit(ctx, telemetry.EventWorldEventDuplicate, correlationID, map[string]any{
			"anchorLocationId": anchorID, "idempotencyKey": idempotencyKey,
		})
		return Result{
			EnqueuedCount:    0,
			AnchorLocationID: anchorID,
			Terrain:          terrain,
			IdempotencyKey:   idempotencyKey,
			Clamped:          clamped,
			MaxBudget:        maxBudget,
		}, nil
	}

	rec := eventlog.WorldEventRecord{
		ScopeKey:       eventlog.LocationScope(anchorID),
		EventType:      "World.Area.GenerationRequested",
		Status:         eventlog.StatusPending,
		OccurredUtc:    now,
		ActorKind:      eventlog.ActorSystem,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		Payload: map[string]any{
			"terrain":    terrain,
			"budget":     budget,
			"realmHints": req.RealmHints,
		},
	}

	_, created, err := o.Events.Create(ctx, rec)
	if err != nil {
		return Result{}, err
	}

	enqueuedCount := 0
	if created {
		enqueuedCount = 1
		o.emit(ctx, telemetry.EventWorldAreaGenerationReq, correlationID, map[string]any{
			"anchorLocationId": anchorID, "terrain": terrain, "budget": budget, "idempotencyKey": idempotencyKey,
		})
	} else {
		o.emit(ctx, telemetry.EventWorldEventDuplicate, correlationID, map[string]any{
			"anchorLocationId": anchorID, "idempotencyKey": idempotencyKey,
		})
	}

	return Result{
		EnqueuedCount:    enqueuedCount,
		AnchorLocationID: anchorID,
		Terrain:          terrain,
		IdempotencyKey:   idempotencyKey,
		Clamped:          clamped,
		MaxBudget:        maxBudget,
	}, nil
}

func (o *Orchestrator) resolveAnchor(ctx context.Context, anchorLocationID string) (string, *domain.Location, error) {
	if anchorLocationID == "" {
		anchor, err := o.Graph.Get(ctx, domain.StarterLocationID)
		if err != nil {
			return "", nil, &worlderr.InternalError{Operation: "areagen.anchor.get", Cause: err}
		}
		return domain.StarterLocationID, anchor, nil
	}

	if _, err := uuid.Parse(anchorLocationID); err != nil {
		return "", nil, &worlderr.ValidationError{Field: "anchorLocationId", Message: "must be a UUID"}
	}

	anchor, err := o.Graph.Get(ctx, anchorLocationID)
	if err != nil {
		return "", nil, &worlderr.InternalError{Operation: "areagen.anchor.get", Cause: err}
	}
	if anchor == nil {
		return "", nil, &worlderr.LocationNotFoundError{LocationID: anchorLocationID}
	}
	return anchorLocationID, anchor, nil
}

// clampBudget bounds budget to [1, maxBudget], reporting whether clamping
// was necessary (§4.9 step 2).
func clampBudget(budget, maxBudget int) (int, bool) {
	switch {
	case budget < 1:
		return 1, true
	case budget > maxBudget:
		return maxBudget, true
	default:
		return budget, false
	}
}

// deriveIdempotencyKey hashes (anchor, mode, budget, sorted realmHints)
// into a deterministic key when the caller supplies none (§4.9 step 4).
func deriveIdempotencyKey(anchorID string, mode Mode, budget int, realmHints []string) string {
	sorted := append([]string(nil), realmHints...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(anchorID))
	h.Write([]byte("|"))
	h.Write([]byte(mode))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(budget)))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(sorted, ",")))

	return "areagen:" + hex.EncodeToString(h.Sum(nil))
}
