// Package graph implements the location graph (component C3): a directed
// graph of locations connected by labeled exit edges, with an in-memory
// implementation for tests and a BadgerDB-backed implementation for
// production use. Both share the Store interface and its invariants.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// UpsertResult reports the outcome of Store.Upsert.
type UpsertResult struct {
	Created         bool
	ID              string
	UpdatedRevision *int64
}

// MoveResult is the successful outcome of Store.Move.
type MoveResult struct {
	Location domain.Location
}

// EnsureExitResult reports the outcome of Store.EnsureExit.
type EnsureExitResult struct {
	Created bool
}

// ApplyExitsResult aggregates the outcome of an exit batch.
type ApplyExitsResult struct {
	ExitsCreated     int
	ExitsSkipped     int
	ReciprocalApplied int
}

// ExitBatchItem is one edge request within Store.ApplyExits.
type ExitBatchItem struct {
	From              string
	Direction         domain.Direction
	To                string
	Description       string
	Reciprocal        bool
	ReciprocalDesc    string
}

// Store is the location graph's operation contract. Implementations must
// regenerate ExitsSummaryCache on every mutation that touches Exits, and
// must bump Version only when Name or Description actually changes.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Location, error)
	Upsert(ctx context.Context, loc domain.Location) (UpsertResult, error)
	Move(ctx context.Context, fromID string, dir domain.Direction) (MoveResult, error)
	EnsureExit(ctx context.Context, from string, dir domain.Direction, to string, desc string) (EnsureExitResult, error)
	EnsureExitBidirectional(ctx context.Context, from string, dir domain.Direction, to string, reciprocal bool, forwardDesc, reciprocalDesc string) (ApplyExitsResult, error)
	RemoveExit(ctx context.Context, from string, dir domain.Direction) (removed bool, err error)
	ApplyExits(ctx context.Context, batch []ExitBatchItem) (ApplyExitsResult, error)
	ListAll(ctx context.Context) ([]domain.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// summarize builds the exit summary cache string from a location's exits,
// per §3/§4.3: canonical order, direction tokens only, descriptions excluded.
func summarize(exits []domain.Exit) string {
	if len(exits) == 0 {
		return "No exits available."
	}
	dirs := make([]domain.Direction, len(exits))
	for i, e := range exits {
		dirs[i] = e.Direction
	}
	sort.Slice(dirs, func(i, j int) bool { return domain.Less(dirs[i], dirs[j]) })
	tokens := make([]string, len(dirs))
	for i, d := range dirs {
		tokens[i] = string(d)
	}
	return "Exits: " + strings.Join(tokens, ", ")
}

// sortExits returns a copy of exits ordered per the canonical exit order.
func sortExits(exits []domain.Exit) []domain.Exit {
	out := make([]domain.Exit, len(exits))
	copy(out, exits)
	sort.SliceStable(out, func(i, j int) bool { return domain.Less(out[i].Direction, out[j].Direction) })
	return out
}

// findExit returns the index of the exit matching dir, or -1.
func findExit(exits []domain.Exit, dir domain.Direction) int {
	for i := range exits {
		if exits[i].Direction == dir {
			return i
		}
	}
	return -1
}

// ensureExitInPlace applies idempotent exit creation semantics to a copy of
// loc.Exits, returning the updated slice and whether a new edge was created.
// Shared by both Store implementations so the invariant text in §4.3 lives
// in exactly one place.
func ensureExitInPlace(exits []domain.Exit, dir domain.Direction, to string, desc string) ([]domain.Exit, bool) {
	if idx := findExit(exits, dir); idx >= 0 {
		existing := exits[idx]
		if existing.ToLocationID == to {
			if existing.Description == "" && desc != "" {
				exits[idx].Description = desc
			}
			return exits, false
		}
		// Differing destination for the same direction replaces the edge;
		// callers are expected to have resolved conflicts before calling.
		exits[idx] = domain.Exit{Direction: dir, ToLocationID: to, Description: desc}
		return exits, false
	}
	return append(exits, domain.Exit{Direction: dir, ToLocationID: to, Description: desc}), true
}

// removeExitInPlace removes all exits matching dir, returning the updated
// slice and the count removed.
func removeExitInPlace(exits []domain.Exit, dir domain.Direction) ([]domain.Exit, int) {
	out := exits[:0:0]
	removed := 0
	for _, e := range exits {
		if e.Direction == dir {
			removed++
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

func notFoundErr(id string) error {
	return &worlderr.FromMissingError{LocationID: id}
}

func validateUpsert(loc domain.Location) error {
	if loc.ID == "" {
		return &worlderr.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if loc.Name == "" {
		return &worlderr.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	seen := make(map[domain.Direction]struct{}, len(loc.Exits))
	for _, e := range loc.Exits {
		if _, dup := seen[e.Direction]; dup {
			return &worlderr.ValidationError{Field: "exits", Message: fmt.Sprintf("duplicate direction %s", e.Direction)}
		}
		seen[e.Direction] = struct{}{}
	}
	return nil
}
