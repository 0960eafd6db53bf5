// Package domain holds the shared data contracts of the world engine:
// locations, exits, players, and the envelope types that cross the
// storage/event-log boundary. Cyclic references (locations pointing at
// exits pointing at locations) are broken by storing IDs, never pointers;
// traversal is always an explicit lookup against the location graph.
package domain

import "time"

// Direction is one of the twelve canonical movement tokens.
type Direction string

const (
	North     Direction = "north"
	South     Direction = "south"
	East      Direction = "east"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Northwest Direction = "northwest"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Up        Direction = "up"
	Down      Direction = "down"
	In        Direction = "in"
	Out       Direction = "out"
)

// CanonicalOrder is the fixed display/sort order for directions: cardinal,
// then intercardinal, then vertical, then radial. Any semantic extras sort
// alphabetically after this set (§3 Exit).
var CanonicalOrder = []Direction{
	North, South, East, West,
	Northeast, Northwest, Southeast, Southwest,
	Up, Down,
	In, Out,
}

var canonicalRank = func() map[Direction]int {
	m := make(map[Direction]int, len(CanonicalOrder))
	for i, d := range CanonicalOrder {
		m[d] = i
	}
	return m
}()

// Opposite maps each direction to its reciprocal, used by
// ensureExitBidirectional to build the return edge.
var Opposite = map[Direction]Direction{
	North:     South,
	South:     North,
	East:      West,
	West:      East,
	Northeast: Southwest,
	Southwest: Northeast,
	Northwest: Southeast,
	Southeast: Northwest,
	Up:        Down,
	Down:      Up,
	In:        Out,
	Out:       In,
}

// IsCanonical reports whether d is one of the twelve closed-set tokens.
func IsCanonical(d Direction) bool {
	_, ok := canonicalRank[d]
	return ok
}

// Less orders directions per CanonicalOrder, falling back to alphabetical
// for anything outside the closed set.
func Less(a, b Direction) bool {
	ra, aok := canonicalRank[a]
	rb, bok := canonicalRank[b]
	switch {
	case aok && bok:
		return ra < rb
	case aok && !bok:
		return true
	case !aok && bok:
		return false
	default:
		return a < b
	}
}

// Exit is a directed edge rooted at a location.
type Exit struct {
	Direction   Direction `json:"direction"`
	ToLocationID string   `json:"toLocationId"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	State       string    `json:"state,omitempty"`
}

// Availability classifies an exit direction's standing at a location.
type Availability string

const (
	AvailabilityHard      Availability = "hard"
	AvailabilityPending   Availability = "pending"
	AvailabilityForbidden Availability = "forbidden"
)

// ExitInfo is the outward-facing contract for a direction at a location.
type ExitInfo struct {
	Direction    Direction    `json:"direction"`
	Availability Availability `json:"availability"`
	ToLocationID string       `json:"toLocationId,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

// ExitMetadata holds the forbidden/pending direction sets consulted by the
// exit availability model in addition to a location's hard exits.
type ExitMetadata struct {
	Forbidden map[Direction]string `json:"forbidden,omitempty"`
	Pending   map[Direction]string `json:"pending,omitempty"`
}

// Location is a node in the world graph.
type Location struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Version           int64         `json:"version"`
	Exits             []Exit        `json:"exits"`
	ExitsSummaryCache string        `json:"exitsSummaryCache,omitempty"`
	ExitAvailability  *ExitMetadata `json:"exitAvailability,omitempty"`
}

// Player is a connected actor in the world.
type Player struct {
	ID                string            `json:"id"`
	CreatedUtc        time.Time         `json:"createdUtc"`
	UpdatedUtc        time.Time         `json:"updatedUtc"`
	Guest             bool              `json:"guest"`
	ExternalID        string            `json:"externalId,omitempty"`
	CurrentLocationID string            `json:"currentLocationId"`
	Name              string            `json:"name,omitempty"`
	ClockTick         *int64            `json:"clockTick,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	InventoryVersion  int64             `json:"inventoryVersion,omitempty"`
}

// StarterLocationID is the well-known default location new players and
// directionless move requests resolve against.
const StarterLocationID = "00000000-0000-4000-8000-000000000000"
