// Package player implements player bootstrap, lookup, and external-identity
// linking atop the shared domain.Player contract.
package player

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// BootstrapResult reports the outcome of Store.Bootstrap.
type BootstrapResult struct {
	Player  domain.Player
	Created bool
}

// LinkResult reports the outcome of Store.LinkExternalID.
type LinkResult struct {
	Player   domain.Player
	Conflict bool
	// ExistingPlayerID is set when Conflict is true: the player that
	// already owns externalId.
	ExistingPlayerID string
}

// Store is the player repository's operation contract. now is always an
// explicit parameter, never read from the wall clock internally, matching
// the convention debounce.ShouldEmit and worldclock.GetTickAt already use
// elsewhere in this tree so tests can pin timestamps deterministically.
type Store interface {
	// Get returns the player by id, or nil if absent.
	Get(ctx context.Context, id string) (*domain.Player, error)

	// Bootstrap returns the player for guid if it already exists, or
	// creates a fresh guest player at domain.StarterLocationID otherwise.
	// Idempotent: a second call with the same guid returns created=false
	// and an unchanged UpdatedUtc.
	Bootstrap(ctx context.Context, guid string, now time.Time) (BootstrapResult, error)

	// UpdateLocation sets currentLocationId and bumps UpdatedUtc.
	UpdateLocation(ctx context.Context, id string, locationID string, now time.Time) error

	// LinkExternalID flips Guest to false and records externalId the
	// first time it is called for a player. A second call with the same
	// value is a no-op; a call with a different value already owned by
	// another player is rejected with Conflict=true. externalId is
	// normalized to lower case before comparison/storage (§3:
	// "provider-qualified, lower-cased, unique when present").
	LinkExternalID(ctx context.Context, id string, externalID string, now time.Time) (LinkResult, error)
}

// NewGuid returns a fresh player id for a bootstrap request arriving
// without an x-player-guid header.
func NewGuid() string { return uuid.NewString() }

func normalizeExternalID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validateGuid(guid string) error {
	if strings.TrimSpace(guid) == "" {
		return &worlderr.ValidationError{Field: "playerGuid", Message: "cannot be empty"}
	}
	return nil
}

func notFoundErr(id string) error {
	return &worlderr.NotFoundError{Resource: "player", ID: id}
}

func newGuestPlayer(id string, now time.Time) domain.Player {
	return domain.Player{
		ID:                id,
		CreatedUtc:        now,
		UpdatedUtc:        now,
		Guest:             true,
		CurrentLocationID: domain.StarterLocationID,
	}
}
