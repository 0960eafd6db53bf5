// Package direction implements the direction normalizer (component C1): a
// pure function that maps raw player input, plus an optional heading, onto
// a canonical direction token.
package direction

import (
	"fmt"
	"strings"

	"github.com/piquet-h/worldengine/internal/domain"
)

// Status is the outcome of a normalization attempt.
type Status string

const (
	StatusOK        Status = "ok"
	StatusAmbiguous Status = "ambiguous"
	StatusUnknown   Status = "unknown"
)

// Result is the return value of Normalize.
type Result struct {
	Status        Status
	Canonical     domain.Direction
	Clarification string
}

// planarRing is the eight-point compass used to resolve left/right/back
// rotations. Index arithmetic mod 8 gives the rotation.
var planarRing = []domain.Direction{
	domain.North, domain.Northeast, domain.East, domain.Southeast,
	domain.South, domain.Southwest, domain.West, domain.Northwest,
}

var planarIndex = func() map[domain.Direction]int {
	m := make(map[domain.Direction]int, len(planarRing))
	for i, d := range planarRing {
		m[d] = i
	}
	return m
}()

var tokenAliases = map[string]domain.Direction{
	"north": domain.North, "n": domain.North,
	"south": domain.South, "s": domain.South,
	"east": domain.East, "e": domain.East,
	"west": domain.West, "w": domain.West,
	"northeast": domain.Northeast, "ne": domain.Northeast,
	"northwest": domain.Northwest, "nw": domain.Northwest,
	"southeast": domain.Southeast, "se": domain.Southeast,
	"southwest": domain.Southwest, "sw": domain.Southwest,
	"up": domain.Up, "u": domain.Up,
	"down": domain.Down, "d": domain.Down,
	"in": domain.In,
	"out": domain.Out,
}

const (
	relLeft    = "left"
	relRight   = "right"
	relForward = "forward"
	relBack    = "back"
)

// Normalize maps a trimmed, case-insensitive direction token to a canonical
// direction, resolving relative terms (left/right/forward/back) against
// heading when one is supplied. Pure function; no state.
func Normalize(rawToken string, heading *domain.Direction) Result {
	token := strings.ToLower(strings.TrimSpace(rawToken))
	if token == "" {
		return Result{Status: StatusUnknown, Clarification: "say a direction, e.g. north or in"}
	}

	if canonical, ok := tokenAliases[token]; ok {
		return Result{Status: StatusOK, Canonical: canonical}
	}

	switch token {
	case relLeft, relRight, relForward, relBack:
		return resolveRelative(token, heading)
	default:
		return Result{Status: StatusUnknown, Clarification: fmt.Sprintf("%q is not a direction I understand", rawToken)}
	}
}

func resolveRelative(token string, heading *domain.Direction) Result {
	if heading == nil {
		return Result{
			Status:        StatusAmbiguous,
			Clarification: fmt.Sprintf("you have no heading yet — try a canonical direction like %s or %s", domain.North, domain.In),
		}
	}

	h := *heading
	if idx, planar := planarIndex[h]; planar {
		switch token {
		case relForward:
			return Result{Status: StatusOK, Canonical: h}
		case relBack:
			return Result{Status: StatusOK, Canonical: planarRing[(idx+4)%8]}
		case relRight:
			return Result{Status: StatusOK, Canonical: planarRing[(idx+2)%8]}
		case relLeft:
			return Result{Status: StatusOK, Canonical: planarRing[(idx+6)%8]}
		}
	}

	// Vertical/radial headings: forward/back pass through via the opposite
	// table, left/right have no meaning.
	if opp, ok := domain.Opposite[h]; ok {
		switch token {
		case relForward:
			return Result{Status: StatusOK, Canonical: h}
		case relBack:
			return Result{Status: StatusOK, Canonical: opp}
		case relLeft, relRight:
			return Result{
				Status:        StatusAmbiguous,
				Clarification: fmt.Sprintf("left/right don't apply while heading %s — try forward or back", h),
			}
		}
	}

	return Result{Status: StatusUnknown, Clarification: fmt.Sprintf("unrecognized heading %q", string(h))}
}
