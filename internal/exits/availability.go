// Package exits implements the exit availability model (component C2):
// classifying each direction at a location as hard, pending, or forbidden,
// and building the outward ExitInfo array in canonical order.
package exits

import (
	"fmt"
	"sort"

	"github.com/piquet-h/worldengine/internal/domain"
)

// IntegrityWarning describes a non-fatal data-integrity conflict detected
// while resolving availability: a hard exit coinciding with forbidden or
// pending metadata for the same direction.
type IntegrityWarning struct {
	Direction domain.Direction
	Conflict  domain.Availability
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("exit %s is hard but also marked %s in metadata", w.Direction, w.Conflict)
}

// Determine applies the hard > forbidden > pending precedence for a single
// direction. ok is false when the direction carries no availability at all.
func Determine(dir domain.Direction, exits []domain.Exit, meta *domain.ExitMetadata) (info domain.ExitInfo, warning *IntegrityWarning, ok bool) {
	var hardExit *domain.Exit
	for i := range exits {
		if exits[i].Direction == dir {
			hardExit = &exits[i]
			break
		}
	}

	var forbiddenReason, pendingReason string
	forbidden, pending := false, false
	if meta != nil {
		if r, present := meta.Forbidden[dir]; present {
			forbidden = true
			forbiddenReason = r
		}
		if r, present := meta.Pending[dir]; present {
			pending = true
			pendingReason = r
		}
	}

	switch {
	case hardExit != nil:
		info = domain.ExitInfo{Direction: dir, Availability: domain.AvailabilityHard, ToLocationID: hardExit.ToLocationID}
		if forbidden {
			warning = &IntegrityWarning{Direction: dir, Conflict: domain.AvailabilityForbidden}
		} else if pending {
			warning = &IntegrityWarning{Direction: dir, Conflict: domain.AvailabilityPending}
		}
		return info, warning, true
	case forbidden:
		return domain.ExitInfo{Direction: dir, Availability: domain.AvailabilityForbidden, Reason: forbiddenReason}, nil, true
	case pending:
		return domain.ExitInfo{Direction: dir, Availability: domain.AvailabilityPending, Reason: pendingReason}, nil, true
	default:
		return domain.ExitInfo{}, nil, false
	}
}

// BuildArray returns the union of hard, forbidden, and pending directions
// for a location, sorted by the canonical exit order, along with any
// integrity warnings collected along the way.
func BuildArray(exitList []domain.Exit, meta *domain.ExitMetadata) ([]domain.ExitInfo, []IntegrityWarning) {
	seen := make(map[domain.Direction]struct{})
	var dirs []domain.Direction

	for _, e := range exitList {
		if _, ok := seen[e.Direction]; !ok {
			seen[e.Direction] = struct{}{}
			dirs = append(dirs, e.Direction)
		}
	}
	if meta != nil {
		for d := range meta.Forbidden {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				dirs = append(dirs, d)
			}
		}
		for d := range meta.Pending {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				dirs = append(dirs, d)
			}
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return domain.Less(dirs[i], dirs[j]) })

	result := make([]domain.ExitInfo, 0, len(dirs))
	var warnings []IntegrityWarning
	for _, d := range dirs {
		info, warn, ok := Determine(d, exitList, meta)
		if !ok {
			continue
		}
		result = append(result, info)
		if warn != nil {
			warnings = append(warnings, *warn)
		}
	}
	return result, warnings
}
