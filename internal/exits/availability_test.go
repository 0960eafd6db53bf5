package exits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piquet-h/worldengine/internal/domain"
)

func TestBuildArray_Order(t *testing.T) {
	exitList := []domain.Exit{
		{Direction: domain.Southwest, ToLocationID: "l-sw"},
		{Direction: domain.North, ToLocationID: "l-n"},
	}
	meta := &domain.ExitMetadata{
		Pending:   map[domain.Direction]string{domain.In: "awaiting generation"},
		Forbidden: map[domain.Direction]string{domain.Up: "sealed"},
	}

	got, warnings := BuildArray(exitList, meta)
	require.Empty(t, warnings)
	require.Len(t, got, 4)
	assert.Equal(t, domain.North, got[0].Direction)
	assert.Equal(t, domain.Southwest, got[1].Direction)
	assert.Equal(t, domain.Up, got[2].Direction)
	assert.Equal(t, domain.In, got[3].Direction)
	assert.Equal(t, domain.AvailabilityForbidden, got[2].Availability)
	assert.Equal(t, domain.AvailabilityPending, got[3].Availability)
}

func TestDetermine_HardBeatsForbiddenAndPending(t *testing.T) {
	exitList := []domain.Exit{{Direction: domain.North, ToLocationID: "l-n"}}
	meta := &domain.ExitMetadata{Forbidden: map[domain.Direction]string{domain.North: "stale rule"}}

	info, warning, ok := Determine(domain.North, exitList, meta)
	require.True(t, ok)
	assert.Equal(t, domain.AvailabilityHard, info.Availability)
	require.NotNil(t, warning)
	assert.Equal(t, domain.AvailabilityForbidden, warning.Conflict)
}

func TestDetermine_ForbiddenBeatsPending(t *testing.T) {
	meta := &domain.ExitMetadata{
		Forbidden: map[domain.Direction]string{domain.East: "walled off"},
		Pending:   map[domain.Direction]string{domain.East: "queued"},
	}
	info, warning, ok := Determine(domain.East, nil, meta)
	require.True(t, ok)
	assert.Nil(t, warning)
	assert.Equal(t, domain.AvailabilityForbidden, info.Availability)
}

func TestDetermine_Absent(t *testing.T) {
	_, _, ok := Determine(domain.South, nil, nil)
	assert.False(t, ok)
}

func TestBuildArray_NoDuplicateAvailability(t *testing.T) {
	exitList := []domain.Exit{{Direction: domain.North, ToLocationID: "l"}}
	got, _ := BuildArray(exitList, nil)
	seen := map[domain.Direction]int{}
	for _, info := range got {
		seen[info.Direction]++
	}
	for d, count := range seen {
		assert.Equal(t, 1, count, "direction %s appeared more than once", d)
	}
}
