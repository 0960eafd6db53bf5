package areagen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/eventlog"
	"github.com/piquet-h/worldengine/internal/graph"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

func newOrchestrator(t *testing.T) (*Orchestrator, graph.Store, eventlog.Store) {
	t.Helper()
	g := graph.NewMemoryStore()
	ev := eventlog.NewMemoryStore()
	_, err := g.Upsert(context.Background(), domain.Location{ID: domain.StarterLocationID, Name: "Starter"})
	require.NoError(t, err)
	return &Orchestrator{Graph: g, Events: ev, MaxBudgetLocations: 20}, g, ev
}

func TestOrchestrate_DefaultsAnchorToStarterLocation(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeWilderness, BudgetLocations: 5}, "c1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.StarterLocationID, result.AnchorLocationID)
	assert.Equal(t, 1, result.EnqueuedCount)
}

func TestOrchestrate_RejectsNonUUIDAnchor(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	_, err := o.Orchestrate(context.Background(), Request{AnchorLocationID: "not-a-uuid", Mode: ModeUrban, BudgetLocations: 5}, "c1", time.Now())
	var valErr *worlderr.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestOrchestrate_MissingAnchorIsLocationNotFound(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	missing := "11111111-1111-4111-8111-111111111111"
	_, err := o.Orchestrate(context.Background(), Request{AnchorLocationID: missing, Mode: ModeUrban, BudgetLocations: 5}, "c1", time.Now())
	var nfErr *worlderr.LocationNotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestOrchestrate_ClampsBudgetBelowOne(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeUrban, BudgetLocations: 0}, "c1", time.Now())
	require.NoError(t, err)
	assert.True(t, result.Clamped)
}

func TestOrchestrate_ClampsBudgetAboveMax(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeUrban, BudgetLocations: 1000}, "c1", time.Now())
	require.NoError(t, err)
	assert.True(t, result.Clamped)
	assert.Equal(t, 20, o.maxBudget())
}

func TestOrchestrate_BudgetWithinRangeIsNotClamped(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeUrban, BudgetLocations: 10}, "c1", time.Now())
	require.NoError(t, err)
	assert.False(t, result.Clamped)
}

func TestOrchestrate_ExplicitModeBypassesAutoDerivation(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeUrban, BudgetLocations: 5}, "c1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "urban", result.Terrain)
}

func TestOrchestrate_AutoModeDerivesWildernessForSparseAnchor(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeAuto, BudgetLocations: 5}, "c1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "wilderness", result.Terrain)
}

func TestOrchestrate_AutoModeDerivesUrbanForDenseAnchor(t *testing.T) {
	o, g, _ := newOrchestrator(t)
	_, err := g.Upsert(context.Background(), domain.Location{
		ID:   domain.StarterLocationID,
		Name: "Starter",
		Exits: []domain.Exit{
			{Direction: domain.North, ToLocationID: "a"},
			{Direction: domain.South, ToLocationID: "b"},
			{Direction: domain.East, ToLocationID: "c"},
			{Direction: domain.West, ToLocationID: "d"},
		},
	})
	require.NoError(t, err)

	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeAuto, BudgetLocations: 5}, "c1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "urban", result.Terrain)
}

func TestOrchestrate_CallerSuppliedIdempotencyKeyIsPreserved(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	result, err := o.Orchestrate(context.Background(), Request{Mode: ModeUrban, BudgetLocations: 5, IdempotencyKey: "custom-key"}, "c1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "custom-key", result.IdempotencyKey)
}

func TestOrchestrate_DerivedIdempotencyKeyIsStableForSameInputs(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	now := time.Now()
	r1, err := o.Orchestrate(context.Background(), Request{Mode: ModeUrban, BudgetLocations: 5, RealmHints: []string{"b", "a"}}, "c1", now)
	require.NoError(t, err)

	key := deriveIdempotencyKey(domain.StarterLocationID, ModeUrban, 5, []string{"a", "b"})
	assert.Equal(t, key, r1.IdempotencyKey)
}

func TestOrchestrate_DuplicateIdempotencyKeySuppressesSecondEnqueue(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	first, err := o.Orchestrate(ctx, Request{Mode: ModeUrban, BudgetLocations: 5, IdempotencyKey: "dup-key"}, "c1", time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, first.EnqueuedCount)

	second, err := o.Orchestrate(ctx, Request{Mode: ModeUrban, BudgetLocations: 5, IdempotencyKey: "dup-key"}, "c2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, second.EnqueuedCount)
}

func TestOrchestrate_DeadLetteredEnvelopeDoesNotSuppressRetry(t *testing.T) {
	o, _, ev := newOrchestrator(t)
	ctx := context.Background()

	first, err := o.Orchestrate(ctx, Request{Mode: ModeUrban, BudgetLocations: 5, IdempotencyKey: "retry-key"}, "c1", time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, first.EnqueuedCount)

	existing, err := ev.GetByIdempotencyKey(ctx, "retry-key")
	require.NoError(t, err)
	require.NotNil(t, existing)

	_, err = ev.UpdateStatus(ctx, existing.ScopeKey, existing.ID, eventlog.StatusFailed, nil, nil)
	require.NoError(t, err)
	_, err = ev.UpdateStatus(ctx, existing.ScopeKey, existing.ID, eventlog.StatusDeadLettered, nil, nil)
	require.NoError(t, err)

	second, err := o.Orchestrate(ctx, Request{Mode: ModeUrban, BudgetLocations: 5, IdempotencyKey: "retry-key"}, "c2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, second.EnqueuedCount, "a dead-lettered prior attempt must not suppress a fresh enqueue")
}
