// Package move implements the move pipeline (component C8): resolving a
// player's raw direction input into a canonical location transition,
// orchestrating the direction normalizer, location graph, heading store,
// exit-hint debouncer, and telemetry envelope.
package move

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/piquet-h/worldengine/internal/debounce"
	"github.com/piquet-h/worldengine/internal/direction"
	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/graph"
	"github.com/piquet-h/worldengine/internal/heading"
	"github.com/piquet-h/worldengine/internal/player"
	"github.com/piquet-h/worldengine/internal/telemetry"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// Request is the move pipeline's input, corresponding to
// (fromId?, rawDir, playerGuid?, correlationId) in §4.8.
type Request struct {
	FromID        string
	RawDirection  string
	PlayerGuid    string
	CorrelationID string
}

// GenerationHint accompanies a Generate outcome: the origin and direction a
// world-generation worker should expand.
type GenerationHint struct {
	OriginLocationID string
	Direction        domain.Direction
}

// Outcome is the successful result of Pipeline.Move.
type Outcome struct {
	Location       *graph.MoveResult
	Canonical      domain.Direction
	GenerationHint *GenerationHint
}

// Pipeline wires the collaborators the move pipeline orchestrates. Players
// and Headings may be nil, in which case the player-location update and the
// heading lookup/update are skipped; a move request without a player guid
// (no x-player-guid) skips those side effects as well. A player guid with
// no stored player record moves without creating one.
type Pipeline struct {
	Graph          graph.Store
	Headings       heading.Store
	Debounce       debounce.Store
	Players        player.Store
	Sink           telemetry.Sink
	Logger         *zap.Logger
	DebounceWindow time.Duration
}

func (p *Pipeline) emit(ctx context.Context, name telemetry.EventName, correlationID, playerGuid string, latencyMs int64, fields map[string]any) {
	sink := p.Sink
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	_ = sink.Emit(ctx, telemetry.Event{
		Name:          telemetry.ValidateEventName(name),
		CorrelationID: correlationID,
		PlayerGuid:    playerGuid,
		LatencyMs:     latencyMs,
		OccurredUtc:   time.Now().UTC(),
		Fields:        fields,
	})
}

// Move resolves and, if possible, executes req, following §4.8's numbered
// steps exactly. now is supplied explicitly so debounce-window decisions
// made along the way are deterministic to test.
func (p *Pipeline) Move(ctx context.Context, req Request, now time.Time) (Outcome, error) {
	start := time.Now()
	latency := func() int64 { return time.Since(start).Milliseconds() }

	fromID := req.FromID
	if fromID == "" {
		fromID = domain.StarterLocationID
	}

	var currentHeading *domain.Direction
	if req.PlayerGuid != "" && p.Headings != nil {
		currentHeading = p.Headings.Get(req.PlayerGuid)
	}

	norm := direction.Normalize(req.RawDirection, currentHeading)

	switch norm.Status {
	case direction.StatusAmbiguous:
		p.emit(ctx, telemetry.EventNavigationInputAmbiguous, req.CorrelationID, req.PlayerGuid, latency(), map[string]any{
			"rawInput": req.RawDirection,
		})
		return Outcome{}, &worlderr.AmbiguousDirectionError{Token: req.RawDirection, Clarification: norm.Clarification}

	case direction.StatusUnknown:
		p.emit(ctx, telemetry.EventLocationMove, req.CorrelationID, req.PlayerGuid, latency(), map[string]any{
			"status": 400, "reason": "invalid-direction", "rawInput": req.RawDirection,
		})
		return Outcome{}, &worlderr.ValidationError{Field: "direction", Message: norm.Clarification}
	}

	canonical := norm.Canonical

	from, err := p.Graph.Get(ctx, fromID)
	if err != nil {
		return Outcome{}, &worlderr.InternalError{Operation: "move.graph.get", Cause: err}
	}
	if from == nil {
		return Outcome{}, &worlderr.FromMissingError{LocationID: fromID}
	}

	if !hasHardExit(from.Exits, canonical) {
		emitHint, _ := debounce.ShouldEmit(ctx, p.Debounce, p.Logger, req.PlayerGuid, fromID, string(canonical), p.DebounceWindow, now)
		if emitHint {
			p.emit(ctx, telemetry.EventNavigationExitGenerationReq, req.CorrelationID, req.PlayerGuid, latency(), map[string]any{
				"originLocationId": fromID, "direction": string(canonical),
			})
		}
		return Outcome{
			Canonical:      canonical,
			GenerationHint: &GenerationHint{OriginLocationID: fromID, Direction: canonical},
		}, &worlderr.GenerateSignal{LocationID: fromID, Direction: string(canonical)}
	}

	moved, err := p.Graph.Move(ctx, fromID, canonical)
	if err != nil {
		p.emitMoveFailure(ctx, req, canonical, err, latency())
		return Outcome{}, err
	}

	if req.PlayerGuid != "" {
		if p.Headings != nil {
			p.Headings.Set(req.PlayerGuid, canonical)
		}
		if p.Players != nil {
			if uerr := p.Players.UpdateLocation(ctx, req.PlayerGuid, moved.Location.ID, now); uerr != nil {
				var notFound *worlderr.NotFoundError
				if !errors.As(uerr, &notFound) {
					return Outcome{}, &worlderr.InternalError{Operation: "move.player.updateLocation", Cause: uerr}
				}
			}
		}
	}

	fields := map[string]any{
		"from": fromID, "to": moved.Location.ID, "direction": string(canonical), "status": 200,
	}
	if req.RawDirection != "" {
		fields["rawInput"] = req.RawDirection
	}
	elapsed := latency()
	p.emit(ctx, telemetry.EventLocationMove, req.CorrelationID, req.PlayerGuid, elapsed, fields)
	p.emit(ctx, telemetry.EventNavigationMoveSuccess, req.CorrelationID, req.PlayerGuid, elapsed, fields)

	return Outcome{Location: &moved, Canonical: canonical}, nil
}

// emitMoveFailure maps a graph.Move error to the blocked-move telemetry
// pair per §4.8 step 7/8's status mapping table, without altering the
// error the caller receives.
func (p *Pipeline) emitMoveFailure(ctx context.Context, req Request, canonical domain.Direction, err error, latencyMs int64) {
	status := statusForMoveError(err)
	fields := map[string]any{
		"from": req.FromID, "direction": string(canonical), "status": status,
	}
	p.emit(ctx, telemetry.EventLocationMove, req.CorrelationID, req.PlayerGuid, latencyMs, fields)
	p.emit(ctx, telemetry.EventNavigationMoveBlocked, req.CorrelationID, req.PlayerGuid, latencyMs, fields)
}

// statusForMoveError maps a graph.Move error to the HTTP status table in
// §4.8 step 7: from-missing→404, no-exit→400, target-missing→500.
func statusForMoveError(err error) int {
	switch err.(type) {
	case *worlderr.FromMissingError:
		return 404
	case *worlderr.NoExitError:
		return 400
	case *worlderr.TargetMissingError:
		return 500
	default:
		return 500
	}
}

func hasHardExit(exits []domain.Exit, dir domain.Direction) bool {
	for _, e := range exits {
		if e.Direction == dir {
			return true
		}
	}
	return false
}
