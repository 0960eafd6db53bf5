// Package descriptiongen defines the narrow port through which the world
// engine invokes AI text generation for location and layer descriptions.
// AI generation itself is out of scope (§2 Out of scope): this package
// only specifies the contract a real provider would satisfy and ships a
// noop implementation that callers use by default and in tests.
package descriptiongen

import (
	"context"
	"time"

	"github.com/piquet-h/worldengine/internal/telemetry"
)

// GenerationRequest is the input to a description generation call: the
// location/realm being described, the terrain guidance hint (§Glossary),
// and the model the caller wants routed to.
type GenerationRequest struct {
	LocationID string
	Terrain    string
	Hint       string
	ModelID    string
	MaxTokens  int
}

// GenerationResult is a generation call's output, carrying the token
// usage the cost aggregator needs.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns the combined prompt and completion token count.
func (r GenerationResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// Generator is the port components call through; a wider provider
// interface would expose Complete/Stream/ListModels/Health, but only
// Generate survives here since nothing in this tree routes between
// models, streams tokens, or health-checks a provider roster.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// NoopGenerator returns a canned description without making any outbound
// call. It is the default Generator wired at boot and in every test that
// exercises a caller of this port without needing real text.
type NoopGenerator struct {
	Sink telemetry.Sink
}

var _ Generator = (*NoopGenerator)(nil)

// Generate returns a deterministic placeholder description: req.Hint when
// set, otherwise a fixed sentence. It emits the same Start/Success telemetry pair a real
// provider's call would, so downstream dashboards don't need a special
// case for the noop path.
func (g *NoopGenerator) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	sink := g.Sink
	if sink == nil {
		sink = telemetry.NoopSink{}
	}

	_ = sink.Emit(ctx, telemetry.Event{
		Name:        telemetry.ValidateEventName(telemetry.EventDescriptionGenerateStart),
		OccurredUtc: time.Now().UTC(),
		Fields:      map[string]any{"locationId": req.LocationID, "terrain": req.Terrain},
	})

	text := "A place with no description yet."
	if req.Hint != "" {
		text = req.Hint
	}

	result := GenerationResult{
		Text:             text,
		PromptTokens:     len(req.Hint) / 4,
		CompletionTokens: len(text) / 4,
	}

	_ = sink.Emit(ctx, telemetry.Event{
		Name:        telemetry.ValidateEventName(telemetry.EventDescriptionGenerateSuccess),
		OccurredUtc: time.Now().UTC(),
		Fields:      map[string]any{"locationId": req.LocationID, "tokens": result.TotalTokens()},
	})

	return result, nil
}
