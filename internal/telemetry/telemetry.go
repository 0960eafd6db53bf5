// Package telemetry implements the correlation and telemetry envelope
// (component C11): correlation id propagation, a closed event-name
// registry, and handler wrapping with timing and success/error emission.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventName is a value drawn from the closed registry in §6. Callers never
// construct arbitrary strings; ValidateEventName rejects anything outside
// the registry.
type EventName string

// Closed event registry (§6, non-exhaustive but fixed per this core).
const (
	EventPingInvoked EventName = "Ping.Invoked"

	EventOnboardingGuestGuidStarted   EventName = "Onboarding.GuestGuid.Started"
	EventOnboardingGuestGuidCreated   EventName = "Onboarding.GuestGuid.Created"
	EventOnboardingGuestGuidCompleted EventName = "Onboarding.GuestGuid.Completed"

	EventPlayerGet     EventName = "Player.Get"
	EventPlayerCreated EventName = "Player.Created"

	EventLocationGet  EventName = "Location.Get"
	EventLocationMove EventName = "Location.Move"

	EventNavigationInputParsed        EventName = "Navigation.Input.Parsed"
	EventNavigationInputAmbiguous     EventName = "Navigation.Input.Ambiguous"
	EventNavigationMoveSuccess        EventName = "Navigation.Move.Success"
	EventNavigationMoveBlocked        EventName = "Navigation.Move.Blocked"
	EventNavigationLookIssued         EventName = "Navigation.Look.Issued"
	EventNavigationExitGenerationReq  EventName = "Navigation.Exit.GenerationRequested"

	EventWorldLocationGenerated   EventName = "World.Location.Generated"
	EventWorldLocationUpsert      EventName = "World.Location.Upsert"
	EventWorldLayerAdded          EventName = "World.Layer.Added"
	EventWorldExitCreated         EventName = "World.Exit.Created"
	EventWorldExitRemoved         EventName = "World.Exit.Removed"
	EventWorldEventProcessed      EventName = "World.Event.Processed"
	EventWorldEventDuplicate      EventName = "World.Event.Duplicate"
	EventWorldEventDeadLettered   EventName = "World.Event.DeadLettered"
	EventWorldClockAdvanced       EventName = "World.Clock.Advanced"
	EventWorldAreaGenerationReq   EventName = "World.Area.GenerationRequested"

	EventLocationClockInitialized EventName = "Location.Clock.Initialized"
	EventLocationClockSynced      EventName = "Location.Clock.Synced"
	EventLocationClockBatchSynced EventName = "Location.Clock.BatchSynced"

	EventDescriptionGenerateStart   EventName = "Description.Generate.Start"
	EventDescriptionGenerateSuccess EventName = "Description.Generate.Success"
	EventDescriptionGenerateFailure EventName = "Description.Generate.Failure"
	EventDescriptionCacheHit        EventName = "Description.Cache.Hit"
	EventDescriptionCacheMiss       EventName = "Description.Cache.Miss"
	EventDescriptionIntegrityJobStart    EventName = "Description.Integrity.JobStart"
	EventDescriptionIntegrityJobComplete EventName = "Description.Integrity.JobComplete"
	EventDescriptionIntegrityComputed    EventName = "Description.Integrity.Computed"
	EventDescriptionIntegrityUnchanged   EventName = "Description.Integrity.Unchanged"
	EventDescriptionIntegrityMismatch    EventName = "Description.Integrity.Mismatch"

	EventAICostEstimated           EventName = "AI.Cost.Estimated"
	EventAICostWindowSummary       EventName = "AI.Cost.WindowSummary"
	EventAICostSoftThresholdCrossed EventName = "AI.Cost.SoftThresholdCrossed"

	// EventTelemetryEventNameInvalid is substituted for any name outside
	// the registry; the mistyped name is never emitted itself.
	EventTelemetryEventNameInvalid EventName = "Telemetry.EventName.Invalid"
)

var registry = map[EventName]bool{
	EventPingInvoked:                      true,
	EventOnboardingGuestGuidStarted:       true,
	EventOnboardingGuestGuidCreated:       true,
	EventOnboardingGuestGuidCompleted:     true,
	EventPlayerGet:                        true,
	EventPlayerCreated:                    true,
	EventLocationGet:                      true,
	EventLocationMove:                     true,
	EventNavigationInputParsed:            true,
	EventNavigationInputAmbiguous:         true,
	EventNavigationMoveSuccess:            true,
	EventNavigationMoveBlocked:            true,
	EventNavigationLookIssued:             true,
	EventNavigationExitGenerationReq:      true,
	EventWorldLocationGenerated:           true,
	EventWorldLocationUpsert:              true,
	EventWorldLayerAdded:                  true,
	EventWorldExitCreated:                 true,
	EventWorldExitRemoved:                 true,
	EventWorldEventProcessed:              true,
	EventWorldEventDuplicate:              true,
	EventWorldEventDeadLettered:           true,
	EventWorldClockAdvanced:               true,
	EventWorldAreaGenerationReq:           true,
	EventLocationClockInitialized:         true,
	EventLocationClockSynced:              true,
	EventLocationClockBatchSynced:         true,
	EventDescriptionGenerateStart:         true,
	EventDescriptionGenerateSuccess:       true,
	EventDescriptionGenerateFailure:       true,
	EventDescriptionCacheHit:              true,
	EventDescriptionCacheMiss:             true,
	EventDescriptionIntegrityJobStart:     true,
	EventDescriptionIntegrityJobComplete:  true,
	EventDescriptionIntegrityComputed:     true,
	EventDescriptionIntegrityUnchanged:    true,
	EventDescriptionIntegrityMismatch:     true,
	EventAICostEstimated:                  true,
	EventAICostWindowSummary:              true,
	EventAICostSoftThresholdCrossed:       true,
	EventTelemetryEventNameInvalid:        true,
}

// ValidateEventName returns name unchanged if it is in the closed registry,
// otherwise EventTelemetryEventNameInvalid. The mistyped name is never
// itself emitted (§6).
func ValidateEventName(name EventName) EventName {
	if registry[name] {
		return name
	}
	return EventTelemetryEventNameInvalid
}

// Event is one emitted telemetry record.
type Event struct {
	Name            EventName
	CorrelationID   string
	PlayerGuid      string
	Service         string
	LatencyMs       int64
	PersistenceMode string
	OccurredUtc     time.Time
	Fields          map[string]any
}

// Sink is the external telemetry collector port (§2 Out of scope:
// "Telemetry sinks (invoked through an EventSink port)"). Emission must
// never block or fail the caller's pipeline; implementations should not
// return errors that the caller is expected to propagate.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// NoopSink discards every event; the default when no sink is configured.
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) error { return nil }

// ZapSink logs each event as a structured log line. Grounded on the
// teacher's audit.FileLogger constructor-injected *zap.Logger, adapted
// from file-backed audit records to a plain logging sink since this
// domain's EventSink is an external collaborator, not a durable store.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps a logger. A nil logger is replaced with a no-op one.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Name)),
		zap.String("correlationId", event.CorrelationID),
		zap.Int64("latencyMs", event.LatencyMs),
	}
	if event.PlayerGuid != "" {
		fields = append(fields, zap.String("playerGuid", event.PlayerGuid))
	}
	if event.Service != "" {
		fields = append(fields, zap.String("service", event.Service))
	}
	if event.PersistenceMode != "" {
		fields = append(fields, zap.String("persistenceMode", event.PersistenceMode))
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Info("telemetry", fields...)
	return nil
}

var _ Sink = (*ZapSink)(nil)
var _ Sink = NoopSink{}

// NewCorrelationID generates a fresh correlation id (UUID v4 fallback for
// requests arriving without one).
func NewCorrelationID() string { return uuid.NewString() }

// Wrap times fn, then emits successEvent on a nil return or errorEvent
// (with the error message attached to Fields["error"]) otherwise. The
// original error is always returned unchanged — Wrap never swallows it,
// matching §4.11's "re-raising the original error" in a language without
// exceptions. Sink emission failures are logged and swallowed: telemetry
// must never become a reason a request fails.
func Wrap(ctx context.Context, sink Sink, logger *zap.Logger, base Event, successEvent, errorEvent EventName, fn func(ctx context.Context) error) error {
	if sink == nil {
		sink = NoopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	ev := base
	ev.LatencyMs = elapsed.Milliseconds()
	ev.OccurredUtc = time.Now().UTC()

	if err != nil {
		ev.Name = ValidateEventName(errorEvent)
		if ev.Fields == nil {
			ev.Fields = make(map[string]any, 1)
		}
		ev.Fields["error"] = err.Error()
	} else {
		ev.Name = ValidateEventName(successEvent)
	}

	if emitErr := sink.Emit(ctx, ev); emitErr != nil {
		logger.Warn("telemetry sink emit failed",
			zap.String("event", string(ev.Name)),
			zap.String("correlationId", ev.CorrelationID),
			zap.Error(emitErr),
		)
	}

	return err
}
