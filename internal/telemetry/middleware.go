package telemetry

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go.opentelemetry.io/otel/trace"
)

// ContextKey namespaces values stored on the gin context, mirroring the
// teacher's audit.ContextKey pattern.
type ContextKey string

const (
	// ContextKeyCorrelationID is the key the correlation id is stored under.
	ContextKeyCorrelationID ContextKey = "correlation_id"

	// HeaderCorrelationID is the inbound/outbound correlation header (§6).
	HeaderCorrelationID = "x-correlation-id"
	// HeaderPlayerGuid carries the caller's player guid when known.
	HeaderPlayerGuid = "x-player-guid"
)

// MiddlewareConfig configures the correlation/telemetry gin middleware.
type MiddlewareConfig struct {
	Sink    Sink
	Service string
	// PersistenceMode is attached to every emitted event (e.g. "memory",
	// "cosmos") so dashboards can be split by backend.
	PersistenceMode string
}

// Middleware stamps every request with a correlation id (generating one
// when absent), propagates the current span's W3C traceparent onto the
// response, and emits a request-scoped telemetry event once the handler
// chain completes. Emission never blocks or fails the response — a sink
// error is swallowed here the same way DeadLetterOnFailure swallows
// storage failures elsewhere in this core.
func Middleware(config MiddlewareConfig) gin.HandlerFunc {
	sink := config.Sink
	if sink == nil {
		sink = NoopSink{}
	}

	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = NewCorrelationID()
		}
		c.Set(string(ContextKeyCorrelationID), correlationID)
		c.Writer.Header().Set(HeaderCorrelationID, correlationID)

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			c.Writer.Header().Set("traceparent", formatTraceparent(span.SpanContext()))
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		event := Event{
			Name:            ValidateEventName(requestEventName(c)),
			CorrelationID:   correlationID,
			PlayerGuid:      c.GetHeader(HeaderPlayerGuid),
			Service:         config.Service,
			LatencyMs:       elapsed.Milliseconds(),
			PersistenceMode: config.PersistenceMode,
			OccurredUtc:     time.Now().UTC(),
			Fields: map[string]any{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"status": c.Writer.Status(),
			},
		}

		_ = sink.Emit(c.Request.Context(), event)
	}
}

// CorrelationID retrieves the correlation id stashed by Middleware,
// generating a fresh one if called outside a request that ran it.
func CorrelationID(c *gin.Context) string {
	if v, ok := c.Get(string(ContextKeyCorrelationID)); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return NewCorrelationID()
}

func formatTraceparent(sc trace.SpanContext) string {
	flags := "00"
	if sc.IsSampled() {
		flags = "01"
	}
	return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + flags
}

// requestEventName maps a path/method pair to the closed registry. Routes
// outside this table fall back through ValidateEventName to
// Telemetry.EventName.Invalid rather than panicking or inventing a name.
func requestEventName(c *gin.Context) EventName {
	path := c.FullPath()
	method := c.Request.Method

	switch {
	case path == "/api/ping":
		return EventPingInvoked
	case path == "/api/player/bootstrap":
		return EventOnboardingGuestGuidCompleted
	case path == "/api/player/get":
		return EventPlayerGet
	case path == "/api/player/move":
		return EventLocationMove
	case path == "/api/location" && method == http.MethodGet:
		return EventLocationGet
	case path == "/api/location/look":
		return EventNavigationLookIssued
	case path == "/api/world/generate-area":
		return EventWorldAreaGenerationReq
	case path == "/api/world/link-rooms":
		return EventWorldExitCreated
	default:
		return EventTelemetryEventNameInvalid
	}
}
