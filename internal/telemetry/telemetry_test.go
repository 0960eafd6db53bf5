package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	events []Event
}

func (s *captureSink) Emit(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return nil
}

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("sink unavailable") }

func TestValidateEventName_KnownNamePassesThrough(t *testing.T) {
	assert.Equal(t, EventLocationMove, ValidateEventName(EventLocationMove))
}

func TestValidateEventName_UnknownNameFallsBackToInvalid(t *testing.T) {
	assert.Equal(t, EventTelemetryEventNameInvalid, ValidateEventName(EventName("Totally.Made.Up")))
}

func TestWrap_EmitsSuccessEventOnNilError(t *testing.T) {
	sink := &captureSink{}
	err := Wrap(context.Background(), sink, nil, Event{CorrelationID: "c1"}, EventLocationMove, EventNavigationMoveBlocked, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventLocationMove, sink.events[0].Name)
	assert.Equal(t, "c1", sink.events[0].CorrelationID)
}

func TestWrap_EmitsErrorEventAndReturnsOriginalError(t *testing.T) {
	sink := &captureSink{}
	sentinel := errors.New("boom")

	err := Wrap(context.Background(), sink, nil, Event{CorrelationID: "c2"}, EventLocationMove, EventNavigationMoveBlocked, func(ctx context.Context) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventNavigationMoveBlocked, sink.events[0].Name)
	assert.Equal(t, "boom", sink.events[0].Fields["error"])
}

func TestWrap_FallsBackToInvalidNameForUnregisteredEventNames(t *testing.T) {
	sink := &captureSink{}
	_ = Wrap(context.Background(), sink, nil, Event{}, EventName("Bogus.Success"), EventName("Bogus.Error"), func(ctx context.Context) error {
		return nil
	})
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventTelemetryEventNameInvalid, sink.events[0].Name)
}

func TestWrap_SwallowsSinkEmitErrors(t *testing.T) {
	err := Wrap(context.Background(), failingSink{}, nil, Event{}, EventLocationGet, EventTelemetryEventNameInvalid, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err, "a sink failure must never surface as the operation's own error")
}

func TestMiddleware_GeneratesCorrelationIDWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &captureSink{}
	router := gin.New()
	router.Use(Middleware(MiddlewareConfig{Sink: sink, Service: "worldengine"}))
	router.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventPingInvoked, sink.events[0].Name)
}

func TestMiddleware_PropagatesInboundCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &captureSink{}
	router := gin.New()
	router.Use(Middleware(MiddlewareConfig{Sink: sink}))
	router.GET("/api/location", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/location", nil)
	req.Header.Set(HeaderCorrelationID, "inbound-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "inbound-123", rec.Header().Get(HeaderCorrelationID))
	require.Len(t, sink.events, 1)
	assert.Equal(t, "inbound-123", sink.events[0].CorrelationID)
	assert.Equal(t, EventLocationGet, sink.events[0].Name)
}

func TestMiddleware_UnregisteredRouteFallsBackToInvalidEventName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &captureSink{}
	router := gin.New()
	router.Use(Middleware(MiddlewareConfig{Sink: sink}))
	router.GET("/api/unmapped", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/unmapped", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventTelemetryEventNameInvalid, sink.events[0].Name)
}
