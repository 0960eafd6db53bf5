package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "http_requests_total", Help: "h"},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: "test", Name: "http_request_duration_seconds", Help: "h"},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "test", Name: "http_requests_in_flight", Help: "h"},
		),
		MoveOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "move_operations_total", Help: "h"},
			[]string{"outcome"},
		),
		MoveOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: "test", Name: "move_operation_duration_seconds", Help: "h"},
			[]string{"outcome"},
		),
		WorldClockAdvancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "world_clock_advances_total", Help: "h"},
		),
		WorldClockCurrentTick: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "test", Name: "world_clock_current_tick", Help: "h"},
		),
		LocationClockSyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "location_clock_syncs_total", Help: "h"},
			[]string{"mode"},
		),
		LocationClockDriftSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: "test", Name: "location_clock_drift_seconds", Help: "h"},
		),
		EventLogDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: "test", Name: "event_log_depth", Help: "h"},
			[]string{"status"},
		),
		EventLogEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "event_log_events_total", Help: "h"},
			[]string{"event_type"},
		),
		EventLogDeadLettered: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "event_log_dead_lettered_total", Help: "h"},
		),
		EventLogDuplicatesHit: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "event_log_duplicates_total", Help: "h"},
		),
		DebounceSuppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "debounce_suppressed_total", Help: "h"},
		),
		DebounceEmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "debounce_emitted_total", Help: "h"},
		),
		AreaGenEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "areagen_enqueued_total", Help: "h"},
			[]string{"terrain"},
		),
		AreaGenClampedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "areagen_budget_clamped_total", Help: "h"},
		),
		AreaGenDuplicateTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "areagen_duplicate_total", Help: "h"},
		),
		DescriptionCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "description_cache_hits_total", Help: "h"},
		),
		DescriptionCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "description_cache_misses_total", Help: "h"},
		),
		DescriptionIntegrityDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: "test", Name: "description_integrity_job_duration_seconds", Help: "h"},
		),
		DescriptionIntegrityMismatch: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "test", Name: "description_integrity_mismatch_total", Help: "h"},
		),
		AICostEstimatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "ai_cost_estimated_usd_total", Help: "h"},
			[]string{"model_id"},
		),
		AICostWindowTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "test", Name: "ai_cost_window_tokens_total", Help: "h"},
			[]string{"model_id", "hour_start"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.MoveOperationsTotal, m.MoveOperationDuration,
		m.WorldClockAdvancesTotal, m.WorldClockCurrentTick,
		m.LocationClockSyncsTotal, m.LocationClockDriftSeconds,
		m.EventLogDepth, m.EventLogEventsTotal, m.EventLogDeadLettered, m.EventLogDuplicatesHit,
		m.DebounceSuppressedTotal, m.DebounceEmittedTotal,
		m.AreaGenEnqueuedTotal, m.AreaGenClampedTotal, m.AreaGenDuplicateTotal,
		m.DescriptionCacheHitsTotal, m.DescriptionCacheMissesTotal,
		m.DescriptionIntegrityDuration, m.DescriptionIntegrityMismatch,
		m.AICostEstimatedTotal, m.AICostWindowTokens,
	)

	return m
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/api/location", 200, 0.05)
	m.RecordHTTPRequest("POST", "/api/player/move", 200, 0.1)
	m.RecordHTTPRequest("GET", "/api/location", 500, 0.2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/location", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/player/move", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/location", "5xx")))
}

func TestMetrics_RecordMove(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordMove("success", 0.01)
	m.RecordMove("blocked", 0.02)
	m.RecordMove("success", 0.015)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.MoveOperationsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MoveOperationsTotal.WithLabelValues("blocked")))
}

func TestMetrics_RecordWorldClockAdvance(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordWorldClockAdvance(5)
	m.RecordWorldClockAdvance(6)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.WorldClockAdvancesTotal))
	assert.Equal(t, float64(6), testutil.ToFloat64(m.WorldClockCurrentTick))
}

func TestMetrics_RecordLocationClockSync(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLocationClockSync("single", 0.5)
	m.RecordLocationClockSync("batch", 1.2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LocationClockSyncsTotal.WithLabelValues("single")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LocationClockSyncsTotal.WithLabelValues("batch")))
}

func TestMetrics_SetEventLogDepth(t *testing.T) {
	m := newTestMetrics(t)

	m.SetEventLogDepth("pending", 12)
	m.SetEventLogDepth("dead_lettered", 3)

	assert.Equal(t, float64(12), testutil.ToFloat64(m.EventLogDepth.WithLabelValues("pending")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.EventLogDepth.WithLabelValues("dead_lettered")))
}

func TestMetrics_RecordEventCreated(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEventCreated("World.Area.GenerationRequested")
	m.RecordEventCreated("World.Area.GenerationRequested")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventLogEventsTotal.WithLabelValues("World.Area.GenerationRequested")))
}

func TestMetrics_RecordEventDeadLetteredAndDuplicate(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEventDeadLettered()
	m.RecordEventDuplicate()
	m.RecordEventDuplicate()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventLogDeadLettered))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventLogDuplicatesHit))
}

func TestMetrics_RecordDebounceDecision(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDebounceDecision(true)
	m.RecordDebounceDecision(false)
	m.RecordDebounceDecision(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DebounceEmittedTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DebounceSuppressedTotal))
}

func TestMetrics_RecordAreaGen(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAreaGenEnqueued("urban")
	m.RecordAreaGenEnqueued("urban")
	m.RecordAreaGenClamped()
	m.RecordAreaGenDuplicate()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AreaGenEnqueuedTotal.WithLabelValues("urban")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AreaGenClampedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AreaGenDuplicateTotal))
}

func TestMetrics_RecordDescriptionCache(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDescriptionCache(true)
	m.RecordDescriptionCache(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DescriptionCacheHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DescriptionCacheMissesTotal))
}

func TestMetrics_RecordIntegrityJobAndMismatch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordIntegrityJob(1.5)
	m.RecordIntegrityMismatch()

	require.NotNil(t, m.DescriptionIntegrityDuration)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DescriptionIntegrityMismatch))
}

func TestMetrics_RecordAICost(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAICost("gpt-4o-mini", 0.002, 150, "2026-07-31T14:00:00Z")
	m.RecordAICost("gpt-4o-mini", 0.003, 200, "2026-07-31T14:00:00Z")

	assert.InDelta(t, 0.005, testutil.ToFloat64(m.AICostEstimatedTotal.WithLabelValues("gpt-4o-mini")), 0.0001)
	assert.Equal(t, float64(350), testutil.ToFloat64(m.AICostWindowTokens.WithLabelValues("gpt-4o-mini", "2026-07-31T14:00:00Z")))
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{100, "1xx"},
	}

	for _, tt := range tests {
		result := statusToString(tt.status)
		assert.Equal(t, tt.expected, result)
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	require.NotNil(t, m)

	m2 := Default()
	assert.Equal(t, m, m2)
}
