// Package metrics provides Prometheus metrics for the world engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric the world engine's components record.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Move pipeline (C8)
	MoveOperationsTotal   *prometheus.CounterVec
	MoveOperationDuration *prometheus.HistogramVec

	// World clock (C4)
	WorldClockAdvancesTotal prometheus.Counter
	WorldClockCurrentTick   prometheus.Gauge

	// Location clocks (C5)
	LocationClockSyncsTotal   *prometheus.CounterVec
	LocationClockDriftSeconds prometheus.Histogram

	// World event log (C7)
	EventLogDepth          *prometheus.GaugeVec
	EventLogEventsTotal    *prometheus.CounterVec
	EventLogDeadLettered   prometheus.Counter
	EventLogDuplicatesHit  prometheus.Counter

	// Exit-hint debouncer (C10)
	DebounceSuppressedTotal prometheus.Counter
	DebounceEmittedTotal    prometheus.Counter

	// Area generation orchestrator (C9)
	AreaGenEnqueuedTotal  *prometheus.CounterVec
	AreaGenClampedTotal   prometheus.Counter
	AreaGenDuplicateTotal prometheus.Counter

	// Description layer store / integrity job (C6)
	DescriptionCacheHitsTotal    prometheus.Counter
	DescriptionCacheMissesTotal  prometheus.Counter
	DescriptionIntegrityDuration prometheus.Histogram
	DescriptionIntegrityMismatch prometheus.Counter

	// AI cost aggregation (§9)
	AICostEstimatedTotal *prometheus.CounterVec
	AICostWindowTokens   *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "worldengine"
	}

	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		MoveOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "move_operations_total",
				Help:      "Total number of move pipeline invocations by outcome",
			},
			[]string{"outcome"}, // success, blocked, ambiguous, unknown_token, generate_signal, error
		),
		MoveOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "move_operation_duration_seconds",
				Help:      "Move pipeline duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"outcome"},
		),

		WorldClockAdvancesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "world_clock_advances_total",
				Help:      "Total number of world clock tick advances",
			},
		),
		WorldClockCurrentTick: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "world_clock_current_tick",
				Help:      "Current world clock tick value",
			},
		),

		LocationClockSyncsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_clock_syncs_total",
				Help:      "Total number of location clock sync operations",
			},
			[]string{"mode"}, // single, batch
		),
		LocationClockDriftSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "location_clock_drift_seconds",
				Help:      "Observed drift between a location clock and the world clock at sync time",
				Buckets:   []float64{0, .1, .5, 1, 2, 5, 10, 30, 60},
			},
		),

		EventLogDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_log_depth",
				Help:      "Number of world events currently at a given status",
			},
			[]string{"status"},
		),
		EventLogEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_log_events_total",
				Help:      "Total number of world events created, by event type",
			},
			[]string{"event_type"},
		),
		EventLogDeadLettered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_log_dead_lettered_total",
				Help:      "Total number of world events moved to dead_lettered",
			},
		),
		EventLogDuplicatesHit: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_log_duplicates_total",
				Help:      "Total number of Create calls rejected or short-circuited by idempotency key",
			},
		),

		DebounceSuppressedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "debounce_suppressed_total",
				Help:      "Total number of exit-hint emissions suppressed within the debounce window",
			},
		),
		DebounceEmittedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "debounce_emitted_total",
				Help:      "Total number of exit-hint emissions allowed through the debouncer",
			},
		),

		AreaGenEnqueuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "areagen_enqueued_total",
				Help:      "Total number of area generation requests enqueued, by terrain",
			},
			[]string{"terrain"},
		),
		AreaGenClampedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "areagen_budget_clamped_total",
				Help:      "Total number of area generation requests whose budget was clamped",
			},
		),
		AreaGenDuplicateTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "areagen_duplicate_total",
				Help:      "Total number of area generation requests suppressed as duplicates",
			},
		),

		DescriptionCacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "description_cache_hits_total",
				Help:      "Total number of description layer cache hits",
			},
		),
		DescriptionCacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "description_cache_misses_total",
				Help:      "Total number of description layer cache misses",
			},
		),
		DescriptionIntegrityDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "description_integrity_job_duration_seconds",
				Help:      "Duration of a description layer integrity job batch",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		DescriptionIntegrityMismatch: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "description_integrity_mismatch_total",
				Help:      "Total number of description layer integrity hash mismatches",
			},
		),

		AICostEstimatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_cost_estimated_usd_total",
				Help:      "Estimated cumulative AI generation cost in USD, by model",
			},
			[]string{"model_id"},
		),
		AICostWindowTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_cost_window_tokens_total",
				Help:      "Tokens consumed by AI generation, by model and hour bucket",
			},
			[]string{"model_id", "hour_start"},
		),
	}
}

// defaultMetrics is the package-level instance returned by Default.
var defaultMetrics *Metrics

// Default returns the default metrics instance, creating it if needed.
func Default() *Metrics {
	if defaultMetrics == nil {
		defaultMetrics = New("worldengine")
	}
	return defaultMetrics
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordMove records a move pipeline invocation.
func (m *Metrics) RecordMove(outcome string, duration float64) {
	m.MoveOperationsTotal.WithLabelValues(outcome).Inc()
	m.MoveOperationDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordWorldClockAdvance records a world clock tick advance.
func (m *Metrics) RecordWorldClockAdvance(currentTick int64) {
	m.WorldClockAdvancesTotal.Inc()
	m.WorldClockCurrentTick.Set(float64(currentTick))
}

// RecordLocationClockSync records a location clock sync, single or batch.
func (m *Metrics) RecordLocationClockSync(mode string, driftSeconds float64) {
	m.LocationClockSyncsTotal.WithLabelValues(mode).Inc()
	m.LocationClockDriftSeconds.Observe(driftSeconds)
}

// SetEventLogDepth sets the current event count at a status.
func (m *Metrics) SetEventLogDepth(status string, count int64) {
	m.EventLogDepth.WithLabelValues(status).Set(float64(count))
}

// RecordEventCreated records a world event creation by event type.
func (m *Metrics) RecordEventCreated(eventType string) {
	m.EventLogEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordEventDeadLettered records a world event reaching dead_lettered.
func (m *Metrics) RecordEventDeadLettered() {
	m.EventLogDeadLettered.Inc()
}

// RecordEventDuplicate records a Create call short-circuited by idempotency key.
func (m *Metrics) RecordEventDuplicate() {
	m.EventLogDuplicatesHit.Inc()
}

// RecordDebounceDecision records whether ShouldEmit suppressed or allowed a hint.
func (m *Metrics) RecordDebounceDecision(emitted bool) {
	if emitted {
		m.DebounceEmittedTotal.Inc()
	} else {
		m.DebounceSuppressedTotal.Inc()
	}
}

// RecordAreaGenEnqueued records an area generation request enqueued for terrain.
func (m *Metrics) RecordAreaGenEnqueued(terrain string) {
	m.AreaGenEnqueuedTotal.WithLabelValues(terrain).Inc()
}

// RecordAreaGenClamped records an area generation request whose budget was clamped.
func (m *Metrics) RecordAreaGenClamped() {
	m.AreaGenClampedTotal.Inc()
}

// RecordAreaGenDuplicate records an area generation request suppressed as a duplicate.
func (m *Metrics) RecordAreaGenDuplicate() {
	m.AreaGenDuplicateTotal.Inc()
}

// RecordDescriptionCache records a description layer cache hit or miss.
func (m *Metrics) RecordDescriptionCache(hit bool) {
	if hit {
		m.DescriptionCacheHitsTotal.Inc()
	} else {
		m.DescriptionCacheMissesTotal.Inc()
	}
}

// RecordIntegrityJob records one integrity job batch's duration.
func (m *Metrics) RecordIntegrityJob(durationSeconds float64) {
	m.DescriptionIntegrityDuration.Observe(durationSeconds)
}

// RecordIntegrityMismatch records an integrity hash mismatch.
func (m *Metrics) RecordIntegrityMismatch() {
	m.DescriptionIntegrityMismatch.Inc()
}

// RecordAICost records estimated cost and token usage for a generation call,
// bucketed into the hour containing hourStart (§9 AI cost aggregation).
func (m *Metrics) RecordAICost(modelID string, estimatedUSD float64, tokens int, hourStart string) {
	m.AICostEstimatedTotal.WithLabelValues(modelID).Add(estimatedUSD)
	m.AICostWindowTokens.WithLabelValues(modelID, hourStart).Add(float64(tokens))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
