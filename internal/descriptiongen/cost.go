package descriptiongen

import (
	"context"
	"sync"
	"time"

	"github.com/piquet-h/worldengine/internal/metrics"
	"github.com/piquet-h/worldengine/internal/telemetry"
)

// RatePerThousandTokens maps a model id to the estimated USD cost of a
// thousand tokens; the "default" entry applies to any model not listed
// here. §9's cost aggregation only needs a
// ballpark estimate to drive the soft-threshold alert, not a billing-
// grade figure.
var RatePerThousandTokens = map[string]float64{
	"default": 0.002,
}

func rateFor(modelID string) float64 {
	if r, ok := RatePerThousandTokens[modelID]; ok {
		return r
	}
	return RatePerThousandTokens["default"]
}

// hourBucket accumulates one (modelID, hourStart) window's usage.
type hourBucket struct {
	tokens       int
	estimatedUSD float64
}

// CostAggregator implements §9's AI cost aggregation: hourly-bucketed
// (modelId, hourStart) counters of token usage and estimated spend,
// recorded to Prometheus on every Record call and summarized to the
// telemetry sink when FlushWindow rolls a window over, with a
// soft-threshold alert when a window's estimate reaches SoftThresholdUSD.
type CostAggregator struct {
	Metrics          *metrics.Metrics
	Sink             telemetry.Sink
	SoftThresholdUSD float64

	mu       sync.Mutex
	buckets  map[string]map[string]*hourBucket // modelID -> hourStart -> bucket
	alerted  map[string]bool                   // modelID+hourStart already alerted this window
}

// NewCostAggregator returns an aggregator ready to record usage.
func NewCostAggregator(m *metrics.Metrics, sink telemetry.Sink, softThresholdUSD float64) *CostAggregator {
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	return &CostAggregator{
		Metrics:          m,
		Sink:             sink,
		SoftThresholdUSD: softThresholdUSD,
		buckets:          make(map[string]map[string]*hourBucket),
		alerted:          make(map[string]bool),
	}
}

// hourStart floors t to the start of its UTC hour, per §9's
// (modelId, hourStart) bucket key.
func hourStart(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format(time.RFC3339)
}

// Record adds a generation call's token usage to its (modelID, hour)
// bucket, emits AI.Cost.Estimated, records the Prometheus counters, and
// emits AI.Cost.SoftThresholdCrossed the first time a window's running
// estimate reaches or exceeds SoftThresholdUSD.
func (a *CostAggregator) Record(ctx context.Context, modelID string, tokens int, now time.Time) {
	hour := hourStart(now)
	estimatedUSD := float64(tokens) / 1000 * rateFor(modelID)

	a.mu.Lock()
	byHour, ok := a.buckets[modelID]
	if !ok {
		byHour = make(map[string]*hourBucket)
		a.buckets[modelID] = byHour
	}
	b, ok := byHour[hour]
	if !ok {
		b = &hourBucket{}
		byHour[hour] = b
	}
	b.tokens += tokens
	b.estimatedUSD += estimatedUSD
	windowTotal := b.estimatedUSD

	alertKey := modelID + "|" + hour
	shouldAlert := a.SoftThresholdUSD > 0 && windowTotal >= a.SoftThresholdUSD && !a.alerted[alertKey]
	if shouldAlert {
		a.alerted[alertKey] = true
	}
	a.mu.Unlock()

	if a.Metrics != nil {
		a.Metrics.RecordAICost(modelID, estimatedUSD, tokens, hour)
	}

	_ = a.Sink.Emit(ctx, telemetry.Event{
		Name:        telemetry.ValidateEventName(telemetry.EventAICostEstimated),
		OccurredUtc: time.Now().UTC(),
		Fields: map[string]any{
			"modelId": modelID, "tokens": tokens, "estimatedUsd": estimatedUSD, "hourStart": hour,
		},
	})

	if shouldAlert {
		_ = a.Sink.Emit(ctx, telemetry.Event{
			Name:        telemetry.ValidateEventName(telemetry.EventAICostSoftThresholdCrossed),
			OccurredUtc: time.Now().UTC(),
			Fields: map[string]any{
				"modelId": modelID, "hourStart": hour, "windowEstimatedUsd": windowTotal, "thresholdUsd": a.SoftThresholdUSD,
			},
		})
	}
}

// WindowSummary reports a (modelID, hourStart) window's running totals,
// used by FlushWindow to build the AI.Cost.WindowSummary payload.
type WindowSummary struct {
	ModelID      string
	HourStart    string
	Tokens       int
	EstimatedUSD float64
}

// FlushWindow emits AI.Cost.WindowSummary for every bucket strictly
// before the current hour and discards them, bounding memory growth the
// way a scheduled rollover job would (§9's named periodic task pattern).
func (a *CostAggregator) FlushWindow(ctx context.Context, now time.Time) []WindowSummary {
	current := hourStart(now)

	a.mu.Lock()
	var flushed []WindowSummary
	for modelID, byHour := range a.buckets {
		for hour, b := range byHour {
			if hour >= current {
				continue
			}
			flushed = append(flushed, WindowSummary{ModelID: modelID, HourStart: hour, Tokens: b.tokens, EstimatedUSD: b.estimatedUSD})
			delete(byHour, hour)
			delete(a.alerted, modelID+"|"+hour)
		}
		if len(byHour) == 0 {
			delete(a.buckets, modelID)
		}
	}
	a.mu.Unlock()

	for _, w := range flushed {
		_ = a.Sink.Emit(ctx, telemetry.Event{
			Name:        telemetry.ValidateEventName(telemetry.EventAICostWindowSummary),
			OccurredUtc: time.Now().UTC(),
			Fields: map[string]any{
				"modelId": w.ModelID, "hourStart": w.HourStart, "tokens": w.Tokens, "estimatedUsd": w.EstimatedUSD,
			},
		})
	}

	return flushed
}
