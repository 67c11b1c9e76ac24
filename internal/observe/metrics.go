// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics and the provider setup that bridges them to a
// Prometheus /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/versecast"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// MatchedSegments counts accepted segment matches per document.
	// Use with attribute.String("document_id", ...).
	MatchedSegments metric.Int64Counter

	// SkippedSegments counts segments passed over by catch-up jumps.
	SkippedSegments metric.Int64Counter

	// DroppedChunks counts recognition chunks discarded because a
	// session queue was full.
	DroppedChunks metric.Int64Counter

	// MatchScore records the winning candidate's score per cycle.
	MatchScore metric.Float64Histogram

	// CycleDuration tracks one processing cycle's latency.
	CycleDuration metric.Float64Histogram

	// ActiveSessions tracks the number of connected live sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// cycleBuckets defines histogram bucket boundaries (in seconds) sized for
// per-chunk alignment work.
var cycleBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
}

// scoreBuckets covers the normalized similarity range.
var scoreBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation
// fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.MatchedSegments, err = m.Int64Counter("versecast.segments.matched",
		metric.WithDescription("Total accepted segment matches by document."),
	); err != nil {
		return nil, err
	}
	if met.SkippedSegments, err = m.Int64Counter("versecast.segments.skipped",
		metric.WithDescription("Total segments passed over by catch-up jumps."),
	); err != nil {
		return nil, err
	}
	if met.DroppedChunks, err = m.Int64Counter("versecast.chunks.dropped",
		metric.WithDescription("Total recognition chunks dropped on full session queues."),
	); err != nil {
		return nil, err
	}

	if met.MatchScore, err = m.Float64Histogram("versecast.match.score",
		metric.WithDescription("Winning candidate score per processing cycle."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CycleDuration, err = m.Float64Histogram("versecast.cycle.duration",
		metric.WithDescription("Latency of one chunk processing cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cycleBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("versecast.active_sessions",
		metric.WithDescription("Number of connected live sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("versecast.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen
// with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordMatch records an accepted match with its score.
func (m *Metrics) RecordMatch(ctx context.Context, documentID string, score float64) {
	attrs := metric.WithAttributes(attribute.String("document_id", documentID))
	m.MatchedSegments.Add(ctx, 1, attrs)
	m.MatchScore.Record(ctx, score, attrs)
}

// RecordSkips records segments passed over by one catch-up jump.
func (m *Metrics) RecordSkips(ctx context.Context, documentID string, n int) {
	m.SkippedSegments.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("document_id", documentID)),
	)
}
