package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesAllInstruments(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m.MatchedSegments == nil || m.SkippedSegments == nil || m.DroppedChunks == nil ||
		m.MatchScore == nil || m.CycleDuration == nil || m.ActiveSessions == nil ||
		m.HTTPRequestDuration == nil {
		t.Error("NewMetrics left an instrument nil")
	}
}

func TestRecordMatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMatch(ctx, "1", 0.91)
	m.RecordMatch(ctx, "1", 0.73)

	rm := collect(t, reader)

	matched := findMetric(rm, "versecast.segments.matched")
	if matched == nil {
		t.Fatal("versecast.segments.matched not found")
	}
	sum, ok := matched.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("matched data = %#v", matched.Data)
	}
	if sum.DataPoints[0].Value != 2 {
		t.Errorf("matched count = %d, want 2", sum.DataPoints[0].Value)
	}

	score := findMetric(rm, "versecast.match.score")
	if score == nil {
		t.Fatal("versecast.match.score not found")
	}
	hist, ok := score.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("score data = %#v", score.Data)
	}
	if hist.DataPoints[0].Count != 2 {
		t.Errorf("score samples = %d, want 2", hist.DataPoints[0].Count)
	}
}

func TestRecordSkips(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordSkips(context.Background(), "1", 3)

	rm := collect(t, reader)
	skipped := findMetric(rm, "versecast.segments.skipped")
	if skipped == nil {
		t.Fatal("versecast.segments.skipped not found")
	}
	sum, ok := skipped.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("skipped data = %#v", skipped.Data)
	}
	if sum.DataPoints[0].Value != 3 {
		t.Errorf("skipped count = %d, want 3", sum.DataPoints[0].Value)
	}
}
