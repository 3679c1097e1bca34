package observe

import (
	"context"
	"errors"
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

// sumFor returns the counter value of the data point whose attribute key
// equals value, or -1 if there is none.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestRecordTranscription(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscription(ctx, "whisper", 0.4, nil)
	m.RecordTranscription(ctx, "whisper", 0.6, nil)
	m.RecordTranscription(ctx, "whisper", 1.2, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumFor(t, rm, "takesplit.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumFor(t, rm, "takesplit.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
	if got := sumFor(t, rm, "takesplit.provider.errors", "provider", "whisper"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}

	met := findMetric(rm, "takesplit.stt.duration")
	if met == nil {
		t.Fatal("stt duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("stt duration is not a histogram")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 3 {
		t.Errorf("stt duration data points = %+v, want one with count 3", hist.DataPoints)
	}
}

func TestRecordAssignmentAndLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAssignment(ctx, "match")
	m.RecordAssignment(ctx, "match")
	m.RecordAssignment(ctx, "UNKNOWN")
	m.RecordLookupStep(ctx, "backtrack")
	m.RecordLookupStep(ctx, "forwardtrack")
	m.RecordLookupStep(ctx, "forwardtrack")

	rm := collect(t, reader)
	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"takesplit.assignments", "kind", "match", 2},
		{"takesplit.assignments", "kind", "UNKNOWN", 1},
		{"takesplit.assignments", "kind", "UNIDENTIFIED", -1},
		{"takesplit.lookup.steps", "direction", "backtrack", 1},
		{"takesplit.lookup.steps", "direction", "forwardtrack", 2},
	}
	for _, tc := range tests {
		if got := sumFor(t, rm, tc.metric, tc.key, tc.value); got != tc.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tc.metric, tc.key, tc.value, got, tc.want)
		}
	}
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordStage(context.Background(), "align", 0.2)

	met := findMetric(collect(t, reader), "takesplit.stage.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Errorf("data points = %+v, want count 1", hist.DataPoints)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
