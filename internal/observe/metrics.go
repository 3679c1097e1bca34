// Package observe provides the observability primitives for takesplit:
// OpenTelemetry metrics and spans, trace-aware logging, the rotating
// alignment trace log and the /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [InitProvider]. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all takesplit metrics.
const meterName = "github.com/MrWong99/takesplit"

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// StageDuration tracks the wall time of each pipeline stage. Use with
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// STTDuration tracks the latency of a single segment transcription. Use
	// with attribute.String("provider", ...).
	STTDuration metric.Float64Histogram

	// ProviderRequests counts transcription calls by provider and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed transcription calls by provider.
	ProviderErrors metric.Int64Counter

	// Segments counts detected non-silent segments.
	Segments metric.Int64Counter

	// Assignments counts alignment outcomes. Use with
	// attribute.String("kind", ...): match, UNKNOWN or UNIDENTIFIED.
	Assignments metric.Int64Counter

	// LookupSteps counts backtrack and forwardtrack steps. Use with
	// attribute.String("direction", ...).
	LookupSteps metric.Int64Counter

	// ClipsWritten counts clip files written to disk.
	ClipsWritten metric.Int64Counter

	// HTTPRequestDuration tracks /metrics request time.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Transcription of a
// segment ranges from sub-second local inference to tens of seconds remote.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("takesplit.stage.duration",
		metric.WithDescription("Wall time of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("takesplit.stt.duration",
		metric.WithDescription("Latency of a single segment transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("takesplit.provider.requests",
		metric.WithDescription("Total transcription requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("takesplit.provider.errors",
		metric.WithDescription("Total transcription errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("takesplit.segments",
		metric.WithDescription("Total non-silent segments detected."),
	); err != nil {
		return nil, err
	}
	if met.Assignments, err = m.Int64Counter("takesplit.assignments",
		metric.WithDescription("Total alignment outcomes by kind."),
	); err != nil {
		return nil, err
	}
	if met.LookupSteps, err = m.Int64Counter("takesplit.lookup.steps",
		metric.WithDescription("Total backtrack and forwardtrack steps by direction."),
	); err != nil {
		return nil, err
	}
	if met.ClipsWritten, err = m.Int64Counter("takesplit.clips.written",
		metric.WithDescription("Total clip files written."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("takesplit.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call it after [InitProvider] so
// the instruments bind to the Prometheus bridge.
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

// RecordStage records the duration of a pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordTranscription records one transcription call. A non-nil err also
// increments [Metrics.ProviderErrors].
func (m *Metrics) RecordTranscription(ctx context.Context, provider string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.STTDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordAssignment increments the outcome counter for kind.
func (m *Metrics) RecordAssignment(ctx context.Context, kind string) {
	m.Assignments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordLookupStep increments the lookup counter for direction ("backtrack"
// or "forwardtrack").
func (m *Metrics) RecordLookupStep(ctx context.Context, direction string) {
	m.LookupSteps.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", direction)),
	)
}
