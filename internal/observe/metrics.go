// Package observe provides application-wide observability primitives for
// the review engine: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// registers a Prometheus exporter as the meter provider's reader; no HTTP
// route in this module serves a /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all review-engine
// metrics.
const meterName = "github.com/libraxis-labs/screenscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// StageDuration tracks the wall-clock time one pipeline stage takes for
	// one video. Use with attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// TranscriptionDuration tracks speech-to-text call latency.
	TranscriptionDuration metric.Float64Histogram

	// AnalysisTaskDuration tracks one unified-analysis worker task's
	// latency (one detection's VLM round trip).
	AnalysisTaskDuration metric.Float64Histogram

	// --- Counters ---

	// StageErrors counts non-fatal [types.PipelineError]s recorded by a
	// stage. Use with attribute.String("stage", ...).
	StageErrors metric.Int64Counter

	// RunsCompleted counts finished Run invocations, successful or not. Use
	// with attribute.String("status", "ok"|"error").
	RunsCompleted metric.Int64Counter

	// FindingsEmitted counts unified findings surviving deduplication. Use
	// with attribute.String("category", ...), attribute.String("severity", ...).
	FindingsEmitted metric.Int64Counter

	// --- Gauges ---

	// ActiveWorkers tracks the number of unified-analysis worker tasks
	// currently in flight across all active runs.
	ActiveWorkers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time for the
	// browser UI. Use with attributes: attribute.String("method", ...),
	// attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// the pipeline's per-stage and per-task latencies, which range from
// sub-second (detection) to minutes (transcription of a long video).
var latencyBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("screenscribe.stage.duration",
		metric.WithDescription("Latency of one pipeline stage for one video."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("screenscribe.transcription.duration",
		metric.WithDescription("Latency of a speech-to-text call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisTaskDuration, err = m.Float64Histogram("screenscribe.analysis_task.duration",
		metric.WithDescription("Latency of one unified-analysis worker task."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.StageErrors, err = m.Int64Counter("screenscribe.stage.errors",
		metric.WithDescription("Total non-fatal pipeline errors by stage."),
	); err != nil {
		return nil, err
	}
	if met.RunsCompleted, err = m.Int64Counter("screenscribe.runs.completed",
		metric.WithDescription("Total finished Run invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.FindingsEmitted, err = m.Int64Counter("screenscribe.findings.emitted",
		metric.WithDescription("Total unified findings surviving deduplication, by category and severity."),
	); err != nil {
		return nil, err
	}

	if met.ActiveWorkers, err = m.Int64UpDownCounter("screenscribe.active_workers",
		metric.WithDescription("Number of unified-analysis worker tasks currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("screenscribe.http.request.duration",
		metric.WithDescription("HTTP request latency for the browser UI, by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStageError is a convenience method that records a stage error
// counter increment.
func (m *Metrics) RecordStageError(ctx context.Context, stage string) {
	m.StageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRunCompleted is a convenience method that records a finished Run.
func (m *Metrics) RecordRunCompleted(ctx context.Context, status string) {
	m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordFinding is a convenience method that records one surviving finding.
func (m *Metrics) RecordFinding(ctx context.Context, category, severity string) {
	m.FindingsEmitted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("severity", severity),
		),
	)
}

// RecordStageDuration is a convenience method that records one pipeline
// stage's wall-clock duration for one video.
func (m *Metrics) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordAnalysisTaskDuration is a convenience method that records one
// unified-analysis worker task's VLM round-trip latency.
func (m *Metrics) RecordAnalysisTaskDuration(ctx context.Context, seconds float64) {
	m.AnalysisTaskDuration.Record(ctx, seconds)
}

// RecordTranscriptionDuration is a convenience method that records one
// speech-to-text call's latency.
func (m *Metrics) RecordTranscriptionDuration(ctx context.Context, seconds float64) {
	m.TranscriptionDuration.Record(ctx, seconds)
}
