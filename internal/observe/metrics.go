// Package observe provides application-wide observability primitives for
// Mutecast: OpenTelemetry metrics, structured logging helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Mutecast metrics.
const meterName = "github.com/mutecast/mutecast"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// EvaluationDuration tracks the full cost of one match evaluation cycle
	// (fingerprint plus library comparison).
	EvaluationDuration metric.Float64Histogram

	// ProviderDuration tracks fingerprint-provider call latency.
	ProviderDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// ChunksProcessed counts audio chunks that completed preprocessing.
	ChunksProcessed metric.Int64Counter

	// Detections counts commercial detections. Use with attribute:
	//   attribute.String("pattern", ...)
	Detections metric.Int64Counter

	// TransportErrors counts transient capture read faults that were skipped.
	TransportErrors metric.Int64Counter

	// ProviderErrors counts fingerprint-provider failures. Use with
	// attribute: attribute.String("op", "fingerprint"|"compare")
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDetections tracks whether a commercial is currently recognised
	// (0 or 1 in a single-monitor process).
	ActiveDetections metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for per-chunk evaluation latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EvaluationDuration, err = m.Float64Histogram("mutecast.detect.evaluation.duration",
		metric.WithDescription("Latency of one full match evaluation cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("mutecast.fingerprint.duration",
		metric.WithDescription("Latency of fingerprint-provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("mutecast.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksProcessed, err = m.Int64Counter("mutecast.audio.chunks",
		metric.WithDescription("Total audio chunks processed by the capture loop."),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("mutecast.detections",
		metric.WithDescription("Total commercial detections by pattern name."),
	); err != nil {
		return nil, err
	}
	if met.TransportErrors, err = m.Int64Counter("mutecast.transport.errors",
		metric.WithDescription("Total transient capture read faults skipped."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("mutecast.fingerprint.errors",
		metric.WithDescription("Total fingerprint-provider failures by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDetections, err = m.Int64UpDownCounter("mutecast.detect.active",
		metric.WithDescription("Number of currently recognised commercials."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordDetection is a convenience method that records a detection counter
// increment for the given pattern name.
func (m *Metrics) RecordDetection(ctx context.Context, pattern string) {
	m.Detections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("pattern", pattern)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment for the given operation.
func (m *Metrics) RecordProviderError(ctx context.Context, op string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
