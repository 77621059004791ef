// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
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

// meterName is the instrumentation scope name used for all nomic metrics.
const meterName = "github.com/nomicbot/nomic"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks text-to-speech synthesis latency. Use with
	// attribute:
	//   attribute.String("status", ...)
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// ClipsPlayed counts synthesized clips handed to playback.
	ClipsPlayed metric.Int64Counter

	// MessagesRejected counts channel messages dropped before synthesis. Use
	// with attribute:
	//   attribute.String("reason", ...)
	MessagesRejected metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of clips waiting behind the one playing.
	QueueDepth metric.Int64Gauge

	// ActiveSessions tracks the number of live voice sessions. For a single
	// guild this is 0 or 1.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-synthesis latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("nomic.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ClipsPlayed, err = m.Int64Counter("nomic.clips.played",
		metric.WithDescription("Total synthesized clips handed to playback."),
	); err != nil {
		return nil, err
	}
	if met.MessagesRejected, err = m.Int64Counter("nomic.messages.rejected",
		metric.WithDescription("Total messages dropped before synthesis, by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.QueueDepth, err = m.Int64Gauge("nomic.queue.depth",
		metric.WithDescription("Number of clips waiting behind the one playing."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("nomic.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("nomic.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// RecordSynthesis records one synthesis attempt with its latency and outcome.
func (m *Metrics) RecordSynthesis(ctx context.Context, seconds float64, status string) {
	m.SynthesisDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordClipPlayed records one clip handed to playback.
func (m *Metrics) RecordClipPlayed(ctx context.Context) {
	m.ClipsPlayed.Add(ctx, 1)
}

// RecordRejection records one message dropped before synthesis.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	m.MessagesRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordQueueDepth records the current clip queue depth.
func (m *Metrics) RecordQueueDepth(ctx context.Context, depth int) {
	m.QueueDepth.Record(ctx, int64(depth))
}
