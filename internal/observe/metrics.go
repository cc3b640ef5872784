// Package observe provides the interpreter's observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge so the standard
// /metrics endpoint keeps working.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/voxbridge/voxbridge"

// Metrics holds all OpenTelemetry metric instruments for the interpreter.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// MTDuration tracks machine-translation latency.
	MTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// UtteranceDuration tracks end-to-end pipeline latency per utterance.
	UtteranceDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts processed utterances. Use with attribute:
	//   attribute.String("source_language", ...)
	Utterances metric.Int64Counter

	// CacheRequests counts room-cache lookups. Use with attributes:
	//   attribute.String("kind", "stt"|"mt"|"tts"), attribute.String("result", "hit"|"miss")
	CacheRequests metric.Int64Counter

	// SilenceSkipped counts inbound chunks dropped as silence.
	SilenceSkipped metric.Int64Counter

	// ProviderErrors counts backend errors. Use with attribute:
	//   attribute.String("kind", "stt"|"mt"|"tts")
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live speaker streams.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveRooms tracks the number of rooms with at least one session.
	ActiveRooms metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for interpreter-pipeline latencies.
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
	if met.STTDuration, err = m.Float64Histogram("voxbridge.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MTDuration, err = m.Float64Histogram("voxbridge.mt.duration",
		metric.WithDescription("Latency of machine translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("voxbridge.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("voxbridge.utterance.duration",
		metric.WithDescription("End-to-end pipeline latency per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("voxbridge.utterances",
		metric.WithDescription("Total processed utterances by source language."),
	); err != nil {
		return nil, err
	}
	if met.CacheRequests, err = m.Int64Counter("voxbridge.cache.requests",
		metric.WithDescription("Total room-cache lookups by kind and result."),
	); err != nil {
		return nil, err
	}
	if met.SilenceSkipped, err = m.Int64Counter("voxbridge.silence.skipped",
		metric.WithDescription("Total inbound chunks dropped as silence."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxbridge.provider.errors",
		metric.WithDescription("Total backend errors by stage kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxbridge.active_sessions",
		metric.WithDescription("Number of live speaker streams."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRooms, err = m.Int64UpDownCounter("voxbridge.active_rooms",
		metric.WithDescription("Number of rooms with at least one session."),
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

// RecordStage records one backend stage invocation: its latency histogram
// and, on failure, the error counter.
func (m *Metrics) RecordStage(ctx context.Context, kind string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	var hist metric.Float64Histogram
	switch kind {
	case "stt":
		hist = m.STTDuration
	case "mt":
		hist = m.MTDuration
	case "tts":
		hist = m.TTSDuration
	}
	if hist != nil {
		hist.Record(ctx, elapsed.Seconds())
	}
	if err != nil {
		m.ProviderErrors.Add(ctx, 1, attrs)
	}
}

// RecordCache records one room-cache lookup outcome.
func (m *Metrics) RecordCache(ctx context.Context, kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RecordUtterance records one completed utterance with its end-to-end
// latency.
func (m *Metrics) RecordUtterance(ctx context.Context, sourceLang string, elapsed time.Duration) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("source_language", sourceLang)))
	m.UtteranceDuration.Record(ctx, elapsed.Seconds())
}
