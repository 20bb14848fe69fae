package tracker

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "echopaths"

// Metrics holds the OpenTelemetry instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// GenerationDuration is the latency of outline, text and audio calls.
	// Attributes: stage, status.
	GenerationDuration metric.Float64Histogram
	// ProviderRequests counts provider calls. Attributes: provider, status.
	ProviderRequests metric.Int64Counter

	SegmentsReady   metric.Int64Counter
	SegmentFailures metric.Int64Counter
	BufferingWaits  metric.Int64Counter
	// Retries counts backoffs. Attribute: policy.
	Retries metric.Int64Counter
}

// generationBuckets are in seconds; text and audio calls take many seconds.
var generationBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 100}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.GenerationDuration, err = m.Float64Histogram("echopaths.generation.duration",
		metric.WithDescription("Latency of story generation calls by stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(generationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("echopaths.provider.requests",
		metric.WithDescription("Provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsReady, err = m.Int64Counter("echopaths.segments.ready",
		metric.WithDescription("Segments appended to the story."),
	); err != nil {
		return nil, err
	}
	if met.SegmentFailures, err = m.Int64Counter("echopaths.segments.failed",
		metric.WithDescription("Segments that exhausted their retries."),
	); err != nil {
		return nil, err
	}
	if met.BufferingWaits, err = m.Int64Counter("echopaths.playback.buffering_waits",
		metric.WithDescription("Times playback had to wait for the next segment."),
	); err != nil {
		return nil, err
	}
	if met.Retries, err = m.Int64Counter("echopaths.retries",
		metric.WithDescription("Retry backoffs by policy."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// InitProvider installs a global meter provider backed by the Prometheus
// exporter and returns the /metrics handler with a shutdown func.
func InitProvider() (*Metrics, http.Handler, func(context.Context) error, error) {
	exp, err := promexporter.New()
	if err != nil {
		return nil, nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	m, err := NewMetrics(mp)
	if err != nil {
		return nil, nil, nil, errors.Join(err, mp.Shutdown(context.Background()))
	}
	return m, promhttp.Handler(), mp.Shutdown, nil
}
