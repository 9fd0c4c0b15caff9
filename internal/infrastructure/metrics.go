package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	ServiceName    = "ntb-adoption-analytics"
	ServiceVersion = "v1.0.0"
	MeterName      = "ntbcli"
)

// RunMetrics holds the instruments recorded while a ledger scan runs.
type RunMetrics struct {
	meterProvider *sdkmetric.MeterProvider
	// PrometheusHTTP serves the scrape endpoint when a caller wants one.
	PrometheusHTTP http.Handler

	rowsProcessed metric.Int64Counter
	rowsDropped   metric.Int64Counter
	rowsRejected  metric.Int64Counter
	chunkDuration metric.Float64Histogram
	runsCompleted metric.Int64Counter
}

// NewRunMetrics creates the meter provider with a Prometheus exporter and
// registers the engine's instruments.
func NewRunMetrics() (*RunMetrics, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(MeterName)

	m := &RunMetrics{
		meterProvider:  provider,
		PrometheusHTTP: promhttp.Handler(),
	}

	if m.rowsProcessed, err = meter.Int64Counter("ntb_rows_processed_total",
		metric.WithDescription("Ledger rows folded into the aggregates")); err != nil {
		return nil, err
	}
	if m.rowsDropped, err = meter.Int64Counter("ntb_rows_dropped_total",
		metric.WithDescription("Malformed rows dropped by the reader")); err != nil {
		return nil, err
	}
	if m.rowsRejected, err = meter.Int64Counter("ntb_rows_rejected_total",
		metric.WithDescription("Rows rejected by the derivation engine")); err != nil {
		return nil, err
	}
	if m.chunkDuration, err = meter.Float64Histogram("ntb_chunk_duration_seconds",
		metric.WithDescription("Per-chunk derivation and aggregation latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.runsCompleted, err = meter.Int64Counter("ntb_runs_total",
		metric.WithDescription("Completed analysis runs")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordChunk records one processed chunk.
func (m *RunMetrics) RecordChunk(ctx context.Context, rows, rejected int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rowsProcessed.Add(ctx, int64(rows))
	m.rowsRejected.Add(ctx, int64(rejected))
	m.chunkDuration.Record(ctx, elapsed.Seconds())
}

// RecordDropped records malformed rows dropped by the reader.
func (m *RunMetrics) RecordDropped(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.rowsDropped.Add(ctx, int64(n))
}

// RecordRunCompleted records a finished run with its outcome.
func (m *RunMetrics) RecordRunCompleted(ctx context.Context, succeeded bool) {
	if m == nil {
		return
	}
	m.runsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("succeeded", succeeded),
	))
}

// Shutdown flushes and releases the meter provider.
func (m *RunMetrics) Shutdown(ctx context.Context) {
	if m == nil || m.meterProvider == nil {
		return
	}
	if err := m.meterProvider.Shutdown(ctx); err != nil {
		slog.Warn("failed to shut down meter provider", "error", err)
	}
}
