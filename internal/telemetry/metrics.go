package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/atelier-ops/atelier-sync/sync"
)

// SyncMetrics holds the OpenTelemetry instruments for tiny-sync runs
type SyncMetrics struct {
	runDuration metric.Float64Histogram
	apiCalls    metric.Int64Counter
	items       metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"atelier_sync_run_duration_seconds",
		metric.WithDescription("Duration of tiny-sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	apiCalls, err := meter.Int64Counter(
		"atelier_sync_api_calls_total",
		metric.WithDescription("ERP API calls issued by tiny-sync runs"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Counter(
		"atelier_sync_items_total",
		metric.WithDescription("Records reconciled by tiny-sync runs, by outcome"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runDuration: runDuration,
		apiCalls:    apiCalls,
		items:       items,
	}, nil
}

// RecordRun records the duration and outcome of a run
func (m *SyncMetrics) RecordRun(ctx context.Context, entity, operation string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAPICalls adds the number of ERP calls a run used
func (m *SyncMetrics) RecordAPICalls(ctx context.Context, entity string, calls int) {
	if m == nil || m.apiCalls == nil || calls <= 0 {
		return
	}
	m.apiCalls.Add(ctx, int64(calls), metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordItems adds reconciled records for one outcome (created, updated, skipped)
func (m *SyncMetrics) RecordItems(ctx context.Context, entity, outcome string, count int) {
	if m == nil || m.items == nil || count <= 0 {
		return
	}
	m.items.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("outcome", outcome),
	))
}
