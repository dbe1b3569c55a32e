package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSyncMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != SyncMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewSyncMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewSyncMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.runDuration)
		assert.NotNil(t, metrics.apiCalls)
		assert.NotNil(t, metrics.items)
	})
}

func TestSyncMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var metrics *SyncMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		metrics.RecordRun(ctx, "products", "apply", time.Second, true)
		metrics.RecordAPICalls(ctx, "products", 1)
		metrics.RecordItems(ctx, "products", "created", 1)
	})
}

func TestSyncMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, "products", "apply", 1500*time.Millisecond, true)
	metrics.RecordAPICalls(ctx, "products", 1)
	metrics.RecordAPICalls(ctx, "products", 2)
	metrics.RecordItems(ctx, "products", "created", 3)
	metrics.RecordItems(ctx, "products", "skipped", 0)

	got := collectSyncMetrics(t, reader)

	hist, ok := got["atelier_sync_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected histogram data type")
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)

	calls, ok := got["atelier_sync_api_calls_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, calls.DataPoints, 1)
	assert.Equal(t, int64(3), calls.DataPoints[0].Value)

	items, ok := got["atelier_sync_items_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, items.DataPoints, 1, "zero counts are not recorded")
	assert.Equal(t, int64(3), items.DataPoints[0].Value)
}
