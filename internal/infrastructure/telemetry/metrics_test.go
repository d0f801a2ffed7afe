package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "not an int64 sum: %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMeterProviderDisabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("cvr"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestLedgerMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewLedgerMetrics(provider.Meter("cvr"))
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	m.RecordDocument(ctx, tenantID, "CONTRACT", "created")
	m.RecordDocument(ctx, tenantID, "CONTRACT", "skipped")
	m.RecordDocument(ctx, tenantID, "PAYMENT_APPLICATION", "updated")
	m.RecordBackfill(ctx, tenantID, "api", "COMPLETED", 3, 2, 1500*time.Millisecond)
	m.RecordSourceEvent(ctx, "CONTRACT", "duplicate")
	m.RecordPositionQuery(ctx, 20*time.Millisecond, false)

	data := collect(t, reader)
	assert.Equal(t, int64(3), sumOf(t, data["cvr_documents_reconciled_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["cvr_backfill_runs_total"]))
	assert.Equal(t, int64(2), sumOf(t, data["cvr_packages_recomputed_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["cvr_source_events_total"]))

	hist, ok := data["cvr_backfill_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 1e-9)

	gauge, ok := data["cvr_backfill_last_documents"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)
}

func TestLedgerMetricsNil(t *testing.T) {
	_, err := telemetry.NewLedgerMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)

	var m *telemetry.LedgerMetrics
	assert.NotPanics(t, func() {
		m.RecordDocument(context.Background(), uuid.New(), "CONTRACT", "created")
		m.RecordBackfill(context.Background(), uuid.New(), "cli", "FAILED", 0, 0, time.Second)
		m.RecordSourceEvent(context.Background(), "CONTRACT", "processed")
		m.RecordPositionQuery(context.Background(), time.Millisecond, true)
	})
}
