package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// LedgerMetrics holds the reconciliation and aggregation instruments. A nil
// *LedgerMetrics records nothing, so services can run without telemetry.
type LedgerMetrics struct {
	documentsReconciled *Counter
	backfillRuns        *Counter
	packagesRecomputed  *Counter
	sourceEvents        *Counter
	backfillDuration    *Histogram
	positionDuration    *Histogram
	lastBackfillDocs    *Gauge
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &LedgerMetrics{}
	var err error

	if m.documentsReconciled, err = NewCounter(meter,
		"cvr_documents_reconciled_total", "Source documents visited by the reconciler, by outcome", "{documents}"); err != nil {
		return nil, err
	}
	if m.backfillRuns, err = NewCounter(meter,
		"cvr_backfill_runs_total", "Backfill passes by trigger and final status", "{runs}"); err != nil {
		return nil, err
	}
	if m.packagesRecomputed, err = NewCounter(meter,
		"cvr_packages_recomputed_total", "Package actual cost rollups rewritten", "{packages}"); err != nil {
		return nil, err
	}
	if m.sourceEvents, err = NewCounter(meter,
		"cvr_source_events_total", "Source change notifications received", "{events}"); err != nil {
		return nil, err
	}
	if m.backfillDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "cvr_backfill_duration_seconds",
		Description: "Wall time of a backfill pass",
		Unit:        "s",
		Boundaries:  BackfillDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.positionDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "cvr_financial_position_duration_seconds",
		Description: "Latency of a financial position query",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.lastBackfillDocs, err = NewGauge(meter,
		"cvr_backfill_last_documents", "Documents processed by the most recent backfill of a tenant", "{documents}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDocument counts one reconciled document
func (m *LedgerMetrics) RecordDocument(ctx context.Context, tenantID uuid.UUID, sourceType, outcome string) {
	if m == nil {
		return
	}
	m.documentsReconciled.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSourceType.String(sourceType),
		AttrOutcome.String(outcome),
	)
}

// RecordBackfill records a finished pass
func (m *LedgerMetrics) RecordBackfill(ctx context.Context, tenantID uuid.UUID, trigger, status string, documents, packages int, d time.Duration) {
	if m == nil {
		return
	}
	tenant := AttrTenantID.String(tenantID.String())
	m.backfillRuns.Inc(ctx, tenant, AttrTrigger.String(trigger), AttrOutcome.String(status))
	m.backfillDuration.RecordDuration(ctx, d, AttrTrigger.String(trigger))
	m.packagesRecomputed.Add(ctx, int64(packages), tenant)
	m.lastBackfillDocs.Record(ctx, int64(documents), tenant)
}

// RecordSourceEvent counts a notification; outcome is processed, duplicate or failed
func (m *LedgerMetrics) RecordSourceEvent(ctx context.Context, sourceType, outcome string) {
	if m == nil {
		return
	}
	m.sourceEvents.Inc(ctx, AttrSourceType.String(sourceType), AttrOutcome.String(outcome))
}

// RecordPositionQuery records aggregation latency
func (m *LedgerMetrics) RecordPositionQuery(ctx context.Context, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.positionDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}
