package cvr

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentResult reports the effect of reconciling a single source document
type DocumentResult struct {
	SourceType cvr.SourceType       `json:"source_type"`
	SourceID   uuid.UUID            `json:"source_id"`
	Outcome    cvr.ReconcileOutcome `json:"outcome"`
	Status     cvr.FactStatus       `json:"status,omitempty"`
	Reason     string               `json:"reason,omitempty"`
}

// loadDocument fetches a source document with what its rule needs
func (r *Reconciler) loadDocument(ctx context.Context, key cvr.FactKey) (cvr.SourceDocument, error) {
	switch key.SourceType {
	case cvr.SourceTypeContract:
		return r.repos.Sources.FindContract(ctx, key.TenantID, key.SourceID)
	case cvr.SourceTypePaymentApplication:
		return r.repos.Sources.FindPaymentApplication(ctx, key.TenantID, key.SourceID)
	}
	return nil, fmt.Errorf("%w: %s", cvr.ErrUnsupportedSourceType, key.SourceType)
}

// ReconcileDocument converges the fact of one source document. A source that
// no longer exists is treated as ineligible, so its fact is voided. When an
// actual fact changes, the owning package's rollup is recomputed.
func (r *Reconciler) ReconcileDocument(ctx context.Context, tenantID uuid.UUID, sourceType cvr.SourceType, sourceID uuid.UUID) (*DocumentResult, error) {
	if tenantID == uuid.Nil {
		return nil, cvr.ErrMissingTenant
	}
	if !r.schema.Supports(sourceType) {
		return nil, fmt.Errorf("%w: %s", cvr.ErrUnsupportedSourceType, sourceType)
	}
	key := cvr.FactKey{TenantID: tenantID, SourceType: sourceType, SourceID: sourceID}

	ctx, span := telemetry.StartServiceSpan(ctx, "reconciler", "reconcile_document")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSourceType, string(sourceType),
		telemetry.SpanAttrSourceID, sourceID.String(),
	)

	result := &DocumentResult{SourceType: sourceType, SourceID: sourceID}

	var d *cvr.Derivation
	doc, err := r.loadDocument(ctx, key)
	switch {
	case errors.Is(err, cvr.ErrSourceNotFound):
		d = &cvr.Derivation{Key: key, Reason: "source document no longer exists"}
	case err != nil:
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load %s %s: %w", sourceType, sourceID, err)
	default:
		d, err = r.schema.Derive(doc)
		if err != nil {
			if cvr.IsSkippable(err) {
				result.Outcome = cvr.OutcomeSkipped
				result.Reason = err.Error()
				r.metrics.RecordDocument(ctx, tenantID, string(sourceType), string(result.Outcome))
				return result, nil
			}
			telemetry.RecordError(span, err)
			r.metrics.RecordDocument(ctx, tenantID, string(sourceType), string(cvr.OutcomeError))
			return nil, err
		}
	}

	c, err := r.apply(ctx, d)
	if err != nil {
		telemetry.RecordError(span, err)
		r.metrics.RecordDocument(ctx, tenantID, string(sourceType), string(cvr.OutcomeError))
		return nil, err
	}
	result.Outcome = c.outcome
	result.Status = c.to
	result.Reason = d.Reason
	r.metrics.RecordDocument(ctx, tenantID, string(sourceType), string(c.outcome))
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, string(c.outcome))

	if sourceType == cvr.SourceTypePaymentApplication && c.outcome != cvr.OutcomeSkipped && c.packageID != nil {
		if _, err := r.repos.Packages.RecomputeActualCost(ctx, tenantID, nil, []uuid.UUID{*c.packageID}, r.now()); err != nil {
			// the next backfill recomputes every package in scope
			r.logger.Warn("failed to recompute package actual cost",
				zap.String("package_id", c.packageID.String()),
				zap.Error(err),
			)
		}
	}

	telemetry.SetOK(span)
	return result, nil
}

// RederiveAmount re-snapshots the amount of an existing fact from the current
// source document. Normal reconciliation never rewrites amounts; this is the
// explicit correction path.
func (r *Reconciler) RederiveAmount(ctx context.Context, tenantID uuid.UUID, sourceType cvr.SourceType, sourceID uuid.UUID) (*cvr.FactView, error) {
	if tenantID == uuid.Nil {
		return nil, cvr.ErrMissingTenant
	}
	key := cvr.FactKey{TenantID: tenantID, SourceType: sourceType, SourceID: sourceID}

	ctx, span := telemetry.StartServiceSpan(ctx, "reconciler", "rederive_amount")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSourceType, string(sourceType),
		telemetry.SpanAttrSourceID, sourceID.String(),
	)

	doc, err := r.loadDocument(ctx, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	d, err := r.schema.Derive(doc)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !d.Eligible {
		return nil, shared.NewDomainError("INVALID_STATE", "source document is not eligible for a fact: "+d.Reason)
	}

	now := r.now()
	switch sourceType {
	case cvr.SourceTypeContract:
		before, err := r.repos.Commitments.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := r.repos.Commitments.ResnapshotAmount(ctx, key, d.Amount(), r.schema.Version, now); err != nil {
			return nil, fmt.Errorf("resnapshot commitment amount: %w", err)
		}
		r.logger.Warn("commitment amount re-derived",
			zap.String("fact", key.String()),
			zap.String("from", before.Amount.String()),
			zap.String("to", d.Amount().String()),
		)
		after, err := r.repos.Commitments.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		view := after.View()
		return &view, nil

	case cvr.SourceTypePaymentApplication:
		before, err := r.repos.Actuals.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := r.repos.Actuals.ResnapshotAmount(ctx, key, d.Amount(), r.schema.Version, now); err != nil {
			return nil, fmt.Errorf("resnapshot actual amount: %w", err)
		}
		r.logger.Warn("actual amount re-derived",
			zap.String("fact", key.String()),
			zap.String("from", before.Amount.String()),
			zap.String("to", d.Amount().String()),
			zap.String("basis", string(d.Basis)),
		)
		if before.PackageID != nil {
			if _, err := r.repos.Packages.RecomputeActualCost(ctx, tenantID, nil, []uuid.UUID{*before.PackageID}, now); err != nil {
				return nil, fmt.Errorf("recompute package actual cost: %w", err)
			}
		}
		after, err := r.repos.Actuals.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		view := after.View()
		return &view, nil
	}
	return nil, fmt.Errorf("%w: %s", cvr.ErrUnsupportedSourceType, sourceType)
}
