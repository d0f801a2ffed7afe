package cvr

import (
	"context"
	"fmt"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SourceDocumentChangedHandler reconciles a single document whenever the ERP
// reports that it was written. Redelivery is filtered by the idempotent
// wrapper it is registered behind.
type SourceDocumentChangedHandler struct {
	reconciler *Reconciler
	metrics    *telemetry.LedgerMetrics
	logger     *zap.Logger
}

// NewSourceDocumentChangedHandler creates the handler
func NewSourceDocumentChangedHandler(reconciler *Reconciler, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *SourceDocumentChangedHandler {
	return &SourceDocumentChangedHandler{reconciler: reconciler, metrics: metrics, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *SourceDocumentChangedHandler) EventTypes() []string {
	return []string{cvr.EventTypeSourceDocumentChanged}
}

// Handle reconciles the document named by the event
func (h *SourceDocumentChangedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*cvr.SourceDocumentChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			cvr.EventTypeSourceDocumentChanged, event.EventType())
	}

	result, err := h.reconciler.ReconcileDocument(ctx, changed.TenantID(), changed.SourceType, changed.SourceID)
	if err != nil {
		h.metrics.RecordSourceEvent(ctx, string(changed.SourceType), "failed")
		h.logger.Error("failed to reconcile changed source document",
			zap.String("event_id", changed.EventID().String()),
			zap.String("source_type", string(changed.SourceType)),
			zap.String("source_id", changed.SourceID.String()),
			zap.Error(err),
		)
		return err
	}

	h.metrics.RecordSourceEvent(ctx, string(changed.SourceType), "processed")
	h.logger.Debug("source document reconciled",
		zap.String("event_id", changed.EventID().String()),
		zap.String("source_id", changed.SourceID.String()),
		zap.String("outcome", string(result.Outcome)),
	)
	return nil
}

var _ shared.EventHandler = (*SourceDocumentChangedHandler)(nil)
