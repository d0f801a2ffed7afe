package cvr

import (
	"context"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMatchingUnavailable is returned when no matching service is configured
var ErrMatchingUnavailable = shared.NewDomainError("SERVICE_UNAVAILABLE", "invoice matching service is not configured")

// MatchingService forwards invoice to PO matching requests. The ledger does
// not score candidates; an accepted match only changes data the ERP owns.
type MatchingService struct {
	matcher cvr.InvoiceMatcher
	logger  *zap.Logger
}

// NewMatchingService creates the service; a nil matcher disables it
func NewMatchingService(matcher cvr.InvoiceMatcher, logger *zap.Logger) *MatchingService {
	return &MatchingService{matcher: matcher, logger: logger}
}

// AttemptMatch asks the matching service for candidates
func (s *MatchingService) AttemptMatch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*cvr.MatchResult, error) {
	if tenantID == uuid.Nil {
		return nil, cvr.ErrMissingTenant
	}
	if s.matcher == nil {
		return nil, ErrMatchingUnavailable
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "matching", "attempt")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	result, err := s.matcher.AttemptMatch(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "candidates", len(result.Candidates))
	return result, nil
}

// AcceptMatch confirms a candidate
func (s *MatchingService) AcceptMatch(ctx context.Context, tenantID, poID, invoiceID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return cvr.ErrMissingTenant
	}
	if s.matcher == nil {
		return ErrMatchingUnavailable
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "matching", "accept")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String(), "po_id", poID.String())

	if err := s.matcher.AcceptMatch(ctx, tenantID, poID, invoiceID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("invoice match accepted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("po_id", poID.String()),
	)
	return nil
}
