package handler

import (
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
)

// BackfillRequest scopes a reconciliation pass
// @Description Request body for running a backfill
type BackfillRequest struct {
	ProjectID   *string    `json:"project_id" binding:"omitempty,uuid" example:"6f1c1b1e-6a55-4c2b-9a57-0d7f8c0f2b11"`
	UpdatedFrom *time.Time `json:"updated_from" example:"2026-01-01T00:00:00Z"`
	UpdatedTo   *time.Time `json:"updated_to" example:"2026-03-31T23:59:59Z"`
	BatchSize   int        `json:"batch_size" binding:"omitempty,min=1,max=5000" example:"500"`
}

// Scope converts the request into a backfill scope for the tenant
func (r BackfillRequest) Scope(tenantID uuid.UUID) cvr.BackfillScope {
	scope := cvr.BackfillScope{
		TenantID:    tenantID,
		UpdatedFrom: r.UpdatedFrom,
		UpdatedTo:   r.UpdatedTo,
		BatchSize:   r.BatchSize,
		Trigger:     cvr.BackfillTriggerAPI,
	}
	if r.ProjectID != nil {
		id := uuid.MustParse(*r.ProjectID)
		scope.ProjectID = &id
	}
	return scope
}

// SourceEventRequest notifies the ledger that a source document was written
// @Description Source document change notification
type SourceEventRequest struct {
	EventID    string `json:"event_id" binding:"required,uuid" example:"0b7a3c0e-3f0a-4bb4-8a34-7c3f3b0d9a10"`
	SourceType string `json:"source_type" binding:"required,cvr_source_type" example:"CONTRACT"`
	SourceID   string `json:"source_id" binding:"required,uuid" example:"6f1c1b1e-6a55-4c2b-9a57-0d7f8c0f2b11"`
}

// SourceEventAccepted acknowledges a source event
type SourceEventAccepted struct {
	EventID uuid.UUID `json:"eventId"`
}

// AcceptMatchRequest accepts one candidate purchase order for an invoice
// @Description Request body for accepting an invoice match
type AcceptMatchRequest struct {
	POID string `json:"po_id" binding:"required,uuid" example:"8d2e4b1a-1c9f-4e57-a0b3-2f6d8c9e7a41"`
}

// MatchAccepted acknowledges an accepted match
type MatchAccepted struct {
	InvoiceID uuid.UUID `json:"invoiceId"`
	POID      uuid.UUID `json:"poId"`
}

// BackfillRunResponse is one entry of the run history
type BackfillRunResponse struct {
	ID          uuid.UUID           `json:"id"`
	ProjectID   *uuid.UUID          `json:"projectId,omitempty"`
	Trigger     string              `json:"trigger"`
	Status      string              `json:"status"`
	StartedAt   time.Time           `json:"startedAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	Report      *cvr.BackfillReport `json:"report,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func toBackfillRunResponses(runs []cvr.BackfillRun) []BackfillRunResponse {
	out := make([]BackfillRunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, BackfillRunResponse{
			ID:          r.ID,
			ProjectID:   r.ProjectID,
			Trigger:     string(r.Trigger),
			Status:      string(r.Status),
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Report:      r.Report,
			Error:       r.Error,
		})
	}
	return out
}
