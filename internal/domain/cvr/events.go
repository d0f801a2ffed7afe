package cvr

import (
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeCommitmentFactRecorded = "cvr.commitment_fact.recorded"
	EventTypeActualFactRecorded     = "cvr.actual_fact.recorded"
	EventTypeFactStatusChanged      = "cvr.fact.status_changed"
	EventTypeSourceDocumentChanged  = "cvr.source_document.changed"
	EventTypeBackfillCompleted      = "cvr.backfill.completed"
)

const aggregateTypeFact = "LedgerFact"

// FactRecordedEvent is raised when the reconciler creates a fact
type FactRecordedEvent struct {
	shared.BaseDomainEvent
	SourceType SourceType      `json:"source_type"`
	SourceID   uuid.UUID       `json:"source_id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	PackageID  *uuid.UUID      `json:"package_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     FactStatus      `json:"status"`
}

// NewCommitmentFactRecordedEvent creates the event for a new commitment fact
func NewCommitmentFactRecordedEvent(f *CommitmentFact) *FactRecordedEvent {
	return &FactRecordedEvent{
		BaseDomainEvent: shared.NewVersionedBaseDomainEvent(EventTypeCommitmentFactRecorded, aggregateTypeFact, f.ID, f.TenantID, f.SchemaVersion),
		SourceType:      f.SourceType,
		SourceID:        f.SourceID,
		ProjectID:       f.ProjectID,
		PackageID:       f.PackageID,
		Amount:          f.Amount,
		Status:          f.Status,
	}
}

// NewActualFactRecordedEvent creates the event for a new actual fact
func NewActualFactRecordedEvent(f *ActualFact) *FactRecordedEvent {
	return &FactRecordedEvent{
		BaseDomainEvent: shared.NewVersionedBaseDomainEvent(EventTypeActualFactRecorded, aggregateTypeFact, f.ID, f.TenantID, f.SchemaVersion),
		SourceType:      f.SourceType,
		SourceID:        f.SourceID,
		ProjectID:       f.ProjectID,
		PackageID:       f.PackageID,
		Amount:          f.Amount,
		Status:          f.Status,
	}
}

// FactStatusChangedEvent is raised when the reconciler corrects a fact status
type FactStatusChangedEvent struct {
	shared.BaseDomainEvent
	SourceType SourceType `json:"source_type"`
	SourceID   uuid.UUID  `json:"source_id"`
	From       FactStatus `json:"from"`
	To         FactStatus `json:"to"`
}

// NewFactStatusChangedEvent creates a status change event
func NewFactStatusChangedEvent(factID uuid.UUID, key FactKey, from, to FactStatus) *FactStatusChangedEvent {
	return &FactStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFactStatusChanged, aggregateTypeFact, factID, key.TenantID),
		SourceType:      key.SourceType,
		SourceID:        key.SourceID,
		From:            from,
		To:              to,
	}
}

// SourceDocumentChangedEvent notifies the ledger that a source document was written.
// The event id is the producer's id, so redelivery is recognised.
type SourceDocumentChangedEvent struct {
	shared.BaseDomainEvent
	SourceType SourceType `json:"source_type"`
	SourceID   uuid.UUID  `json:"source_id"`
}

// NewSourceDocumentChangedEvent creates a change notification. A nil eventID gets a fresh id.
func NewSourceDocumentChangedEvent(eventID, tenantID uuid.UUID, sourceType SourceType, sourceID uuid.UUID) *SourceDocumentChangedEvent {
	base := shared.NewBaseDomainEvent(EventTypeSourceDocumentChanged, string(sourceType), sourceID, tenantID)
	if eventID != uuid.Nil {
		base.ID = eventID
	}
	return &SourceDocumentChangedEvent{BaseDomainEvent: base, SourceType: sourceType, SourceID: sourceID}
}

// BackfillCompletedEvent is raised at the end of every backfill pass
type BackfillCompletedEvent struct {
	shared.BaseDomainEvent
	Report *BackfillReport `json:"report"`
}

// NewBackfillCompletedEvent creates the completion event
func NewBackfillCompletedEvent(report *BackfillReport) *BackfillCompletedEvent {
	return &BackfillCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBackfillCompleted, "BackfillRun", report.RunID, report.TenantID),
		Report:          report,
	}
}
