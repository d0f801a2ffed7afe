package models

import (
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
)

// BackfillRunModel is the persistence model for reconciliation run history
type BackfillRunModel struct {
	ID          uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID             `gorm:"type:uuid;not null;index:idx_backfill_run_tenant_started,priority:1"`
	ProjectID   *uuid.UUID            `gorm:"type:uuid"`
	Trigger     cvr.BackfillTrigger   `gorm:"column:trigger_source;type:varchar(20);not null"`
	Status      cvr.BackfillRunStatus `gorm:"type:varchar(20);not null"`
	StartedAt   time.Time             `gorm:"not null;index:idx_backfill_run_tenant_started,priority:2"`
	CompletedAt *time.Time
	Report      *cvr.BackfillReport `gorm:"type:text;serializer:json"`
	Error       string              `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (BackfillRunModel) TableName() string {
	return "backfill_runs"
}

// ToDomain converts the persistence model to a domain BackfillRun
func (m *BackfillRunModel) ToDomain() cvr.BackfillRun {
	return cvr.BackfillRun{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ProjectID:   m.ProjectID,
		Trigger:     m.Trigger,
		Status:      m.Status,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		Report:      m.Report,
		Error:       m.Error,
	}
}

// FromDomain populates the persistence model from a domain BackfillRun
func (m *BackfillRunModel) FromDomain(r *cvr.BackfillRun) {
	m.ID = r.ID
	m.TenantID = r.TenantID
	m.ProjectID = r.ProjectID
	m.Trigger = r.Trigger
	m.Status = r.Status
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt
	m.Report = r.Report
	m.Error = r.Error
}

// All returns every model owned or read by the ledger, in dependency order.
// Tests and the sqlite driver migrate these directly.
func All() []any {
	return []any{
		&PackageModel{},
		&BudgetLineModel{},
		&ContractModel{},
		&ApplicationForPaymentModel{},
		&CommitmentFactModel{},
		&ActualFactModel{},
		&BackfillRunModel{},
	}
}
