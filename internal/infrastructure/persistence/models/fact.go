package models

import (
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommitmentFactModel is the persistence model for commitment facts.
// (tenant_id, source_type, source_id) is unique.
type CommitmentFactModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_commitment_fact_source,priority:1"`
	SourceType    cvr.SourceType  `gorm:"type:varchar(30);not null;uniqueIndex:idx_commitment_fact_source,priority:2"`
	SourceID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_commitment_fact_source,priority:3"`
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PackageID     *uuid.UUID      `gorm:"type:uuid;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	Status        cvr.FactStatus  `gorm:"type:varchar(20);not null;index"`
	CommittedDate time.Time       `gorm:"not null"`
	SchemaVersion int             `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (CommitmentFactModel) TableName() string {
	return "commitment_facts"
}

// ToDomain converts the persistence model to a domain CommitmentFact
func (m *CommitmentFactModel) ToDomain() *cvr.CommitmentFact {
	return &cvr.CommitmentFact{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ProjectID:     m.ProjectID,
		PackageID:     m.PackageID,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Status:        m.Status,
		CommittedDate: m.CommittedDate,
		SchemaVersion: m.SchemaVersion,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CommitmentFact
func (m *CommitmentFactModel) FromDomain(f *cvr.CommitmentFact) {
	m.ID = f.ID
	m.CreatedAt = f.CreatedAt
	m.UpdatedAt = f.UpdatedAt
	m.TenantID = f.TenantID
	m.SourceType = f.SourceType
	m.SourceID = f.SourceID
	m.ProjectID = f.ProjectID
	m.PackageID = f.PackageID
	m.Amount = f.Amount
	m.Currency = f.Currency
	m.Status = f.Status
	m.CommittedDate = f.CommittedDate
	m.SchemaVersion = f.SchemaVersion
}

// ActualFactModel is the persistence model for actual facts.
// (tenant_id, source_type, source_id) is unique.
type ActualFactModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_actual_fact_source,priority:1"`
	SourceType    cvr.SourceType  `gorm:"type:varchar(30);not null;uniqueIndex:idx_actual_fact_source,priority:2"`
	SourceID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_actual_fact_source,priority:3"`
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PackageID     *uuid.UUID      `gorm:"type:uuid;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	Status        cvr.FactStatus  `gorm:"type:varchar(20);not null;index"`
	IncurredDate  time.Time       `gorm:"not null"`
	PaidDate      *time.Time
	SchemaVersion int `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (ActualFactModel) TableName() string {
	return "actual_facts"
}

// ToDomain converts the persistence model to a domain ActualFact
func (m *ActualFactModel) ToDomain() *cvr.ActualFact {
	return &cvr.ActualFact{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ProjectID:     m.ProjectID,
		PackageID:     m.PackageID,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Status:        m.Status,
		IncurredDate:  m.IncurredDate,
		PaidDate:      m.PaidDate,
		SchemaVersion: m.SchemaVersion,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ActualFact
func (m *ActualFactModel) FromDomain(f *cvr.ActualFact) {
	m.ID = f.ID
	m.CreatedAt = f.CreatedAt
	m.UpdatedAt = f.UpdatedAt
	m.TenantID = f.TenantID
	m.SourceType = f.SourceType
	m.SourceID = f.SourceID
	m.ProjectID = f.ProjectID
	m.PackageID = f.PackageID
	m.Amount = f.Amount
	m.Currency = f.Currency
	m.Status = f.Status
	m.IncurredDate = f.IncurredDate
	m.PaidDate = f.PaidDate
	m.SchemaVersion = f.SchemaVersion
}
