package models

import (
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PackageModel is the persistence model for work packages
type PackageModel struct {
	TenantModel
	ProjectID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	Code                   string          `gorm:"type:varchar(50)"`
	Name                   string          `gorm:"type:varchar(200);not null"`
	ActualCost             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ActualCostRecomputedAt *time.Time
}

// TableName returns the table name for GORM
func (PackageModel) TableName() string {
	return "packages"
}

// ToDomain converts the persistence model to a domain Package
func (m *PackageModel) ToDomain() cvr.Package {
	return cvr.Package{
		ID:                     m.ID,
		TenantID:               m.TenantID,
		ProjectID:              m.ProjectID,
		Code:                   m.Code,
		Name:                   m.Name,
		ActualCost:             m.ActualCost,
		ActualCostRecomputedAt: m.ActualCostRecomputedAt,
	}
}

// BudgetLineModel is the persistence model for budget lines
type BudgetLineModel struct {
	TenantModel
	ProjectID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	PackageID     *uuid.UUID       `gorm:"type:uuid;index"`
	Code          string           `gorm:"type:varchar(50)"`
	Description   string           `gorm:"type:varchar(500)"`
	PlannedAmount *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Amount        *decimal.Decimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (BudgetLineModel) TableName() string {
	return "budget_lines"
}

// ToDomain converts the persistence model to a domain BudgetLine
func (m *BudgetLineModel) ToDomain() cvr.BudgetLine {
	return cvr.BudgetLine{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ProjectID:     m.ProjectID,
		PackageID:     m.PackageID,
		Code:          m.Code,
		Description:   m.Description,
		PlannedAmount: m.PlannedAmount,
		Amount:        m.Amount,
	}
}

// ContractModel is the persistence model for supplier contracts
type ContractModel struct {
	TenantModel
	ProjectID  *uuid.UUID      `gorm:"type:uuid;index"`
	PackageID  *uuid.UUID      `gorm:"type:uuid;index"`
	Reference  string          `gorm:"type:varchar(100)"`
	Value      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency   string          `gorm:"type:varchar(3)"`
	Status     string          `gorm:"type:varchar(30);not null;index"`
	SignedDate *time.Time
}

// TableName returns the table name for GORM
func (ContractModel) TableName() string {
	return "contracts"
}

// ToDomain converts the persistence model to a domain Contract
func (m *ContractModel) ToDomain() *cvr.Contract {
	return &cvr.Contract{
		ID:         m.ID,
		TenantID:   m.TenantID,
		ProjectID:  m.ProjectID,
		PackageID:  m.PackageID,
		Reference:  m.Reference,
		Value:      m.Value,
		Currency:   m.Currency,
		Status:     m.Status,
		SignedDate: m.SignedDate,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Contract
func (m *ContractModel) FromDomain(c *cvr.Contract) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.ProjectID = c.ProjectID
	m.PackageID = c.PackageID
	m.Reference = c.Reference
	m.Value = c.Value
	m.Currency = c.Currency
	m.Status = c.Status
	m.SignedDate = c.SignedDate
}

// ApplicationForPaymentModel is the persistence model for AFPs
type ApplicationForPaymentModel struct {
	TenantModel
	ProjectID           *uuid.UUID       `gorm:"type:uuid;index"`
	ContractID          *uuid.UUID       `gorm:"type:uuid;index"`
	Number              string           `gorm:"type:varchar(50)"`
	ClaimedThisPeriod   decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	CertifiedThisPeriod decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	CertifiedNetValue   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	AmountPaid          *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Currency            string           `gorm:"type:varchar(3)"`
	Status              string           `gorm:"type:varchar(30);not null;index"`
	CertifiedDate       *time.Time
	PaidDate            *time.Time
}

// TableName returns the table name for GORM
func (ApplicationForPaymentModel) TableName() string {
	return "applications_for_payment"
}

// ToDomain converts the persistence model to a domain ApplicationForPayment
func (m *ApplicationForPaymentModel) ToDomain() *cvr.ApplicationForPayment {
	return &cvr.ApplicationForPayment{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		ProjectID:           m.ProjectID,
		ContractID:          m.ContractID,
		Number:              m.Number,
		ClaimedThisPeriod:   m.ClaimedThisPeriod,
		CertifiedThisPeriod: m.CertifiedThisPeriod,
		CertifiedNetValue:   m.CertifiedNetValue,
		AmountPaid:          m.AmountPaid,
		Currency:            m.Currency,
		Status:              m.Status,
		CertifiedDate:       m.CertifiedDate,
		PaidDate:            m.PaidDate,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ApplicationForPayment
func (m *ApplicationForPaymentModel) FromDomain(a *cvr.ApplicationForPayment) {
	m.ID = a.ID
	m.TenantID = a.TenantID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.ProjectID = a.ProjectID
	m.ContractID = a.ContractID
	m.Number = a.Number
	m.ClaimedThisPeriod = a.ClaimedThisPeriod
	m.CertifiedThisPeriod = a.CertifiedThisPeriod
	m.CertifiedNetValue = a.CertifiedNetValue
	m.AmountPaid = a.AmountPaid
	m.Currency = a.Currency
	m.Status = a.Status
	m.CertifiedDate = a.CertifiedDate
	m.PaidDate = a.PaidDate
}
