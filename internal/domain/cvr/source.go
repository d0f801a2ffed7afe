package cvr

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Package is a work package inside a project. ActualCost is a cached rollup
// of PAID actual facts and is never read as a source of truth.
type Package struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	ProjectID              uuid.UUID
	Code                   string
	Name                   string
	ActualCost             decimal.Decimal
	ActualCostRecomputedAt *time.Time
}

// BudgetLine is a planned cost line. Budget lines have no status and always count.
type BudgetLine struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ProjectID     uuid.UUID
	PackageID     *uuid.UUID
	Code          string
	Description   string
	PlannedAmount *decimal.Decimal
	Amount        *decimal.Decimal
}

// BudgetAmount returns the planned amount, falling back to amount, then zero.
func (b *BudgetLine) BudgetAmount() decimal.Decimal {
	if b.PlannedAmount != nil {
		return *b.PlannedAmount
	}
	if b.Amount != nil {
		return *b.Amount
	}
	return decimal.Zero
}

// ContractStatus is the lifecycle status of a contract
type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusSigned     ContractStatus = "signed"
	ContractStatusActive     ContractStatus = "active"
	ContractStatusCancelled  ContractStatus = "cancelled"
	ContractStatusCompleted  ContractStatus = "completed"
	ContractStatusTerminated ContractStatus = "terminated"
)

// ParseContractStatus normalises a raw status string. Unknown values are rejected.
func ParseContractStatus(raw string) (ContractStatus, error) {
	s := ContractStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", newUnknownStatusError(SourceTypeContract, raw)
	}
	return s, nil
}

// IsValid checks if the status is a known contract status
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusSigned, ContractStatusActive,
		ContractStatusCancelled, ContractStatusCompleted, ContractStatusTerminated:
		return true
	}
	return false
}

// IsCommitted reports whether a contract in this status contributes to Committed
func (s ContractStatus) IsCommitted() bool {
	return s == ContractStatusSigned || s == ContractStatusActive
}

// Contract is a signed (or not yet signed) agreement with a supplier
type Contract struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ProjectID  *uuid.UUID
	PackageID  *uuid.UUID
	Reference  string
	Value      decimal.Decimal
	Currency   string
	Status     string
	SignedDate *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AFPStatus is the lifecycle status of an application for payment
type AFPStatus string

const (
	AFPStatusSubmitted     AFPStatus = "SUBMITTED"
	AFPStatusCertified     AFPStatus = "CERTIFIED"
	AFPStatusApproved      AFPStatus = "APPROVED"
	AFPStatusPaid          AFPStatus = "PAID"
	AFPStatusPartiallyPaid AFPStatus = "PARTIALLY_PAID"
	AFPStatusCancelled     AFPStatus = "CANCELLED"
	AFPStatusRejected      AFPStatus = "REJECTED"
)

// ParseAFPStatus normalises a raw status string; source systems mix lower and upper case.
func ParseAFPStatus(raw string) (AFPStatus, error) {
	s := AFPStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", newUnknownStatusError(SourceTypePaymentApplication, raw)
	}
	return s, nil
}

// IsValid checks if the status is a known AFP status
func (s AFPStatus) IsValid() bool {
	switch s {
	case AFPStatusSubmitted, AFPStatusCertified, AFPStatusApproved, AFPStatusPaid,
		AFPStatusPartiallyPaid, AFPStatusCancelled, AFPStatusRejected:
		return true
	}
	return false
}

// IsExcluded reports whether an AFP in this status must never contribute to Actual
func (s AFPStatus) IsExcluded() bool {
	return s == AFPStatusCancelled || s == AFPStatusRejected
}

// IsPaid reports whether money has moved for an AFP in this status
func (s AFPStatus) IsPaid() bool {
	return s == AFPStatusPaid || s == AFPStatusPartiallyPaid
}

// ApplicationForPayment is a supplier's periodic claim against a contract
type ApplicationForPayment struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	ProjectID           *uuid.UUID
	ContractID          *uuid.UUID
	Number              string
	ClaimedThisPeriod   decimal.Decimal
	CertifiedThisPeriod decimal.Decimal
	CertifiedNetValue   *decimal.Decimal
	AmountPaid          *decimal.Decimal
	Currency            string
	Status              string
	CertifiedDate       *time.Time
	PaidDate            *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SourceDocument is the closed set of documents that derive ledger facts.
// Only types in this package implement it.
type SourceDocument interface {
	SourceType() SourceType
	SourceID() uuid.UUID
	sourceDocument()
}

// SourceType returns CONTRACT
func (c *Contract) SourceType() SourceType { return SourceTypeContract }

// SourceID returns the contract id
func (c *Contract) SourceID() uuid.UUID { return c.ID }

func (c *Contract) sourceDocument() {}

// SourceType returns PAYMENT_APPLICATION
func (a *ApplicationForPayment) SourceType() SourceType { return SourceTypePaymentApplication }

// SourceID returns the AFP id
func (a *ApplicationForPayment) SourceID() uuid.UUID { return a.ID }

func (a *ApplicationForPayment) sourceDocument() {}

// PaymentApplication pairs an AFP with its parent contract, which supplies the
// package and the fallback project.
type PaymentApplication struct {
	*ApplicationForPayment
	Contract *Contract
}
