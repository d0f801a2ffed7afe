package cvr

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType identifies the kind of source document behind a fact
type SourceType string

const (
	SourceTypeContract           SourceType = "CONTRACT"
	SourceTypePaymentApplication SourceType = "PAYMENT_APPLICATION"
)

// ParseSourceType accepts the canonical names case-insensitively
func ParseSourceType(raw string) (SourceType, error) {
	t := SourceType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSourceType, raw)
	}
	return t, nil
}

// IsValid checks if the source type is known
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeContract, SourceTypePaymentApplication:
		return true
	}
	return false
}

// String returns the string representation
func (t SourceType) String() string {
	return string(t)
}

// AllSourceTypes returns all source types in reconciliation order
func AllSourceTypes() []SourceType {
	return []SourceType{SourceTypeContract, SourceTypePaymentApplication}
}

// FactStatus is the ledger status of a commitment or actual fact.
// VOID marks a fact whose source became ineligible; facts are never deleted.
type FactStatus string

const (
	FactStatusSigned    FactStatus = "SIGNED"
	FactStatusActive    FactStatus = "ACTIVE"
	FactStatusCertified FactStatus = "CERTIFIED"
	FactStatusPaid      FactStatus = "PAID"
	FactStatusVoid      FactStatus = "VOID"
)

// CommitmentEligibleStatuses are the statuses counted in Committed
func CommitmentEligibleStatuses() []FactStatus {
	return []FactStatus{FactStatusSigned, FactStatusActive}
}

// ActualEligibleStatuses are the statuses counted in Actual
func ActualEligibleStatuses() []FactStatus {
	return []FactStatus{FactStatusCertified, FactStatusPaid}
}

// IsVoid reports whether the fact is excluded from aggregation
func (s FactStatus) IsVoid() bool {
	return s == FactStatusVoid
}

// FactKey is the idempotency key of a ledger fact
type FactKey struct {
	TenantID   uuid.UUID
	SourceType SourceType
	SourceID   uuid.UUID
}

// String returns a stable textual form used in logs and lock keys
func (k FactKey) String() string {
	return k.TenantID.String() + ":" + string(k.SourceType) + ":" + k.SourceID.String()
}

// CommitmentFact is a derived ledger record of contracted spend
type CommitmentFact struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ProjectID     uuid.UUID
	PackageID     *uuid.UUID
	SourceType    SourceType
	SourceID      uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        FactStatus
	CommittedDate time.Time
	SchemaVersion int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the fact's idempotency key
func (f *CommitmentFact) Key() FactKey {
	return FactKey{TenantID: f.TenantID, SourceType: f.SourceType, SourceID: f.SourceID}
}

// ActualFact is a derived ledger record of certified or paid cost
type ActualFact struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ProjectID     uuid.UUID
	PackageID     *uuid.UUID
	SourceType    SourceType
	SourceID      uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        FactStatus
	IncurredDate  time.Time
	PaidDate      *time.Time
	SchemaVersion int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the fact's idempotency key
func (f *ActualFact) Key() FactKey {
	return FactKey{TenantID: f.TenantID, SourceType: f.SourceType, SourceID: f.SourceID}
}

// FactView is the common projection of either fact kind, used by lookups
// that do not care which kind they hold.
type FactView struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenantId"`
	ProjectID     uuid.UUID       `json:"projectId"`
	PackageID     *uuid.UUID      `json:"packageId,omitempty"`
	SourceType    SourceType      `json:"sourceType"`
	SourceID      uuid.UUID       `json:"sourceId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        FactStatus      `json:"status"`
	EffectiveDate time.Time       `json:"effectiveDate"`
	PaidDate      *time.Time      `json:"paidDate,omitempty"`
	SchemaVersion int             `json:"schemaVersion"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// View projects the commitment fact
func (f *CommitmentFact) View() FactView {
	return FactView{
		ID: f.ID, TenantID: f.TenantID, ProjectID: f.ProjectID, PackageID: f.PackageID,
		SourceType: f.SourceType, SourceID: f.SourceID, Amount: f.Amount, Currency: f.Currency,
		Status: f.Status, EffectiveDate: f.CommittedDate, SchemaVersion: f.SchemaVersion, UpdatedAt: f.UpdatedAt,
	}
}

// View projects the actual fact
func (f *ActualFact) View() FactView {
	return FactView{
		ID: f.ID, TenantID: f.TenantID, ProjectID: f.ProjectID, PackageID: f.PackageID,
		SourceType: f.SourceType, SourceID: f.SourceID, Amount: f.Amount, Currency: f.Currency,
		Status: f.Status, EffectiveDate: f.IncurredDate, PaidDate: f.PaidDate,
		SchemaVersion: f.SchemaVersion, UpdatedAt: f.UpdatedAt,
	}
}
