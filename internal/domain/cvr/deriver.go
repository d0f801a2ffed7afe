package cvr

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrentSchemaVersion is stamped on every fact derived by NewDerivationSchema.
// Bump it together with any change to the rules below.
const CurrentSchemaVersion = 1

// AmountBasis names the AFP field an actual amount was taken from
type AmountBasis string

const (
	AmountBasisNone                AmountBasis = ""
	AmountBasisAmountPaid          AmountBasis = "amount_paid"
	AmountBasisCertifiedNetValue   AmountBasis = "certified_net_value"
	AmountBasisCertifiedThisPeriod AmountBasis = "certified_this_period"
)

// ActualAmount picks the recognised amount of an AFP: money paid first, then the
// certified net value, then the certified amount for the period. Claimed amounts
// are never recognised.
func ActualAmount(afp *ApplicationForPayment) (decimal.Decimal, AmountBasis) {
	if afp.AmountPaid != nil && afp.AmountPaid.IsPositive() {
		return *afp.AmountPaid, AmountBasisAmountPaid
	}
	if afp.CertifiedNetValue != nil && afp.CertifiedNetValue.IsPositive() {
		return *afp.CertifiedNetValue, AmountBasisCertifiedNetValue
	}
	if afp.CertifiedThisPeriod.IsPositive() {
		return afp.CertifiedThisPeriod, AmountBasisCertifiedThisPeriod
	}
	return decimal.Zero, AmountBasisNone
}

// Derivation is the outcome of deriving one source document. When Eligible is
// false no fact should exist (or an existing one must be voided) and Reason says why.
type Derivation struct {
	Key        FactKey
	Eligible   bool
	Reason     string
	Basis      AmountBasis
	Commitment *CommitmentFact
	Actual     *ActualFact
}

// TargetStatus is the fact status the ledger should converge to
func (d *Derivation) TargetStatus() FactStatus {
	switch {
	case !d.Eligible:
		return FactStatusVoid
	case d.Commitment != nil:
		return d.Commitment.Status
	case d.Actual != nil:
		return d.Actual.Status
	}
	return FactStatusVoid
}

// Amount returns the snapshot amount of the derived fact, zero when ineligible
func (d *Derivation) Amount() decimal.Decimal {
	switch {
	case d.Commitment != nil:
		return d.Commitment.Amount
	case d.Actual != nil:
		return d.Actual.Amount
	}
	return decimal.Zero
}

// Deriver turns source documents into fact drafts. It performs no I/O.
type Deriver struct {
	DefaultCurrency string
	Now             func() time.Time
}

// NewDeriver creates a deriver using the wall clock
func NewDeriver(defaultCurrency string) *Deriver {
	return &Deriver{DefaultCurrency: defaultCurrency, Now: time.Now}
}

func (d *Deriver) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deriver) currency(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return d.DefaultCurrency
}

// DeriveCommitment derives the commitment fact of a contract
func (d *Deriver) DeriveCommitment(c *Contract) (*Derivation, error) {
	key := FactKey{TenantID: c.TenantID, SourceType: SourceTypeContract, SourceID: c.ID}
	status, err := ParseContractStatus(c.Status)
	if err != nil {
		return nil, err
	}
	if !status.IsCommitted() {
		return &Derivation{Key: key, Reason: fmt.Sprintf("contract status %s is not committed", status)}, nil
	}
	if !c.Value.IsPositive() {
		return &Derivation{Key: key, Reason: "contract value is not positive"}, nil
	}
	if c.ProjectID == nil || *c.ProjectID == uuid.Nil {
		return nil, ErrUnresolvedProject
	}

	committed := c.CreatedAt
	if c.SignedDate != nil {
		committed = *c.SignedDate
	}
	factStatus := FactStatusSigned
	if status == ContractStatusActive {
		factStatus = FactStatusActive
	}

	return &Derivation{
		Key:      key,
		Eligible: true,
		Commitment: &CommitmentFact{
			TenantID:      c.TenantID,
			ProjectID:     *c.ProjectID,
			PackageID:     c.PackageID,
			SourceType:    SourceTypeContract,
			SourceID:      c.ID,
			Amount:        c.Value,
			Currency:      d.currency(c.Currency),
			Status:        factStatus,
			CommittedDate: committed,
			SchemaVersion: CurrentSchemaVersion,
		},
	}, nil
}

// DeriveActual derives the actual fact of an AFP. contract may be nil when the
// AFP is not linked; it then contributes neither package nor fallback project.
func (d *Deriver) DeriveActual(afp *ApplicationForPayment, contract *Contract) (*Derivation, error) {
	key := FactKey{TenantID: afp.TenantID, SourceType: SourceTypePaymentApplication, SourceID: afp.ID}
	status, err := ParseAFPStatus(afp.Status)
	if err != nil {
		return nil, err
	}
	if status.IsExcluded() {
		return &Derivation{Key: key, Reason: fmt.Sprintf("application status %s is excluded", status)}, nil
	}
	amount, basis := ActualAmount(afp)
	if !amount.IsPositive() {
		return &Derivation{Key: key, Reason: "no paid or certified amount"}, nil
	}

	projectID := afp.ProjectID
	var packageID *uuid.UUID
	contractCurrency := ""
	if contract != nil {
		if projectID == nil {
			projectID = contract.ProjectID
		}
		packageID = contract.PackageID
		contractCurrency = contract.Currency
	}
	if projectID == nil || *projectID == uuid.Nil {
		return nil, ErrUnresolvedProject
	}

	incurred := afp.CreatedAt
	if afp.CertifiedDate != nil {
		incurred = *afp.CertifiedDate
	}
	factStatus := FactStatusCertified
	var paidDate *time.Time
	if status.IsPaid() {
		factStatus = FactStatusPaid
		paidDate = afp.PaidDate
		if paidDate == nil {
			now := d.now()
			paidDate = &now
		}
	}

	return &Derivation{
		Key:      key,
		Eligible: true,
		Basis:    basis,
		Actual: &ActualFact{
			TenantID:      afp.TenantID,
			ProjectID:     *projectID,
			PackageID:     packageID,
			SourceType:    SourceTypePaymentApplication,
			SourceID:      afp.ID,
			Amount:        amount,
			Currency:      d.currency(afp.Currency, contractCurrency),
			Status:        factStatus,
			IncurredDate:  incurred,
			PaidDate:      paidDate,
			SchemaVersion: CurrentSchemaVersion,
		},
	}, nil
}

type deriveRule func(d *Deriver, doc SourceDocument) (*Derivation, error)

// DerivationSchema is the explicit, versioned mapping from source type to
// derivation rule. It is built once and never consults the database.
type DerivationSchema struct {
	Version int
	deriver *Deriver
	rules   map[SourceType]deriveRule
}

// NewDerivationSchema builds the current schema
func NewDerivationSchema(deriver *Deriver) *DerivationSchema {
	return &DerivationSchema{
		Version: CurrentSchemaVersion,
		deriver: deriver,
		rules: map[SourceType]deriveRule{
			SourceTypeContract:           deriveContractRule,
			SourceTypePaymentApplication: derivePaymentApplicationRule,
		},
	}
}

// Supports reports whether the schema has a rule for the source type
func (s *DerivationSchema) Supports(t SourceType) bool {
	_, ok := s.rules[t]
	return ok
}

// SourceTypes lists the source types the schema derives, in reconciliation order
func (s *DerivationSchema) SourceTypes() []SourceType {
	out := make([]SourceType, 0, len(s.rules))
	for _, t := range AllSourceTypes() {
		if s.Supports(t) {
			out = append(out, t)
		}
	}
	return out
}

// Derive dispatches a source document to its rule
func (s *DerivationSchema) Derive(doc SourceDocument) (*Derivation, error) {
	rule, ok := s.rules[doc.SourceType()]
	if !ok {
		return nil, fmt.Errorf("%w: %s (schema v%d)", ErrUnsupportedSourceType, doc.SourceType(), s.Version)
	}
	return rule(s.deriver, doc)
}

func deriveContractRule(d *Deriver, doc SourceDocument) (*Derivation, error) {
	c, ok := doc.(*Contract)
	if !ok {
		return nil, fmt.Errorf("%w: %T for %s", ErrUnsupportedSourceType, doc, SourceTypeContract)
	}
	return d.DeriveCommitment(c)
}

func derivePaymentApplicationRule(d *Deriver, doc SourceDocument) (*Derivation, error) {
	switch v := doc.(type) {
	case *PaymentApplication:
		return d.DeriveActual(v.ApplicationForPayment, v.Contract)
	case *ApplicationForPayment:
		return d.DeriveActual(v, nil)
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrUnsupportedSourceType, doc, SourceTypePaymentApplication)
}
