package cvr

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestDeriver() *Deriver {
	return &Deriver{DefaultCurrency: "GBP", Now: func() time.Time { return fixedNow }}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func newContract(status string, value string) *Contract {
	return &Contract{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		ProjectID: idPtr(uuid.New()),
		PackageID: idPtr(uuid.New()),
		Reference: "SC-001",
		Value:     dec(value),
		Status:    status,
		CreatedAt: fixedNow.Add(-48 * time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
}

func newAFP(status string) *ApplicationForPayment {
	return &ApplicationForPayment{
		ID:                  uuid.New(),
		TenantID:            uuid.New(),
		ProjectID:           idPtr(uuid.New()),
		Number:              "AFP-01",
		ClaimedThisPeriod:   dec("25000"),
		CertifiedThisPeriod: dec("20000"),
		Status:              status,
		CreatedAt:           fixedNow.Add(-24 * time.Hour),
		UpdatedAt:           fixedNow,
	}
}

func TestContractStatus(t *testing.T) {
	t.Run("parse normalises case", func(t *testing.T) {
		s, err := ParseContractStatus(" Signed ")
		require.NoError(t, err)
		assert.Equal(t, ContractStatusSigned, s)
	})

	t.Run("unknown status is a derivation error", func(t *testing.T) {
		_, err := ParseContractStatus("archived")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDerivationFailed))
	})

	t.Run("only signed and active are committed", func(t *testing.T) {
		assert.True(t, ContractStatusSigned.IsCommitted())
		assert.True(t, ContractStatusActive.IsCommitted())
		assert.False(t, ContractStatusDraft.IsCommitted())
		assert.False(t, ContractStatusCancelled.IsCommitted())
		assert.False(t, ContractStatusCompleted.IsCommitted())
	})
}

func TestAFPStatus(t *testing.T) {
	s, err := ParseAFPStatus("partially_paid")
	require.NoError(t, err)
	assert.Equal(t, AFPStatusPartiallyPaid, s)
	assert.True(t, s.IsPaid())
	assert.True(t, AFPStatusCancelled.IsExcluded())
	assert.True(t, AFPStatusRejected.IsExcluded())
	assert.False(t, AFPStatusCertified.IsExcluded())

	_, err = ParseAFPStatus("on-hold")
	assert.ErrorIs(t, err, ErrDerivationFailed)
}

func TestActualAmount(t *testing.T) {
	tests := []struct {
		name      string
		paid      *decimal.Decimal
		net       *decimal.Decimal
		period    string
		want      string
		wantBasis AmountBasis
	}{
		{"amount paid wins", decPtr("18000"), decPtr("19000"), "20000", "18000", AmountBasisAmountPaid},
		{"net value when nothing paid", decPtr("0"), decPtr("19000"), "20000", "19000", AmountBasisCertifiedNetValue},
		{"certified this period last", nil, nil, "20000", "20000", AmountBasisCertifiedThisPeriod},
		{"nothing recognisable", nil, decPtr("0"), "0", "0", AmountBasisNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			afp := newAFP("certified")
			afp.AmountPaid = tt.paid
			afp.CertifiedNetValue = tt.net
			afp.CertifiedThisPeriod = dec(tt.period)

			got, basis := ActualAmount(afp)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
			assert.Equal(t, tt.wantBasis, basis)
		})
	}

	t.Run("claimed amount is never recognised", func(t *testing.T) {
		afp := newAFP("submitted")
		afp.CertifiedThisPeriod = decimal.Zero
		got, _ := ActualAmount(afp)
		assert.True(t, got.IsZero())
	})
}

func TestDeriveCommitment(t *testing.T) {
	d := newTestDeriver()

	t.Run("signed contract yields commitment", func(t *testing.T) {
		c := newContract("signed", "60000")
		signed := fixedNow.Add(-24 * time.Hour)
		c.SignedDate = &signed

		out, err := d.DeriveCommitment(c)
		require.NoError(t, err)
		require.True(t, out.Eligible)
		require.NotNil(t, out.Commitment)
		assert.Equal(t, FactStatusSigned, out.TargetStatus())
		assert.True(t, dec("60000").Equal(out.Commitment.Amount))
		assert.Equal(t, signed, out.Commitment.CommittedDate)
		assert.Equal(t, "GBP", out.Commitment.Currency)
		assert.Equal(t, c.PackageID, out.Commitment.PackageID)
		assert.Equal(t, CurrentSchemaVersion, out.Commitment.SchemaVersion)
	})

	t.Run("active contract keeps contract currency and falls back to created date", func(t *testing.T) {
		c := newContract("ACTIVE", "1000")
		c.Currency = "EUR"
		out, err := d.DeriveCommitment(c)
		require.NoError(t, err)
		assert.Equal(t, FactStatusActive, out.TargetStatus())
		assert.Equal(t, "EUR", out.Commitment.Currency)
		assert.Equal(t, c.CreatedAt, out.Commitment.CommittedDate)
	})

	t.Run("draft contract is not eligible", func(t *testing.T) {
		out, err := d.DeriveCommitment(newContract("draft", "60000"))
		require.NoError(t, err)
		assert.False(t, out.Eligible)
		assert.Equal(t, FactStatusVoid, out.TargetStatus())
		assert.Nil(t, out.Commitment)
	})

	t.Run("zero value contract is not eligible", func(t *testing.T) {
		out, err := d.DeriveCommitment(newContract("signed", "0"))
		require.NoError(t, err)
		assert.False(t, out.Eligible)
	})

	t.Run("missing project is skippable", func(t *testing.T) {
		c := newContract("signed", "10")
		c.ProjectID = nil
		_, err := d.DeriveCommitment(c)
		require.Error(t, err)
		assert.True(t, IsSkippable(err))
	})
}

func TestDeriveActual(t *testing.T) {
	d := newTestDeriver()

	t.Run("certified AFP yields certified actual", func(t *testing.T) {
		afp := newAFP("certified")
		out, err := d.DeriveActual(afp, nil)
		require.NoError(t, err)
		require.True(t, out.Eligible)
		assert.Equal(t, FactStatusCertified, out.TargetStatus())
		assert.True(t, dec("20000").Equal(out.Amount()))
		assert.Nil(t, out.Actual.PaidDate)
		assert.Equal(t, afp.CreatedAt, out.Actual.IncurredDate)
	})

	t.Run("paid AFP yields paid actual with paid date", func(t *testing.T) {
		afp := newAFP("PAID")
		afp.AmountPaid = decPtr("20000")
		out, err := d.DeriveActual(afp, nil)
		require.NoError(t, err)
		assert.Equal(t, FactStatusPaid, out.TargetStatus())
		assert.Equal(t, AmountBasisAmountPaid, out.Basis)
		require.NotNil(t, out.Actual.PaidDate)
		assert.Equal(t, fixedNow, *out.Actual.PaidDate)
	})

	t.Run("partially paid counts as paid", func(t *testing.T) {
		out, err := d.DeriveActual(newAFP("PARTIALLY_PAID"), nil)
		require.NoError(t, err)
		assert.Equal(t, FactStatusPaid, out.TargetStatus())
	})

	t.Run("cancelled and rejected AFPs are excluded", func(t *testing.T) {
		for _, s := range []string{"CANCELLED", "rejected"} {
			out, err := d.DeriveActual(newAFP(s), nil)
			require.NoError(t, err)
			assert.False(t, out.Eligible, s)
		}
	})

	t.Run("project and package come from the contract", func(t *testing.T) {
		c := newContract("signed", "60000")
		c.Currency = "USD"
		afp := newAFP("certified")
		afp.ProjectID = nil
		out, err := d.DeriveActual(afp, c)
		require.NoError(t, err)
		assert.Equal(t, *c.ProjectID, out.Actual.ProjectID)
		assert.Equal(t, c.PackageID, out.Actual.PackageID)
		assert.Equal(t, "USD", out.Actual.Currency)
	})

	t.Run("own project wins over contract project", func(t *testing.T) {
		c := newContract("signed", "60000")
		afp := newAFP("certified")
		out, err := d.DeriveActual(afp, c)
		require.NoError(t, err)
		assert.Equal(t, *afp.ProjectID, out.Actual.ProjectID)
	})

	t.Run("no resolvable project is skipped", func(t *testing.T) {
		afp := newAFP("certified")
		afp.ProjectID = nil
		_, err := d.DeriveActual(afp, nil)
		assert.ErrorIs(t, err, ErrUnresolvedProject)
	})

	t.Run("zero amount is not eligible", func(t *testing.T) {
		afp := newAFP("submitted")
		afp.CertifiedThisPeriod = decimal.Zero
		out, err := d.DeriveActual(afp, nil)
		require.NoError(t, err)
		assert.False(t, out.Eligible)
	})
}

func TestDerivationSchema(t *testing.T) {
	schema := NewDerivationSchema(newTestDeriver())

	t.Run("dispatches contracts and payment applications", func(t *testing.T) {
		out, err := schema.Derive(newContract("signed", "5"))
		require.NoError(t, err)
		assert.Equal(t, SourceTypeContract, out.Key.SourceType)

		out, err = schema.Derive(&PaymentApplication{ApplicationForPayment: newAFP("certified")})
		require.NoError(t, err)
		assert.Equal(t, SourceTypePaymentApplication, out.Key.SourceType)

		out, err = schema.Derive(newAFP("certified"))
		require.NoError(t, err)
		assert.True(t, out.Eligible)
	})

	t.Run("lists supported source types in order", func(t *testing.T) {
		assert.Equal(t, []SourceType{SourceTypeContract, SourceTypePaymentApplication}, schema.SourceTypes())
		assert.Equal(t, CurrentSchemaVersion, schema.Version)
	})

	t.Run("rejects source types outside the schema", func(t *testing.T) {
		partial := &DerivationSchema{Version: 1, deriver: newTestDeriver(), rules: map[SourceType]deriveRule{}}
		_, err := partial.Derive(newContract("signed", "5"))
		assert.ErrorIs(t, err, ErrUnsupportedSourceType)
	})
}

func TestParseSourceType(t *testing.T) {
	st, err := ParseSourceType("payment_application")
	require.NoError(t, err)
	assert.Equal(t, SourceTypePaymentApplication, st)

	_, err = ParseSourceType("INVOICE")
	assert.ErrorIs(t, err, ErrUnsupportedSourceType)
}
