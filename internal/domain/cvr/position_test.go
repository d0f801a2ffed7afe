package cvr

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatePosition(t *testing.T) {
	projectID := uuid.New()
	pkg1 := Package{ID: uuid.New(), ProjectID: projectID, Code: "P1", Name: "Groundworks"}

	t.Run("single package scenario", func(t *testing.T) {
		lines := []BudgetLine{{ID: uuid.New(), PackageID: &pkg1.ID, Code: "B1", PlannedAmount: decPtr("100000")}}
		commitments := []CommitmentFact{{PackageID: &pkg1.ID, Amount: dec("60000"), Status: FactStatusSigned}}
		actuals := []ActualFact{{PackageID: &pkg1.ID, Amount: dec("20000"), Status: FactStatusCertified}}

		pos := AggregatePosition(projectID, lines, commitments, actuals, []Package{pkg1})

		require.Len(t, pos.Entries, 1)
		e := pos.Entries[0]
		assert.Equal(t, pkg1.ID.String(), e.PackageID)
		assert.Equal(t, "Groundworks", e.PackageName)
		assert.True(t, dec("100000").Equal(e.Budget))
		assert.True(t, dec("60000").Equal(e.Committed))
		assert.True(t, dec("20000").Equal(e.Actual))
		assert.True(t, dec("40000").Equal(e.Variance))
		assert.True(t, dec("80000").Equal(e.Remaining))
		assert.True(t, dec("40000").Equal(pos.TotalVariance))
		assert.True(t, dec("80000").Equal(pos.TotalRemaining))
		require.Len(t, e.BudgetLines, 1)
		assert.Equal(t, "B1", e.BudgetLines[0].Code)
	})

	t.Run("planned amount wins over amount", func(t *testing.T) {
		lines := []BudgetLine{
			{ID: uuid.New(), PlannedAmount: decPtr("50"), Amount: decPtr("70")},
			{ID: uuid.New(), Amount: decPtr("30")},
			{ID: uuid.New()},
		}
		pos := AggregatePosition(projectID, lines, nil, nil, nil)
		assert.True(t, dec("80").Equal(pos.TotalBudget))
	})

	t.Run("unallocated sentinel and unknown package names", func(t *testing.T) {
		stray := uuid.New()
		lines := []BudgetLine{{ID: uuid.New(), Amount: decPtr("10")}}
		commitments := []CommitmentFact{{PackageID: &stray, Amount: dec("5"), Status: FactStatusActive}}
		pos := AggregatePosition(projectID, lines, commitments, nil, nil)

		un := pos.Entry(UnallocatedPackageKey)
		require.NotNil(t, un)
		assert.Equal(t, UnallocatedPackageName, un.PackageName)
		assert.True(t, dec("10").Equal(un.Budget))

		unknown := pos.Entry(stray.String())
		require.NotNil(t, unknown)
		assert.Equal(t, UnknownPackageName, unknown.PackageName)
		assert.True(t, dec("-5").Equal(unknown.Variance))
	})

	t.Run("void facts are ignored", func(t *testing.T) {
		commitments := []CommitmentFact{{PackageID: &pkg1.ID, Amount: dec("60000"), Status: FactStatusVoid}}
		actuals := []ActualFact{{PackageID: &pkg1.ID, Amount: dec("1"), Status: FactStatusVoid}}
		pos := AggregatePosition(projectID, nil, commitments, actuals, []Package{pkg1})
		assert.True(t, pos.TotalCommitted.IsZero())
		assert.True(t, pos.TotalActual.IsZero())
	})

	t.Run("empty project has zero totals and no entries", func(t *testing.T) {
		pos := AggregatePosition(projectID, nil, nil, nil, nil)
		assert.Empty(t, pos.Entries)
		assert.True(t, pos.TotalBudget.IsZero())
		assert.Equal(t, projectID, pos.ProjectID)
	})
}

func TestAggregatePositionIsOrderIndependentAndAdditive(t *testing.T) {
	f := gofakeit.New(42)
	projectID := uuid.New()

	packages := make([]Package, 4)
	for i := range packages {
		packages[i] = Package{ID: uuid.New(), ProjectID: projectID, Name: f.Company()}
	}
	pick := func() *uuid.UUID {
		n := f.IntRange(0, len(packages))
		if n == len(packages) {
			return nil
		}
		return &packages[n].ID
	}
	amount := func() decimal.Decimal {
		return decimal.New(int64(f.IntRange(1, 1_000_000)), -2)
	}

	var lines []BudgetLine
	var commitments []CommitmentFact
	var actuals []ActualFact
	for i := 0; i < 60; i++ {
		a := amount()
		lines = append(lines, BudgetLine{ID: uuid.New(), PackageID: pick(), Code: f.LetterN(4), Amount: &a})
		commitments = append(commitments, CommitmentFact{PackageID: pick(), Amount: amount(), Status: FactStatusSigned})
		actuals = append(actuals, ActualFact{PackageID: pick(), Amount: amount(), Status: FactStatusPaid})
	}

	first := AggregatePosition(projectID, lines, commitments, actuals, packages)

	f.ShuffleAnySlice(lines)
	f.ShuffleAnySlice(commitments)
	f.ShuffleAnySlice(actuals)
	f.ShuffleAnySlice(packages)
	second := AggregatePosition(projectID, lines, commitments, actuals, packages)

	assert.Equal(t, first, second)

	budget, committed, actual := decimal.Zero, decimal.Zero, decimal.Zero
	for _, e := range first.Entries {
		budget = budget.Add(e.Budget)
		committed = committed.Add(e.Committed)
		actual = actual.Add(e.Actual)
		assert.True(t, e.Budget.Sub(e.Committed).Equal(e.Variance))
		assert.True(t, e.Budget.Sub(e.Actual).Equal(e.Remaining))
	}
	assert.True(t, budget.Equal(first.TotalBudget))
	assert.True(t, committed.Equal(first.TotalCommitted))
	assert.True(t, actual.Equal(first.TotalActual))
	assert.True(t, first.TotalBudget.Sub(first.TotalCommitted).Equal(first.TotalVariance))
}
