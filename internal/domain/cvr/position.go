package cvr

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel package key and names used by the aggregation
const (
	UnallocatedPackageKey  = "unallocated"
	UnallocatedPackageName = "Unallocated"
	UnknownPackageName     = "Unknown Package"
)

// PackageKey maps an optional package id to its aggregation bucket
func PackageKey(packageID *uuid.UUID) string {
	if packageID == nil || *packageID == uuid.Nil {
		return UnallocatedPackageKey
	}
	return packageID.String()
}

// BudgetLineRef is the budget line detail carried in a package position
type BudgetLineRef struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// PackagePosition is the per-package row of the financial position
type PackagePosition struct {
	PackageID   string          `json:"packageId"`
	PackageName string          `json:"packageName"`
	Budget      decimal.Decimal `json:"budget"`
	Committed   decimal.Decimal `json:"committed"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	Remaining   decimal.Decimal `json:"remaining"`
	BudgetLines []BudgetLineRef `json:"budgetLines"`
}

// FinancialPosition is a project's Budget/Committed/Actual view
type FinancialPosition struct {
	ProjectID      uuid.UUID         `json:"projectId"`
	TotalBudget    decimal.Decimal   `json:"totalBudget"`
	TotalCommitted decimal.Decimal   `json:"totalCommitted"`
	TotalActual    decimal.Decimal   `json:"totalActual"`
	TotalVariance  decimal.Decimal   `json:"totalVariance"`
	TotalRemaining decimal.Decimal   `json:"totalRemaining"`
	Entries        []PackagePosition `json:"entries"`
}

// Entry returns the row for a package key, or nil
func (p *FinancialPosition) Entry(key string) *PackagePosition {
	for i := range p.Entries {
		if p.Entries[i].PackageID == key {
			return &p.Entries[i]
		}
	}
	return nil
}

// AggregatePosition folds budget lines and eligible facts into a financial
// position. Voided facts are ignored even if a caller passes them in. The
// result does not depend on input order.
func AggregatePosition(
	projectID uuid.UUID,
	lines []BudgetLine,
	commitments []CommitmentFact,
	actuals []ActualFact,
	packages []Package,
) *FinancialPosition {
	names := make(map[string]string, len(packages))
	for _, p := range packages {
		names[p.ID.String()] = p.Name
	}

	rows := make(map[string]*PackagePosition)
	row := func(packageID *uuid.UUID) *PackagePosition {
		key := PackageKey(packageID)
		if r, ok := rows[key]; ok {
			return r
		}
		name := UnallocatedPackageName
		if key != UnallocatedPackageKey {
			name = UnknownPackageName
			if n, ok := names[key]; ok {
				name = n
			}
		}
		r := &PackagePosition{
			PackageID:   key,
			PackageName: name,
			Budget:      decimal.Zero,
			Committed:   decimal.Zero,
			Actual:      decimal.Zero,
			BudgetLines: []BudgetLineRef{},
		}
		rows[key] = r
		return r
	}

	for i := range lines {
		l := &lines[i]
		amount := l.BudgetAmount()
		r := row(l.PackageID)
		r.Budget = r.Budget.Add(amount)
		r.BudgetLines = append(r.BudgetLines, BudgetLineRef{
			ID: l.ID, Code: l.Code, Description: l.Description, Amount: amount,
		})
	}
	for i := range commitments {
		f := &commitments[i]
		if f.Status.IsVoid() {
			continue
		}
		r := row(f.PackageID)
		r.Committed = r.Committed.Add(f.Amount)
	}
	for i := range actuals {
		f := &actuals[i]
		if f.Status.IsVoid() {
			continue
		}
		r := row(f.PackageID)
		r.Actual = r.Actual.Add(f.Amount)
	}

	pos := &FinancialPosition{
		ProjectID:      projectID,
		TotalBudget:    decimal.Zero,
		TotalCommitted: decimal.Zero,
		TotalActual:    decimal.Zero,
		Entries:        make([]PackagePosition, 0, len(rows)),
	}
	for _, r := range rows {
		r.Variance = r.Budget.Sub(r.Committed)
		r.Remaining = r.Budget.Sub(r.Actual)
		sort.Slice(r.BudgetLines, func(i, j int) bool {
			if r.BudgetLines[i].Code != r.BudgetLines[j].Code {
				return r.BudgetLines[i].Code < r.BudgetLines[j].Code
			}
			return r.BudgetLines[i].ID.String() < r.BudgetLines[j].ID.String()
		})
		pos.TotalBudget = pos.TotalBudget.Add(r.Budget)
		pos.TotalCommitted = pos.TotalCommitted.Add(r.Committed)
		pos.TotalActual = pos.TotalActual.Add(r.Actual)
		pos.Entries = append(pos.Entries, *r)
	}
	pos.TotalVariance = pos.TotalBudget.Sub(pos.TotalCommitted)
	pos.TotalRemaining = pos.TotalBudget.Sub(pos.TotalActual)

	sort.Slice(pos.Entries, func(i, j int) bool {
		a, b := pos.Entries[i], pos.Entries[j]
		if a.PackageName != b.PackageName {
			return a.PackageName < b.PackageName
		}
		return a.PackageID < b.PackageID
	})
	return pos
}
