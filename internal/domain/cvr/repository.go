package cvr

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceDocumentRepository reads the authoritative source documents. The
// ledger never writes to them.
type SourceDocumentRepository interface {
	// ListContracts returns up to limit contracts with id > afterID, ordered by id
	ListContracts(ctx context.Context, filter SourceFilter, afterID uuid.UUID, limit int) ([]Contract, error)

	// ListPaymentApplications returns up to limit AFPs with id > afterID, ordered by
	// id, each paired with its contract when linked
	ListPaymentApplications(ctx context.Context, filter SourceFilter, afterID uuid.UUID, limit int) ([]PaymentApplication, error)

	// FindContract returns ErrSourceNotFound when missing
	FindContract(ctx context.Context, tenantID, id uuid.UUID) (*Contract, error)

	// FindPaymentApplication returns ErrSourceNotFound when missing
	FindPaymentApplication(ctx context.Context, tenantID, id uuid.UUID) (*PaymentApplication, error)

	// ListBudgetLines returns every budget line of a project
	ListBudgetLines(ctx context.Context, tenantID, projectID uuid.UUID) ([]BudgetLine, error)
}

// PackageRepository reads packages and maintains the cached actual cost rollup
type PackageRepository interface {
	ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]Package, error)

	// RecomputeActualCost sets actual_cost to the sum of PAID actual facts for every
	// package of the tenant, optionally narrowed to a project or explicit ids.
	// Returns the number of packages written.
	RecomputeActualCost(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID, packageIDs []uuid.UUID, at time.Time) (int64, error)
}

// CommitmentFactRepository persists commitment facts
type CommitmentFactRepository interface {
	// FindByKey returns ErrFactNotFound when no fact exists
	FindByKey(ctx context.Context, key FactKey) (*CommitmentFact, error)

	// InsertIfAbsent inserts the fact unless one with the same key exists.
	// Returns true when this call created the row.
	InsertIfAbsent(ctx context.Context, fact *CommitmentFact) (bool, error)

	// CompareAndSetStatus moves the fact from one status to another. Returns false
	// when the stored status was no longer from.
	CompareAndSetStatus(ctx context.Context, key FactKey, from, to FactStatus, at time.Time) (bool, error)

	// ResnapshotAmount overwrites the snapshot amount. Only explicit corrections call it.
	ResnapshotAmount(ctx context.Context, key FactKey, amount decimal.Decimal, schemaVersion int, at time.Time) error

	// ListByProject returns facts of a project; statuses narrows the result when non-empty
	ListByProject(ctx context.Context, tenantID, projectID uuid.UUID, statuses []FactStatus) ([]CommitmentFact, error)
}

// ActualFactRepository persists actual facts
type ActualFactRepository interface {
	// FindByKey returns ErrFactNotFound when no fact exists
	FindByKey(ctx context.Context, key FactKey) (*ActualFact, error)

	// InsertIfAbsent inserts the fact unless one with the same key exists.
	// Returns true when this call created the row.
	InsertIfAbsent(ctx context.Context, fact *ActualFact) (bool, error)

	// CompareAndSetStatus moves the fact from one status to another and sets
	// paid_date to paidDate. Returns false when the stored status was no longer from.
	CompareAndSetStatus(ctx context.Context, key FactKey, from, to FactStatus, paidDate *time.Time, at time.Time) (bool, error)

	// ResnapshotAmount overwrites the snapshot amount. Only explicit corrections call it.
	ResnapshotAmount(ctx context.Context, key FactKey, amount decimal.Decimal, schemaVersion int, at time.Time) error

	// ListByProject returns facts of a project; statuses narrows the result when non-empty
	ListByProject(ctx context.Context, tenantID, projectID uuid.UUID, statuses []FactStatus) ([]ActualFact, error)
}

// BackfillRunRepository stores the history of reconciliation passes
type BackfillRunRepository interface {
	Create(ctx context.Context, run *BackfillRun) error
	Complete(ctx context.Context, run *BackfillRun) error
	ListRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]BackfillRun, error)
}
