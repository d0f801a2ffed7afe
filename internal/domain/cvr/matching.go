package cvr

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchCandidate is a purchase order the matching service proposes for an invoice
type MatchCandidate struct {
	POID            uuid.UUID       `json:"poId"`
	Code            string          `json:"code"`
	Variance        decimal.Decimal `json:"variance"`
	WithinTolerance bool            `json:"withinTolerance"`
}

// MatchResult is the candidate list returned by an attempt
type MatchResult struct {
	Candidates []MatchCandidate `json:"candidates"`
}

// InvoiceMatcher is the invoice to purchase order matching service. The ledger
// consumes it as an opaque dependency; scoring lives elsewhere.
type InvoiceMatcher interface {
	AttemptMatch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*MatchResult, error)
	AcceptMatch(ctx context.Context, tenantID, poID, invoiceID uuid.UUID) error
}
