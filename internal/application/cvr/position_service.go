package cvr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FinancialPositionService answers Budget/Committed/Actual queries from the
// ledger. It never reads contracts or AFPs directly.
type FinancialPositionService struct {
	sources     cvr.SourceDocumentRepository
	packages    cvr.PackageRepository
	commitments cvr.CommitmentFactRepository
	actuals     cvr.ActualFactRepository
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
}

// NewFinancialPositionService creates the query service
func NewFinancialPositionService(repos Repositories, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *FinancialPositionService {
	return &FinancialPositionService{
		sources:     repos.Sources,
		packages:    repos.Packages,
		commitments: repos.Commitments,
		actuals:     repos.Actuals,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetFinancialPosition aggregates a project's position. Both ids are required;
// a missing id is an input error, never an empty position.
func (s *FinancialPositionService) GetFinancialPosition(ctx context.Context, tenantID, projectID uuid.UUID) (pos *cvr.FinancialPosition, err error) {
	if tenantID == uuid.Nil {
		return nil, cvr.ErrMissingTenant
	}
	if projectID == uuid.Nil {
		return nil, cvr.ErrMissingProject
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "financial_position", "get")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrProjectID, projectID.String(),
	)

	started := time.Now()
	defer func() {
		s.metrics.RecordPositionQuery(ctx, time.Since(started), err != nil)
	}()

	var (
		lines       []cvr.BudgetLine
		commitments []cvr.CommitmentFact
		actuals     []cvr.ActualFact
		packages    []cvr.Package
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lines, err = s.sources.ListBudgetLines(gctx, tenantID, projectID)
		if err != nil {
			return fmt.Errorf("list budget lines: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		commitments, err = s.commitments.ListByProject(gctx, tenantID, projectID, cvr.CommitmentEligibleStatuses())
		if err != nil {
			return fmt.Errorf("list commitment facts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		actuals, err = s.actuals.ListByProject(gctx, tenantID, projectID, cvr.ActualEligibleStatuses())
		if err != nil {
			return fmt.Errorf("list actual facts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		packages, err = s.packages.ListByProject(gctx, tenantID, projectID)
		if err != nil {
			return fmt.Errorf("list packages: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("financial position query failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	pos = cvr.AggregatePosition(projectID, lines, commitments, actuals, packages)
	telemetry.SetAttributes(span, "entries", len(pos.Entries))
	telemetry.SetOK(span)
	return pos, nil
}

// ListCommitmentFacts returns every commitment fact of a project, voided ones included
func (s *FinancialPositionService) ListCommitmentFacts(ctx context.Context, tenantID, projectID uuid.UUID) ([]cvr.FactView, error) {
	if err := requireScope(tenantID, projectID); err != nil {
		return nil, err
	}
	facts, err := s.commitments.ListByProject(ctx, tenantID, projectID, nil)
	if err != nil {
		return nil, fmt.Errorf("list commitment facts: %w", err)
	}
	out := make([]cvr.FactView, len(facts))
	for i := range facts {
		out[i] = facts[i].View()
	}
	return out, nil
}

// ListActualFacts returns every actual fact of a project, voided ones included
func (s *FinancialPositionService) ListActualFacts(ctx context.Context, tenantID, projectID uuid.UUID) ([]cvr.FactView, error) {
	if err := requireScope(tenantID, projectID); err != nil {
		return nil, err
	}
	facts, err := s.actuals.ListByProject(ctx, tenantID, projectID, nil)
	if err != nil {
		return nil, fmt.Errorf("list actual facts: %w", err)
	}
	out := make([]cvr.FactView, len(facts))
	for i := range facts {
		out[i] = facts[i].View()
	}
	return out, nil
}

// GetFact looks a fact up by its source key
func (s *FinancialPositionService) GetFact(ctx context.Context, key cvr.FactKey) (*cvr.FactView, error) {
	if key.TenantID == uuid.Nil {
		return nil, cvr.ErrMissingTenant
	}
	var (
		view cvr.FactView
		err  error
	)
	switch key.SourceType {
	case cvr.SourceTypeContract:
		var f *cvr.CommitmentFact
		if f, err = s.commitments.FindByKey(ctx, key); err == nil {
			view = f.View()
		}
	case cvr.SourceTypePaymentApplication:
		var f *cvr.ActualFact
		if f, err = s.actuals.FindByKey(ctx, key); err == nil {
			view = f.View()
		}
	default:
		return nil, fmt.Errorf("%w: %s", cvr.ErrUnsupportedSourceType, key.SourceType)
	}
	if err != nil {
		if errors.Is(err, cvr.ErrFactNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find fact %s: %w", key, err)
	}
	return &view, nil
}

func requireScope(tenantID, projectID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return cvr.ErrMissingTenant
	}
	if projectID == uuid.Nil {
		return cvr.ErrMissingProject
	}
	return nil
}
