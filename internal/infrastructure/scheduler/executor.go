package scheduler

import (
	"context"

	"github.com/erp/cvr/internal/domain/cvr"
	"go.uber.org/zap"
)

// Backfiller runs one reconciliation pass
type Backfiller interface {
	Backfill(ctx context.Context, scope cvr.BackfillScope) (*cvr.BackfillReport, error)
}

// BackfillExecutor executes scheduled jobs through the reconciler
type BackfillExecutor struct {
	backfiller Backfiller
	logger     *zap.Logger
}

// NewBackfillExecutor creates a new executor
func NewBackfillExecutor(backfiller Backfiller, logger *zap.Logger) *BackfillExecutor {
	return &BackfillExecutor{backfiller: backfiller, logger: logger}
}

// Execute runs the job's backfill pass
func (e *BackfillExecutor) Execute(ctx context.Context, job *Job) error {
	report, err := e.backfiller.Backfill(ctx, job.Scope())
	if err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		e.logger.Warn("Scheduled backfill finished with document errors",
			zap.String("job_id", job.ID.String()),
			zap.String("run_id", report.RunID.String()),
			zap.Int("errors", len(report.Errors)),
		)
	}
	return nil
}
