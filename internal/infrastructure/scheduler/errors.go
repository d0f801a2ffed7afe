package scheduler

import (
	"context"
	"errors"

	"github.com/erp/cvr/internal/domain/cvr"
)

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobCoalesced is returned when a job for the same scope is already outstanding
	ErrJobCoalesced = errors.New("backfill already pending for scope")
)

// isRetryable reports whether a failed job is worth another attempt. A pass
// already running for the tenant or a bad scope will not change on retry.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, cvr.ErrBackfillInProgress),
		errors.Is(err, cvr.ErrMissingTenant),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
