package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider provides a list of tenants for scheduling
type TenantProvider interface {
	GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// IntervalTrigger enqueues a backfill per active tenant on a fixed interval
type IntervalTrigger struct {
	config         IntervalTriggerConfig
	scheduler      *Scheduler
	tenantProvider TenantProvider
	logger         *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(
	config IntervalTriggerConfig,
	scheduler *Scheduler,
	tenantProvider TenantProvider,
	logger *zap.Logger,
) *IntervalTrigger {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &IntervalTrigger{
		config:         config,
		scheduler:      scheduler,
		tenantProvider: tenantProvider,
		logger:         logger,
	}
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Backfill trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Backfill trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRun returns when tenants were last enqueued
func (t *IntervalTrigger) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.TriggerAll(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.TriggerAll(ctx)
		}
	}
}

// TriggerAll enqueues one scheduled backfill per active tenant and returns how
// many were queued
func (t *IntervalTrigger) TriggerAll(ctx context.Context) int {
	tenantIDs, err := t.tenantProvider.GetAllActiveTenantIDs(ctx)
	if err != nil {
		t.logger.Error("Failed to get tenant IDs for scheduled backfill", zap.Error(err))
		return 0
	}

	t.mu.Lock()
	t.lastRun = time.Now()
	t.mu.Unlock()

	queued, coalesced := 0, 0
	for _, tenantID := range tenantIDs {
		err := t.scheduler.ScheduleBackfill(tenantID, nil, cvr.BackfillTriggerSchedule)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrJobCoalesced):
			// the previous interval's pass for this tenant has not finished
			coalesced++
		default:
			t.logger.Error("Failed to schedule backfill for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	t.logger.Info("Scheduled backfill for tenants",
		zap.Int("tenant_count", len(tenantIDs)),
		zap.Int("queued", queued),
		zap.Int("coalesced", coalesced),
	)
	return queued
}
