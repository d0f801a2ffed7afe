package cvr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Locker is the advisory lock used to keep one backfill per tenant
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Repositories groups the stores the reconciler reads and writes
type Repositories struct {
	Sources     cvr.SourceDocumentRepository
	Packages    cvr.PackageRepository
	Commitments cvr.CommitmentFactRepository
	Actuals     cvr.ActualFactRepository
	Runs        cvr.BackfillRunRepository
}

// ReconcilerConfig tunes a reconciler
type ReconcilerConfig struct {
	BatchSize        int
	BatchesPerSecond float64 // 0 disables throttling
	LockTTL          time.Duration
	MaxStatusRetries int
}

// DefaultReconcilerConfig returns the defaults used when config leaves a field empty
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize:        cvr.DefaultBatchSize,
		LockTTL:          30 * time.Minute,
		MaxStatusRetries: 3,
	}
}

// Reconciler is the only writer of ledger facts. It derives facts from source
// documents and converges the fact store toward them, one document at a time.
type Reconciler struct {
	repos     Repositories
	schema    *cvr.DerivationSchema
	cfg       ReconcilerConfig
	limiter   *rate.Limiter
	locker    Locker
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// ReconcilerOption configures optional collaborators
type ReconcilerOption func(*Reconciler)

// WithLocker enables the per-tenant backfill lock
func WithLocker(l Locker) ReconcilerOption {
	return func(r *Reconciler) { r.locker = l }
}

// WithEventPublisher publishes fact events
func WithEventPublisher(p shared.EventPublisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = p }
}

// WithLedgerMetrics records reconciliation metrics
func WithLedgerMetrics(m *telemetry.LedgerMetrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler
func NewReconciler(repos Repositories, schema *cvr.DerivationSchema, cfg ReconcilerConfig, log *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	def := DefaultReconcilerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.MaxStatusRetries <= 0 {
		cfg.MaxStatusRetries = def.MaxStatusRetries
	}
	r := &Reconciler{
		repos:  repos,
		schema: schema,
		cfg:    cfg,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if cfg.BatchesPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// change is what applying one derivation did to the fact store
type change struct {
	outcome   cvr.ReconcileOutcome
	factID    uuid.UUID
	from, to  cvr.FactStatus
	packageID *uuid.UUID
	event     shared.DomainEvent
}

// Backfill runs one reconciliation pass over the scope. On a fatal error the
// partial report is returned alongside it.
func (r *Reconciler) Backfill(ctx context.Context, scope cvr.BackfillScope) (*cvr.BackfillReport, error) {
	if scope.BatchSize <= 0 {
		scope.BatchSize = r.cfg.BatchSize
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "reconciler", "backfill")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, scope.TenantID.String(),
		telemetry.SpanAttrBatchSize, scope.BatchSize,
	)
	if scope.ProjectID != nil {
		telemetry.SetAttributes(span, telemetry.SpanAttrProjectID, scope.ProjectID.String())
	}

	release, err := r.lockTenant(ctx, scope.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	report := cvr.NewBackfillReport(scope, r.now())
	telemetry.SetAttributes(span, telemetry.SpanAttrRunID, report.RunID.String())
	ctx = logger.WithRunID(logger.WithTenantID(ctx, scope.TenantID.String()), report.RunID.String())
	log := r.logger.With(
		zap.String("run_id", report.RunID.String()),
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("trigger", string(scope.Trigger)),
	)
	log.Info("backfill started", zap.Int("batch_size", scope.BatchSize))

	run := &cvr.BackfillRun{
		ID:        report.RunID,
		TenantID:  scope.TenantID,
		ProjectID: scope.ProjectID,
		Trigger:   scope.Trigger,
		Status:    cvr.BackfillRunRunning,
		StartedAt: report.StartedAt,
	}
	if r.repos.Runs != nil {
		if err := r.repos.Runs.Create(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("failed to record backfill run", zap.Error(err))
		}
	}

	telemetry.WithProfilingLabels(ctx, map[string]string{"operation": "backfill", "trigger": string(scope.Trigger)}, func(ctx context.Context) {
		err = r.scan(ctx, scope, report)
	})

	if err == nil {
		var n int64
		n, err = r.repos.Packages.RecomputeActualCost(ctx, scope.TenantID, scope.ProjectID, nil, r.now())
		if err != nil {
			err = fmt.Errorf("recompute package actual cost: %w", err)
		}
		report.PackagesRecomputed = int(n)
	}
	report.Finish(r.now())

	status := cvr.BackfillRunCompleted
	switch {
	case report.Interrupted:
		status = cvr.BackfillRunInterrupted
	case err != nil:
		status = cvr.BackfillRunFailed
	}
	r.finishRun(ctx, run, report, status, err, log)

	documents := report.Commitments.Processed() + report.Actuals.Processed()
	r.metrics.RecordBackfill(ctx, scope.TenantID, string(scope.Trigger), string(status), documents, report.PackagesRecomputed, time.Duration(report.DurationMs)*time.Millisecond)

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Any("commitments", report.Commitments),
		zap.Any("actuals", report.Actuals),
		zap.Int("packages_recomputed", report.PackagesRecomputed),
		zap.Int64("duration_ms", report.DurationMs),
	}
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("backfill failed", append(fields, zap.Error(err))...)
		return report, err
	}
	log.Info("backfill completed", fields...)
	r.publish(ctx, cvr.NewBackfillCompletedEvent(report))
	telemetry.SetOK(span)
	return report, nil
}

// lockTenant takes the tenant's advisory lock. The lock only prevents wasted
// work; concurrent passes would still converge.
func (r *Reconciler) lockTenant(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	key := "backfill:" + tenantID.String()
	token, ok, err := r.locker.TryLock(ctx, key, r.cfg.LockTTL)
	if err != nil {
		r.logger.Warn("backfill lock unavailable, continuing without it", zap.String("key", key), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, cvr.ErrBackfillInProgress
	}
	return func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			r.logger.Warn("failed to release backfill lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (r *Reconciler) finishRun(ctx context.Context, run *cvr.BackfillRun, report *cvr.BackfillReport, status cvr.BackfillRunStatus, runErr error, log *zap.Logger) {
	if r.repos.Runs == nil {
		return
	}
	completed := report.CompletedAt
	run.Status = status
	run.CompletedAt = &completed
	run.Report = report
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.repos.Runs.Complete(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("failed to complete backfill run record", zap.Error(err))
	}
}

// pageFunc lists one keyset page of a source type as source documents
type pageFunc func(ctx context.Context, filter cvr.SourceFilter, afterID uuid.UUID, limit int) ([]cvr.SourceDocument, error)

func (r *Reconciler) pager(t cvr.SourceType) pageFunc {
	switch t {
	case cvr.SourceTypeContract:
		return func(ctx context.Context, f cvr.SourceFilter, after uuid.UUID, limit int) ([]cvr.SourceDocument, error) {
			rows, err := r.repos.Sources.ListContracts(ctx, f, after, limit)
			if err != nil {
				return nil, err
			}
			docs := make([]cvr.SourceDocument, len(rows))
			for i := range rows {
				docs[i] = &rows[i]
			}
			return docs, nil
		}
	case cvr.SourceTypePaymentApplication:
		return func(ctx context.Context, f cvr.SourceFilter, after uuid.UUID, limit int) ([]cvr.SourceDocument, error) {
			rows, err := r.repos.Sources.ListPaymentApplications(ctx, f, after, limit)
			if err != nil {
				return nil, err
			}
			docs := make([]cvr.SourceDocument, len(rows))
			for i := range rows {
				docs[i] = &rows[i]
			}
			return docs, nil
		}
	}
	return nil
}

// scan walks every source type of the schema in keyset sub-batches
func (r *Reconciler) scan(ctx context.Context, scope cvr.BackfillScope, report *cvr.BackfillReport) error {
	filter := scope.Filter()
	for _, sourceType := range r.schema.SourceTypes() {
		page := r.pager(sourceType)
		if page == nil {
			return fmt.Errorf("%w: no reader for %s", cvr.ErrUnsupportedSourceType, sourceType)
		}

		after := uuid.Nil
		for {
			if err := r.pause(ctx); err != nil {
				report.Interrupted = true
				return fmt.Errorf("backfill stopped before %s page after %s: %w", sourceType, after, err)
			}
			docs, err := page(ctx, filter, after, scope.BatchSize)
			if err != nil {
				report.Interrupted = stopped(err)
				return fmt.Errorf("list %s after %s: %w", sourceType, after, err)
			}
			for _, doc := range docs {
				if err := r.reconcileInto(ctx, doc, report); err != nil {
					report.Interrupted = stopped(err)
					return err
				}
			}
			if len(docs) < scope.BatchSize {
				break
			}
			after = docs[len(docs)-1].SourceID()
		}
	}
	return nil
}

// pause is the cooperative stop point between sub-batches
func (r *Reconciler) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.limiter != nil {
		return r.limiter.Wait(ctx)
	}
	return nil
}

// reconcileInto applies one document and tallies it. Only fatal errors are returned.
func (r *Reconciler) reconcileInto(ctx context.Context, doc cvr.SourceDocument, report *cvr.BackfillReport) error {
	counts := report.Counts(doc.SourceType())
	c, err := r.reconcile(ctx, doc)
	switch {
	case err == nil:
		counts.Record(c.outcome)
	case isFatal(err):
		return fmt.Errorf("reconcile %s %s: %w", doc.SourceType(), doc.SourceID(), err)
	case cvr.IsSkippable(err):
		counts.Record(cvr.OutcomeSkipped)
		report.Skips = append(report.Skips, issue(doc, err))
		r.logger.Info("source document skipped",
			zap.String("source_type", string(doc.SourceType())),
			zap.String("source_id", doc.SourceID().String()),
			zap.String("reason", err.Error()),
		)
		c = change{outcome: cvr.OutcomeSkipped}
	default:
		counts.Record(cvr.OutcomeError)
		report.Errors = append(report.Errors, issue(doc, err))
		r.logger.Warn("source document failed to reconcile",
			zap.String("source_type", string(doc.SourceType())),
			zap.String("source_id", doc.SourceID().String()),
			zap.Error(err),
		)
		c = change{outcome: cvr.OutcomeError}
	}
	r.metrics.RecordDocument(ctx, report.TenantID, string(doc.SourceType()), string(c.outcome))
	return nil
}

func issue(doc cvr.SourceDocument, err error) cvr.DocumentIssue {
	code := shared.CodeOf(err)
	if code == "" {
		code = "WRITE_FAILED"
	}
	return cvr.DocumentIssue{
		SourceType: doc.SourceType(),
		SourceID:   doc.SourceID(),
		Code:       code,
		Message:    err.Error(),
	}
}

// stopped reports a pass ended by cancellation or deadline rather than by a fault
func stopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isFatal reports errors that mean the pass cannot continue
func isFatal(err error) bool {
	return stopped(err) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone)
}

// reconcile derives a document and applies the derivation
func (r *Reconciler) reconcile(ctx context.Context, doc cvr.SourceDocument) (change, error) {
	d, err := r.schema.Derive(doc)
	if err != nil {
		return change{}, err
	}
	return r.apply(ctx, d)
}

func (r *Reconciler) apply(ctx context.Context, d *cvr.Derivation) (change, error) {
	var (
		c   change
		err error
	)
	switch d.Key.SourceType {
	case cvr.SourceTypeContract:
		c, err = r.applyCommitment(ctx, d)
	case cvr.SourceTypePaymentApplication:
		c, err = r.applyActual(ctx, d)
	default:
		return change{}, fmt.Errorf("%w: %s", cvr.ErrUnsupportedSourceType, d.Key.SourceType)
	}
	if err != nil {
		return change{}, err
	}
	if c.event != nil {
		r.publish(ctx, c.event)
	}
	return c, nil
}

func (r *Reconciler) applyCommitment(ctx context.Context, d *cvr.Derivation) (change, error) {
	target := d.TargetStatus()
	for attempt := 0; ; attempt++ {
		existing, err := r.repos.Commitments.FindByKey(ctx, d.Key)
		if errors.Is(err, cvr.ErrFactNotFound) {
			if !d.Eligible {
				return change{outcome: cvr.OutcomeSkipped}, nil
			}
			created, err := r.repos.Commitments.InsertIfAbsent(ctx, d.Commitment)
			if err != nil {
				return change{}, fmt.Errorf("insert commitment fact: %w", err)
			}
			if created {
				return change{
					outcome:   cvr.OutcomeCreated,
					factID:    d.Commitment.ID,
					to:        target,
					packageID: d.Commitment.PackageID,
					event:     cvr.NewCommitmentFactRecordedEvent(d.Commitment),
				}, nil
			}
			// another writer inserted first; compare against its row
			if attempt >= r.cfg.MaxStatusRetries {
				return change{}, fmt.Errorf("commitment fact %s not visible after insert conflict: %w", d.Key, shared.ErrConcurrencyConflict)
			}
			continue
		}
		if err != nil {
			return change{}, fmt.Errorf("load commitment fact: %w", err)
		}
		if existing.Status == target {
			return change{outcome: cvr.OutcomeSkipped, factID: existing.ID, from: target, to: target}, nil
		}
		ok, err := r.repos.Commitments.CompareAndSetStatus(ctx, d.Key, existing.Status, target, r.now())
		if err != nil {
			return change{}, fmt.Errorf("update commitment fact status: %w", err)
		}
		if ok {
			return change{
				outcome:   cvr.OutcomeUpdated,
				factID:    existing.ID,
				from:      existing.Status,
				to:        target,
				packageID: existing.PackageID,
				event:     cvr.NewFactStatusChangedEvent(existing.ID, d.Key, existing.Status, target),
			}, nil
		}
		if attempt >= r.cfg.MaxStatusRetries {
			return change{}, fmt.Errorf("commitment fact %s: %w", d.Key, shared.ErrConcurrencyConflict)
		}
	}
}

func (r *Reconciler) applyActual(ctx context.Context, d *cvr.Derivation) (change, error) {
	target := d.TargetStatus()
	for attempt := 0; ; attempt++ {
		existing, err := r.repos.Actuals.FindByKey(ctx, d.Key)
		if errors.Is(err, cvr.ErrFactNotFound) {
			if !d.Eligible {
				return change{outcome: cvr.OutcomeSkipped}, nil
			}
			created, err := r.repos.Actuals.InsertIfAbsent(ctx, d.Actual)
			if err != nil {
				return change{}, fmt.Errorf("insert actual fact: %w", err)
			}
			if created {
				return change{
					outcome:   cvr.OutcomeCreated,
					factID:    d.Actual.ID,
					to:        target,
					packageID: d.Actual.PackageID,
					event:     cvr.NewActualFactRecordedEvent(d.Actual),
				}, nil
			}
			if attempt >= r.cfg.MaxStatusRetries {
				return change{}, fmt.Errorf("actual fact %s not visible after insert conflict: %w", d.Key, shared.ErrConcurrencyConflict)
			}
			continue
		}
		if err != nil {
			return change{}, fmt.Errorf("load actual fact: %w", err)
		}
		if existing.Status == target {
			return change{outcome: cvr.OutcomeSkipped, factID: existing.ID, from: target, to: target}, nil
		}

		// a voided fact keeps the paid date it had
		paidDate := existing.PaidDate
		if d.Actual != nil {
			paidDate = d.Actual.PaidDate
		}
		ok, err := r.repos.Actuals.CompareAndSetStatus(ctx, d.Key, existing.Status, target, paidDate, r.now())
		if err != nil {
			return change{}, fmt.Errorf("update actual fact status: %w", err)
		}
		if ok {
			return change{
				outcome:   cvr.OutcomeUpdated,
				factID:    existing.ID,
				from:      existing.Status,
				to:        target,
				packageID: existing.PackageID,
				event:     cvr.NewFactStatusChangedEvent(existing.ID, d.Key, existing.Status, target),
			}, nil
		}
		if attempt >= r.cfg.MaxStatusRetries {
			return change{}, fmt.Errorf("actual fact %s: %w", d.Key, shared.ErrConcurrencyConflict)
		}
	}
}

// publish is best effort; the facts are already durable
func (r *Reconciler) publish(ctx context.Context, events ...shared.DomainEvent) {
	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		r.logger.Warn("failed to publish ledger events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// RecentRuns lists the latest backfill runs of a tenant
func (r *Reconciler) RecentRuns(ctx context.Context, tenantID uuid.UUID, limit int) ([]cvr.BackfillRun, error) {
	if tenantID == uuid.Nil {
		return nil, cvr.ErrMissingTenant
	}
	if r.repos.Runs == nil {
		return []cvr.BackfillRun{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	runs, err := r.repos.Runs.ListRecent(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list backfill runs: %w", err)
	}
	return runs, nil
}
