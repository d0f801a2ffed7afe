package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one queued backfill pass. A job owns its scope from submission
// until it succeeds or gives up retrying.
type Job struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ProjectID   *uuid.UUID
	Trigger     cvr.BackfillTrigger
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

func NewJob(tenantID uuid.UUID, projectID *uuid.UUID, trigger cvr.BackfillTrigger, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ProjectID:  projectID,
		Trigger:    trigger,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Scope returns the backfill scope the job runs
func (j *Job) Scope() cvr.BackfillScope {
	return cvr.BackfillScope{TenantID: j.TenantID, ProjectID: j.ProjectID, Trigger: j.Trigger}
}

// Key identifies the job's scope: the tenant, narrowed by project when set
func (j *Job) Key() string {
	if j.ProjectID == nil {
		return j.TenantID.String()
	}
	return j.TenantID.String() + "/" + j.ProjectID.String()
}

func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the job back to pending, due after delay
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
}

type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobExecutorFunc adapts a function to JobExecutor
type JobExecutorFunc func(ctx context.Context, job *Job) error

func (f JobExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

type SchedulerConfig struct {
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 2,
		QueueSize:         100,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Minute,
	}
}

// Scheduler runs backfill jobs on a fixed worker pool. At most one job per
// scope is queued, running or waiting to retry; later submissions for that
// scope are coalesced into it.
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	log      *zap.Logger

	jobs   chan *Job
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	owners  map[string]uuid.UUID // scope key -> owning job
	retries map[uuid.UUID]*time.Timer
}

func NewScheduler(config SchedulerConfig, executor JobExecutor, log *zap.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		log:      log,
		jobs:     make(chan *Job, config.QueueSize),
		owners:   make(map[string]uuid.UUID),
		retries:  make(map[uuid.UUID]*time.Timer),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	s.log.Info("Backfill scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop drops pending retries, cancels running jobs and waits for the workers.
// A cancelled backfill stops between sub-batches and is recorded as interrupted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	for id, t := range s.retries {
		t.Stop()
		delete(s.retries, id)
	}
	close(s.jobs)
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("Backfill scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("Backfill scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pending returns how many scopes have a job queued, running or awaiting retry
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owners)
}

// SubmitJob queues a job without blocking. ErrJobCoalesced means a job for
// the same scope is already outstanding and will cover this request.
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerNotRunning
	}
	key := job.Key()
	if owner, ok := s.owners[key]; ok && owner != job.ID {
		return ErrJobCoalesced
	}

	select {
	case s.jobs <- job:
		s.owners[key] = job.ID
		s.log.Debug("Backfill job queued",
			zap.String("job_id", job.ID.String()),
			zap.String("scope", key),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) ScheduleBackfill(tenantID uuid.UUID, projectID *uuid.UUID, trigger cvr.BackfillTrigger) error {
	return s.SubmitJob(NewJob(tenantID, projectID, trigger, s.config.RetryAttempts))
}

// release gives up the job's scope so new submissions are accepted
func (s *Scheduler) release(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[job.Key()] == job.ID {
		delete(s.owners, job.Key())
	}
	delete(s.retries, job.ID)
}

func (s *Scheduler) retryLater(job *Job, log *zap.Logger) {
	job.ScheduleRetry(s.config.RetryDelay)
	log.Info("Backfill job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", s.config.RetryDelay),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.retries[job.ID] = time.AfterFunc(s.config.RetryDelay, func() {
		s.mu.Lock()
		delete(s.retries, job.ID)
		s.mu.Unlock()
		if err := s.SubmitJob(job); err != nil {
			log.Warn("Backfill retry dropped", zap.Error(err))
			s.release(job)
		}
	})
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.run(ctx, job, id)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job, workerID int) {
	log := s.log.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("trigger", string(job.Trigger)),
	)
	job.Start()
	log.Info("Running backfill job", zap.Int("retry_count", job.RetryCount))

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	cancel()

	switch {
	case err == nil:
		job.Complete()
		log.Info("Backfill job completed")
	case !isRetryable(err) || ctx.Err() != nil:
		job.Fail(err.Error())
		log.Warn("Backfill job not retried", zap.Error(err))
	default:
		job.Fail(err.Error())
		log.Error("Backfill job failed", zap.Error(err))
		if job.ShouldRetry() {
			s.retryLater(job, log)
			return
		}
	}
	s.release(job)
}
