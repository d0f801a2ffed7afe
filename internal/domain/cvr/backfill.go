package cvr

import (
	"time"

	"github.com/google/uuid"
)

// DefaultBatchSize bounds the documents read per sub-batch
const (
	DefaultBatchSize = 200
	MaxBatchSize     = 5000
)

// BackfillTrigger records who started a run
type BackfillTrigger string

const (
	BackfillTriggerAPI      BackfillTrigger = "api"
	BackfillTriggerSchedule BackfillTrigger = "schedule"
	BackfillTriggerCLI      BackfillTrigger = "cli"
)

// BackfillScope parameterises a reconciliation pass
type BackfillScope struct {
	TenantID    uuid.UUID
	ProjectID   *uuid.UUID
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	BatchSize   int
	Trigger     BackfillTrigger
}

// Validate checks the scope and fills defaults
func (s *BackfillScope) Validate() error {
	if s.TenantID == uuid.Nil {
		return ErrMissingTenant
	}
	if s.UpdatedFrom != nil && s.UpdatedTo != nil && s.UpdatedTo.Before(*s.UpdatedFrom) {
		return NewInvalidScopeError("updated_to is before updated_from")
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.BatchSize > MaxBatchSize {
		s.BatchSize = MaxBatchSize
	}
	if s.Trigger == "" {
		s.Trigger = BackfillTriggerAPI
	}
	return nil
}

// SourceFilter narrows a source document scan
type SourceFilter struct {
	TenantID    uuid.UUID
	ProjectID   *uuid.UUID
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
}

// Filter returns the source filter of the scope
func (s *BackfillScope) Filter() SourceFilter {
	return SourceFilter{
		TenantID:    s.TenantID,
		ProjectID:   s.ProjectID,
		UpdatedFrom: s.UpdatedFrom,
		UpdatedTo:   s.UpdatedTo,
	}
}

// ReconcileOutcome is what happened to one document
type ReconcileOutcome string

const (
	OutcomeCreated ReconcileOutcome = "created"
	OutcomeUpdated ReconcileOutcome = "updated"
	OutcomeSkipped ReconcileOutcome = "skipped"
	OutcomeError   ReconcileOutcome = "error"
)

// ReconcileCounts tallies outcomes for one fact kind
type ReconcileCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Record adds one outcome
func (c *ReconcileCounts) Record(o ReconcileOutcome) {
	switch o {
	case OutcomeCreated:
		c.Created++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeError:
		c.Errors++
	}
}

// Processed returns the number of documents visited
func (c ReconcileCounts) Processed() int {
	return c.Created + c.Updated + c.Skipped + c.Errors
}

// DocumentIssue identifies a document that was skipped for a data gap or failed
type DocumentIssue struct {
	SourceType SourceType `json:"sourceType"`
	SourceID   uuid.UUID  `json:"sourceId"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
}

// BackfillReport summarises a reconciliation pass
type BackfillReport struct {
	RunID              uuid.UUID       `json:"runId"`
	TenantID           uuid.UUID       `json:"tenantId"`
	ProjectID          *uuid.UUID      `json:"projectId,omitempty"`
	Commitments        ReconcileCounts `json:"commitments"`
	Actuals            ReconcileCounts `json:"actuals"`
	PackagesRecomputed int             `json:"packagesRecomputed"`
	Interrupted        bool            `json:"interrupted"`
	Skips              []DocumentIssue `json:"skips"`
	Errors             []DocumentIssue `json:"errors"`
	StartedAt          time.Time       `json:"startedAt"`
	CompletedAt        time.Time       `json:"completedAt"`
	DurationMs         int64           `json:"durationMs"`
}

// NewBackfillReport starts an empty report
func NewBackfillReport(scope BackfillScope, startedAt time.Time) *BackfillReport {
	return &BackfillReport{
		RunID:     uuid.New(),
		TenantID:  scope.TenantID,
		ProjectID: scope.ProjectID,
		Skips:     []DocumentIssue{},
		Errors:    []DocumentIssue{},
		StartedAt: startedAt,
	}
}

// Counts returns the tally for a source type
func (r *BackfillReport) Counts(t SourceType) *ReconcileCounts {
	if t == SourceTypeContract {
		return &r.Commitments
	}
	return &r.Actuals
}

// Finish stamps completion time and duration
func (r *BackfillReport) Finish(at time.Time) {
	r.CompletedAt = at
	r.DurationMs = at.Sub(r.StartedAt).Milliseconds()
}

// HasChanges reports whether the pass wrote anything
func (r *BackfillReport) HasChanges() bool {
	return r.Commitments.Created+r.Commitments.Updated+r.Actuals.Created+r.Actuals.Updated > 0
}

// BackfillRunStatus is the lifecycle status of a persisted run
type BackfillRunStatus string

const (
	BackfillRunRunning     BackfillRunStatus = "RUNNING"
	BackfillRunCompleted   BackfillRunStatus = "COMPLETED"
	BackfillRunInterrupted BackfillRunStatus = "INTERRUPTED"
	BackfillRunFailed      BackfillRunStatus = "FAILED"
)

// BackfillRun is the persisted history entry of a pass
type BackfillRun struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ProjectID   *uuid.UUID
	Trigger     BackfillTrigger
	Status      BackfillRunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Report      *BackfillReport
	Error       string
}
