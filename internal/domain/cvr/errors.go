package cvr

import (
	"errors"
	"fmt"

	"github.com/erp/cvr/internal/domain/shared"
)

// Error codes raised by the CVR ledger
const (
	CodeUnresolvedProject     = "UNRESOLVED_PROJECT"
	CodeUnsupportedSourceType = "UNSUPPORTED_SOURCE_TYPE"
	CodeDerivationFailed      = "DERIVATION_FAILED"
	CodeBackfillInProgress    = "BACKFILL_IN_PROGRESS"
)

var (
	// ErrMissingTenant is returned when a query or backfill has no tenant scope
	ErrMissingTenant = shared.NewDomainError("INVALID_INPUT", "tenant id is required")
	// ErrMissingProject is returned when a position query has no project
	ErrMissingProject = shared.NewDomainError("INVALID_INPUT", "project id is required")
	// ErrUnresolvedProject marks a source document whose project cannot be
	// resolved. Such documents are skipped, not failed.
	ErrUnresolvedProject = shared.NewDomainError(CodeUnresolvedProject, "source document has no resolvable project")
	// ErrUnsupportedSourceType is returned for a source type missing from the derivation schema
	ErrUnsupportedSourceType = shared.NewDomainError(CodeUnsupportedSourceType, "unsupported source type")
	// ErrDerivationFailed is the parent of every per-document derivation error
	ErrDerivationFailed = shared.NewDomainError(CodeDerivationFailed, "fact derivation failed")
	// ErrBackfillInProgress is returned when the tenant already has a running backfill
	ErrBackfillInProgress = shared.NewDomainError(CodeBackfillInProgress, "a backfill is already running for this tenant")
	// ErrFactNotFound is returned when no fact exists for a source key
	ErrFactNotFound = shared.NewDomainError("NOT_FOUND", "ledger fact not found")
	// ErrSourceNotFound is returned when a source document does not exist
	ErrSourceNotFound = shared.NewDomainError("NOT_FOUND", "source document not found")
)

// DerivationError describes why a single source document could not be turned into a fact
type DerivationError struct {
	SourceType SourceType
	Field      string
	Value      string
	Reason     string
}

// Error implements the error interface
func (e *DerivationError) Error() string {
	return fmt.Sprintf("%s %s %q: %s", e.SourceType, e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrDerivationFailed)
func (e *DerivationError) Unwrap() error {
	return ErrDerivationFailed
}

func newUnknownStatusError(sourceType SourceType, raw string) error {
	return &DerivationError{SourceType: sourceType, Field: "status", Value: raw, Reason: "unknown status"}
}

// IsSkippable reports whether a per-document failure is a data gap that should be
// counted as skipped rather than as an error.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrUnresolvedProject)
}

// NewInvalidScopeError reports a malformed backfill scope
func NewInvalidScopeError(message string) error {
	return shared.NewDomainError("INVALID_INPUT", message)
}
