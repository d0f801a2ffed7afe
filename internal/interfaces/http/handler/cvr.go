package handler

import (
	"context"
	"strconv"

	cvrapp "github.com/erp/cvr/internal/application/cvr"
	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CVRHandler serves the cost-value reconciliation ledger
type CVRHandler struct {
	BaseHandler
	reconciler *cvrapp.Reconciler
	positions  *cvrapp.FinancialPositionService
	matching   *cvrapp.MatchingService
	events     shared.EventPublisher
	runLimit   int
}

// NewCVRHandler creates a new CVRHandler
func NewCVRHandler(
	reconciler *cvrapp.Reconciler,
	positions *cvrapp.FinancialPositionService,
	matching *cvrapp.MatchingService,
	events shared.EventPublisher,
	runHistoryLimit int,
) *CVRHandler {
	return &CVRHandler{
		reconciler: reconciler,
		positions:  positions,
		matching:   matching,
		events:     events,
		runLimit:   runHistoryLimit,
	}
}

// GetFinancialPosition godoc
// @ID           getCvrFinancialPosition
// @Summary      Get a project's financial position
// @Description  Budget, committed and actual cost per package with variance and remaining budget
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        project_id   path      string  true   "Project ID"  format(uuid)
// @Success      200          {object}  APIResponse[cvr.FinancialPosition]
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Failure      500          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/projects/{project_id}/financial-position [get]
func (h *CVRHandler) GetFinancialPosition(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}
	projectID, ok := parseUUIDParam(c, "project_id")
	if !ok {
		h.BadRequest(c, "Invalid project ID format")
		return
	}

	pos, err := h.positions.GetFinancialPosition(c.Request.Context(), tenantID, projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pos)
}

// RunBackfill godoc
// @ID           runCvrBackfill
// @Summary      Run a reconciliation backfill
// @Description  Derives missing facts and corrects stale statuses for the tenant, optionally narrowed to a project and an update window. Runs synchronously and returns the report.
// @Tags         cvr
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header    string           false  "Tenant ID (when not carried by the token)"
// @Param        request      body      BackfillRequest  false  "Backfill scope"
// @Success      200          {object}  APIResponse[cvr.BackfillReport]
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Failure      409          {object}  ErrorResponse
// @Failure      429          {object}  ErrorResponse
// @Failure      500          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/backfill [post]
func (h *CVRHandler) RunBackfill(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	var req BackfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	report, err := h.reconciler.Backfill(c.Request.Context(), req.Scope(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ListBackfillRuns godoc
// @ID           listCvrBackfillRuns
// @Summary      List recent backfill runs
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        limit        query     int     false  "Maximum runs to return"  minimum(1)  maximum(100)
// @Success      200          {object}  APIResponse[[]BackfillRunResponse]
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/backfill/runs [get]
func (h *CVRHandler) ListBackfillRuns(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	limit := h.runLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			h.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.reconciler.RecentRuns(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBackfillRunResponses(runs))
}

// ListCommitments godoc
// @ID           listCvrCommitments
// @Summary      List a project's commitment facts
// @Description  Includes voided facts so corrections stay visible
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        project_id   query     string  true   "Project ID"  format(uuid)
// @Success      200          {object}  APIResponse[[]cvr.FactView]
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/facts/commitments [get]
func (h *CVRHandler) ListCommitments(c *gin.Context) {
	h.listFacts(c, h.positions.ListCommitmentFacts)
}

// ListActuals godoc
// @ID           listCvrActuals
// @Summary      List a project's actual cost facts
// @Description  Includes voided facts so corrections stay visible
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        project_id   query     string  true   "Project ID"  format(uuid)
// @Success      200          {object}  APIResponse[[]cvr.FactView]
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/facts/actuals [get]
func (h *CVRHandler) ListActuals(c *gin.Context) {
	h.listFacts(c, h.positions.ListActualFacts)
}

func (h *CVRHandler) listFacts(c *gin.Context, list func(ctx context.Context, tenantID, projectID uuid.UUID) ([]cvr.FactView, error)) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		h.BadRequest(c, "project_id query parameter must be a UUID")
		return
	}

	facts, err := list(c.Request.Context(), tenantID, projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, facts)
}

// GetFact godoc
// @ID           getCvrFact
// @Summary      Get the fact derived from a source document
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        source_type  path      string  true   "Source type"  Enums(CONTRACT, PAYMENT_APPLICATION)
// @Param        source_id    path      string  true   "Source document ID"  format(uuid)
// @Success      200          {object}  APIResponse[cvr.FactView]
// @Failure      400          {object}  ErrorResponse
// @Failure      404          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/facts/{source_type}/{source_id} [get]
func (h *CVRHandler) GetFact(c *gin.Context) {
	key, ok := h.factKey(c)
	if !ok {
		return
	}
	view, err := h.positions.GetFact(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// RederiveFact godoc
// @ID           rederiveCvrFact
// @Summary      Re-snapshot a fact's amount from its source document
// @Description  Data correction for amounts changed after derivation. Voided facts cannot be re-derived.
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        source_type  path      string  true   "Source type"  Enums(CONTRACT, PAYMENT_APPLICATION)
// @Param        source_id    path      string  true   "Source document ID"  format(uuid)
// @Success      200          {object}  APIResponse[cvr.FactView]
// @Failure      400          {object}  ErrorResponse
// @Failure      404          {object}  ErrorResponse
// @Failure      422          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/facts/{source_type}/{source_id}/rederive [post]
func (h *CVRHandler) RederiveFact(c *gin.Context) {
	key, ok := h.factKey(c)
	if !ok {
		return
	}
	view, err := h.reconciler.RederiveAmount(c.Request.Context(), key.TenantID, key.SourceType, key.SourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

func (h *CVRHandler) factKey(c *gin.Context) (cvr.FactKey, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return cvr.FactKey{}, false
	}
	sourceType, err := cvr.ParseSourceType(c.Param("source_type"))
	if err != nil {
		h.HandleError(c, err)
		return cvr.FactKey{}, false
	}
	sourceID, ok := parseUUIDParam(c, "source_id")
	if !ok {
		h.BadRequest(c, "Invalid source ID format")
		return cvr.FactKey{}, false
	}
	return cvr.FactKey{TenantID: tenantID, SourceType: sourceType, SourceID: sourceID}, true
}

// NotifySourceEvent godoc
// @ID           notifyCvrSourceEvent
// @Summary      Notify the ledger of a changed source document
// @Description  Reconciles the document immediately. Redelivered event ids are acknowledged without reprocessing.
// @Tags         cvr
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header    string              false  "Tenant ID (when not carried by the token)"
// @Param        request      body      SourceEventRequest  true   "Source event"
// @Success      202          {object}  APIResponse[SourceEventAccepted]
// @Failure      400          {object}  ErrorResponse
// @Failure      422          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/source-events [post]
func (h *CVRHandler) NotifySourceEvent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	var req SourceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	sourceType, _ := cvr.ParseSourceType(req.SourceType)
	eventID := uuid.MustParse(req.EventID)

	event := cvr.NewSourceDocumentChangedEvent(eventID, tenantID, sourceType, uuid.MustParse(req.SourceID))
	if err := h.events.Publish(c.Request.Context(), event); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, SourceEventAccepted{EventID: eventID})
}

// AttemptMatch godoc
// @ID           attemptCvrInvoiceMatch
// @Summary      Ask the matching service for purchase order candidates
// @Tags         cvr
// @Produce      json
// @Param        X-Tenant-ID  header    string  false  "Tenant ID (when not carried by the token)"
// @Param        invoice_id   path      string  true   "Invoice ID"  format(uuid)
// @Success      200          {object}  APIResponse[cvr.MatchResult]
// @Failure      400          {object}  ErrorResponse
// @Failure      404          {object}  ErrorResponse
// @Failure      503          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/invoices/{invoice_id}/match-attempts [post]
func (h *CVRHandler) AttemptMatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}
	invoiceID, ok := parseUUIDParam(c, "invoice_id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	result, err := h.matching.AttemptMatch(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AcceptMatch godoc
// @ID           acceptCvrInvoiceMatch
// @Summary      Accept a purchase order match for an invoice
// @Tags         cvr
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header    string              false  "Tenant ID (when not carried by the token)"
// @Param        invoice_id   path      string              true   "Invoice ID"  format(uuid)
// @Param        request      body      AcceptMatchRequest  true   "Chosen purchase order"
// @Success      200          {object}  APIResponse[MatchAccepted]
// @Failure      400          {object}  ErrorResponse
// @Failure      409          {object}  ErrorResponse
// @Failure      503          {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /cvr/invoices/{invoice_id}/match-acceptance [post]
func (h *CVRHandler) AcceptMatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}
	invoiceID, ok := parseUUIDParam(c, "invoice_id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}
	var req AcceptMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	poID := uuid.MustParse(req.POID)

	if err := h.matching.AcceptMatch(c.Request.Context(), tenantID, poID, invoiceID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MatchAccepted{InvoiceID: invoiceID, POID: poID})
}
