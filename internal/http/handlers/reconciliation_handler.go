// Reconciliation log handlers (operator API).
//
// Rejected rows are payments that were taken but could not be fulfilled;
// operators poll this API (or the alert chat) to refund or honor them by hand.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/services"
)

// ListReconciliationsResponse wraps a page of log rows and pagination information.
type ListReconciliationsResponse struct {
	Reconciliations []domain.ProcessedEvent `json:"reconciliations"`
	Pagination      Pagination              `json:"pagination"`
}

// ReconciliationSummary reports row counts per outcome.
type ReconciliationSummary struct {
	Counts map[domain.Outcome]int64 `json:"counts"`
	Total  int64                    `json:"total"`
}

// ListReconciliations godoc
// @ID          listReconciliations
// @Summary     List reconciliation log rows (paginated)
// @Description Returns processed payment events, newest first, optionally filtered by outcome. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"reconciliations:rejected:3:1700000000\")
// @Param       outcome        query   string  false "pending | completed | rejected | ignored"
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListReconciliationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Unknown outcome"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/reconciliations [get]
func (h *Handlers) ListReconciliations(c *gin.Context) {
	ctx := c.Request.Context()
	outcome := strings.ToLower(strings.TrimSpace(c.Query("outcome")))
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	count, maxTS, err := h.ledger.Fingerprint(ctx, outcome)
	if errors.Is(err, services.ErrInvalidOutcome) {
		fail(c, http.StatusBadRequest, ErrCodeInvalidOutcome, "outcome must be one of pending, completed, rejected, ignored")
		return
	}
	if err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		label := outcome
		if label == "" {
			label = "all"
		}
		etag := fmt.Sprintf(`W/"reconciliations:%s:%d:%d:%d:%d"`, label, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			notModified(c)
			return
		}
	}

	items, total, err := h.ledger.ListPage(ctx, outcome, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOutcome) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidOutcome, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListReconciliationsResponse{
		Reconciliations: items,
		Pagination:      newPagination(page, pageSize, total),
	})
}

// GetReconciliation godoc
// @ID          getReconciliation
// @Summary     Get one reconciliation log row
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Gateway event id"  example(evt_1Nf3xY2eZvKYlo2C)
//
// @Success     200  {object} domain.ProcessedEvent
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/reconciliations/{id} [get]
func (h *Handlers) GetReconciliation(c *gin.Context) {
	rec, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrReconciliationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "reconciliation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, rec)
}

// ReconciliationsSummary godoc
// @ID          reconciliationsSummary
// @Summary     Count reconciliation log rows per outcome
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.ReconciliationSummary
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/reconciliations/summary [get]
func (h *Handlers) ReconciliationsSummary(c *gin.Context) {
	counts, err := h.ledger.Summary(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	ok(c, http.StatusOK, ReconciliationSummary{Counts: counts, Total: total})
}
