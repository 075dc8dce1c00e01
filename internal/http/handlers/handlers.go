// Package handlers – service contracts and wiring.
//
// Endpoints exposed by this package:
//   - POST   /webhook/stripe                 (payment confirmation)
//   - GET    /tours                          (list, paginated)
//   - GET    /tours/{id}                     (single tour)
//   - GET    /admin/reconciliations          (list, paginated, ETag support)
//   - GET    /admin/reconciliations/summary  (counts per outcome)
//   - GET    /admin/reconciliations/{id}     (single log row)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/services"
	"github.com/tbourn/fanclub-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PaymentVerifier authenticates and decodes a raw gateway webhook.
type PaymentVerifier interface {
	// VerifyAndParse returns a normalized event, payments.ErrEventIgnored for
	// authentic events without a domain intent, or a *payments.VerificationError.
	VerifyAndParse(payload []byte, sigHeader string) (*domain.PaymentEvent, error)
}

// Reconciler applies a verified payment event exactly once.
//
// Implementations must be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Reconciler interface {
	Reconcile(ctx context.Context, ev *domain.PaymentEvent) (*services.Result, error)
}

// LedgerService exposes the reconciliation log to operators.
type LedgerService interface {
	// ListPage returns a page of log rows filtered by outcome ("" for all).
	ListPage(ctx context.Context, outcome string, page, pageSize int) ([]domain.ProcessedEvent, int64, error)
	// Get returns the log row for an event id.
	Get(ctx context.Context, eventID string) (*domain.ProcessedEvent, error)
	// Summary returns row counts per outcome.
	Summary(ctx context.Context) (map[domain.Outcome]int64, error)
	// Fingerprint returns count and latest update for a filter (ETag input).
	Fingerprint(ctx context.Context, outcome string) (int64, *time.Time, error)
}

// TourService defines read access to the tour catalog.
type TourService interface {
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Tour, int64, error)
	Get(ctx context.Context, id int64) (*domain.Tour, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for the webhook, tours and the admin log.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	verifier   PaymentVerifier
	reconciler Reconciler
	ledger     LedgerService
	tours      TourService

	// ReconcileTimeout bounds a single webhook reconciliation. Zero means
	// only the request context applies.
	ReconcileTimeout time.Duration
	// RetryAfter is advertised on 503 responses.
	RetryAfter time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(verifier PaymentVerifier, reconciler Reconciler, ledger LedgerService, tours TourService) *Handlers {
	return &Handlers{
		verifier:         verifier,
		reconciler:       reconciler,
		ledger:           ledger,
		tours:            tours,
		ReconcileTimeout: 10 * time.Second,
		RetryAfter:       5 * time.Second,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
