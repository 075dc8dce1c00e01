// Package services – LedgerService
//
// This file exposes the processed-event log to operators: paginated listing
// with an optional outcome filter, single-event lookup, and per-outcome
// totals. Rejected rows are the ones that need manual follow-up.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/repo"
)

// ErrInvalidOutcome is returned when a list filter names an unknown outcome.
var ErrInvalidOutcome = errors.New("unknown outcome filter")

// LedgerService reads the reconciliation log.
type LedgerService struct {
	DB *gorm.DB
}

// ListPage returns a page of log rows, newest first, and the total count.
func (s *LedgerService) ListPage(ctx context.Context, outcome string, page, pageSize int) ([]domain.ProcessedEvent, int64, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	outcome, err := normalizeOutcome(outcome)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountProcessedEvents(ctx, s.DB, outcome)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ProcessedEvent{}, 0, nil
	}
	items, err := repo.ListProcessedEventsPage(ctx, s.DB, outcome, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns the log row for eventID.
func (s *LedgerService) Get(ctx context.Context, eventID string) (*domain.ProcessedEvent, error) {
	rec, err := repo.GetProcessedEvent(ctx, s.DB, strings.TrimSpace(eventID))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrReconciliationNotFound
	}
	return rec, err
}

// Summary returns row counts per outcome.
func (s *LedgerService) Summary(ctx context.Context) (map[domain.Outcome]int64, error) {
	counts, err := repo.CountByOutcome(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Fingerprint returns the row count and latest update for an outcome filter,
// used to build list ETags.
func (s *LedgerService) Fingerprint(ctx context.Context, outcome string) (int64, *time.Time, error) {
	outcome, err := normalizeOutcome(outcome)
	if err != nil {
		return 0, nil, err
	}
	return repo.ProcessedEventsStats(ctx, s.DB, outcome)
}

func normalizeOutcome(o string) (string, error) {
	o = strings.ToLower(strings.TrimSpace(o))
	switch domain.Outcome(o) {
	case "", domain.OutcomePending, domain.OutcomeCompleted, domain.OutcomeRejected, domain.OutcomeIgnored:
		return o, nil
	}
	return "", ErrInvalidOutcome
}
