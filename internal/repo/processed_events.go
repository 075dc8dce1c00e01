// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-event log used as the
// claim table for payment reconciliation.
//
// A claim is a plain insert guarded by the event_id primary key with
// ON CONFLICT DO NOTHING, so exactly one concurrent caller observes
// RowsAffected == 1. On PostgreSQL a conflicting insert waits for the
// winning transaction to finish before reporting the conflict.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ClaimEvent inserts rec as a pending claim. It reports false (and no error)
// when a row for rec.EventID already exists.
func ClaimEvent(ctx context.Context, db *gorm.DB, rec *domain.ProcessedEvent) (bool, error) {
	now := time.Now().UTC()
	if rec.Outcome == "" {
		rec.Outcome = domain.OutcomePending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetProcessedEvent returns the claim row for eventID or ErrNotFound.
func GetProcessedEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.ProcessedEvent, error) {
	var rec domain.ProcessedEvent
	err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordOutcome stores the outcome for a previously claimed event.
func RecordOutcome(ctx context.Context, db *gorm.DB, eventID string, outcome domain.Outcome, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"outcome":    outcome,
			"reason":     reason,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountProcessedEvents counts log rows, optionally filtered by outcome.
func CountProcessedEvents(ctx context.Context, db *gorm.DB, outcome string) (int64, error) {
	var total int64
	err := processedEventsQuery(ctx, db, outcome).Count(&total).Error
	return total, err
}

// ListProcessedEventsPage returns a page of log rows, newest first,
// optionally filtered by outcome.
func ListProcessedEventsPage(ctx context.Context, db *gorm.DB, outcome string, offset, limit int) ([]domain.ProcessedEvent, error) {
	var out []domain.ProcessedEvent
	err := processedEventsQuery(ctx, db, outcome).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func processedEventsQuery(ctx context.Context, db *gorm.DB, outcome string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.ProcessedEvent{})
	if o := strings.TrimSpace(outcome); o != "" {
		q = q.Where("outcome = ?", o)
	}
	return q
}
