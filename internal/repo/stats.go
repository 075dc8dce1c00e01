// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over the
// processed-event log, used by the admin API for outcome summaries and
// conditional responses (ETag generation).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// OutcomeCounts maps each outcome to the number of log rows carrying it.
type OutcomeCounts map[domain.Outcome]int64

// CountByOutcome groups the processed-event log by outcome. Outcomes with no
// rows are reported as zero.
func CountByOutcome(ctx context.Context, db *gorm.DB) (OutcomeCounts, error) {
	var rows []struct {
		Outcome domain.Outcome
		N       int64
	}
	err := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Select("outcome, COUNT(*) AS n").
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := OutcomeCounts{
		domain.OutcomePending:   0,
		domain.OutcomeCompleted: 0,
		domain.OutcomeRejected:  0,
		domain.OutcomeIgnored:   0,
	}
	for _, r := range rows {
		out[r.Outcome] = r.N
	}
	return out, nil
}

// ProcessedEventsStats returns the number of log rows matching outcome ("" for
// all) and the greatest UpdatedAt among them. maxUpdatedAt is nil when there
// are no rows.
func ProcessedEventsStats(ctx context.Context, db *gorm.DB, outcome string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := processedEventsQuery(ctx, db, outcome)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = processedEventsQuery(ctx, db, outcome).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
