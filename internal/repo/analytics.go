package repo

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// TrackEvent appends an analytics row.
func TrackEvent(ctx context.Context, db *gorm.DB, eventType string, userID int64, metadata map[string]any) error {
	ev := &domain.AnalyticsEvent{
		EventType: eventType,
		UserID:    userID,
		Metadata:  datatypes.JSONMap(metadata),
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(ev).Error
}
