// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TicketPurchase model.
//
// Error semantics:
//   - CreateTicketPurchase never fails on a duplicate stripe_payment_id; it
//     reports created=false instead so callers inside a PostgreSQL
//     transaction do not abort it with a constraint violation.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// CreateTicketPurchase inserts p unless a purchase with the same
// StripePaymentID already exists.
func CreateTicketPurchase(ctx context.Context, db *gorm.DB, p *domain.TicketPurchase) (created bool, err error) {
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "stripe_payment_id"}}, DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindTicketPurchaseByPaymentRef returns the purchase recorded for a provider
// payment reference or ErrNotFound.
func FindTicketPurchaseByPaymentRef(ctx context.Context, db *gorm.DB, ref string) (*domain.TicketPurchase, error) {
	var p domain.TicketPurchase
	if err := db.WithContext(ctx).Where("stripe_payment_id = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SumCompletedQuantity returns the number of tickets sold through completed
// purchases for tourID.
func SumCompletedQuantity(ctx context.Context, db *gorm.DB, tourID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TicketPurchase{}).
		Where("tour_id = ? AND status = ?", tourID, domain.PurchaseCompleted).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}
