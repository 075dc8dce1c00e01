// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Tour model,
// including the ticket counter operations used by reconciliation.
//
// ReserveTickets performs the capacity check and the increment in a single
// conditional UPDATE. The row lock taken by that statement serializes
// concurrent reservations for the same tour: on PostgreSQL a waiting UPDATE
// re-evaluates its WHERE clause against the committed row, and SQLite admits
// one writer at a time. Different tours never contend.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// ErrCapacityExceeded is returned when a reservation would push tickets_sold
// past tickets_available.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// GetTour fetches a tour by primary key or returns ErrNotFound.
func GetTour(ctx context.Context, db *gorm.DB, id int64) (*domain.Tour, error) {
	var t domain.Tour
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTours returns the number of tours with the given status ("" for all).
func CountTours(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := toursQuery(ctx, db, status).Count(&total).Error
	return total, err
}

// ListToursPage returns tours ordered by date ascending.
func ListToursPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Tour, error) {
	var out []domain.Tour
	err := toursQuery(ctx, db, status).
		Order("date asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func toursQuery(ctx context.Context, db *gorm.DB, status string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Tour{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}

// ReserveTickets adds quantity to tickets_sold for tourID if and only if the
// result stays within tickets_available. It returns ErrCapacityExceeded when
// there is not enough inventory left and ErrNotFound when the tour is missing.
func ReserveTickets(ctx context.Context, db *gorm.DB, tourID int64, quantity int) error {
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	res := db.WithContext(ctx).
		Model(&domain.Tour{}).
		Where("id = ? AND tickets_sold + ? <= tickets_available", tourID, quantity).
		UpdateColumn("tickets_sold", gorm.Expr("tickets_sold + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Nothing matched: distinguish a missing tour from a full one.
	if _, err := GetTour(ctx, db, tourID); err != nil {
		return err
	}
	return ErrCapacityExceeded
}

// ReleaseTickets undoes a reservation made earlier in the same transaction.
func ReleaseTickets(ctx context.Context, db *gorm.DB, tourID int64, quantity int) error {
	return db.WithContext(ctx).
		Model(&domain.Tour{}).
		Where("id = ? AND tickets_sold >= ?", tourID, quantity).
		UpdateColumn("tickets_sold", gorm.Expr("tickets_sold - ?", quantity)).
		Error
}
