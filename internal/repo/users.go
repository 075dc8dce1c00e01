// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They perform persistence only; business
// rules live in the services package.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// GetUser fetches a user by primary key or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ApplyMembership overwrites the user's tier and expiry and records the
// provider customer reference when one is given. It returns ErrNotFound when
// the user does not exist.
func ApplyMembership(ctx context.Context, db *gorm.DB, userID int64, tier domain.Tier, expires time.Time, customerRef string) error {
	updates := map[string]any{
		"membership_tier":    tier,
		"membership_expires": expires,
		"updated_at":         time.Now().UTC(),
	}
	if customerRef != "" {
		updates["stripe_customer_id"] = customerRef
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddSpend increments the user's lifetime spend by amount (minor units).
func AddSpend(ctx context.Context, db *gorm.DB, userID int64, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumn("total_spent", gorm.Expr("total_spent + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
