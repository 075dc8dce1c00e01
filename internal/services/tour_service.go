// Package services – TourService
//
// Read-only access to the tour catalog with remaining-ticket counts. Ticket
// counters are mutated only by ReconciliationService.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/repo"
)

// TourRepo defines the repository contract required by TourService.
type TourRepo interface {
	// GetTour fetches a tour by id.
	GetTour(ctx context.Context, db *gorm.DB, id int64) (*domain.Tour, error)
	// CountTours returns the number of tours with status ("" for all).
	CountTours(ctx context.Context, db *gorm.DB, status string) (int64, error)
	// ListToursPage returns a page of tours ordered by date.
	ListToursPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Tour, error)
}

// TourService lists upcoming shows.
type TourService struct {
	DB   *gorm.DB
	Repo TourRepo

	// Status restricts listings; the public catalog shows active tours only.
	Status string
}

// NewTourService constructs a TourService listing active tours.
func NewTourService(db *gorm.DB, r TourRepo) *TourService {
	return &TourService{DB: db, Repo: r, Status: "active"}
}

// ListPage returns a page of tours and the total count.
func (s *TourService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Tour, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Repo.CountTours(ctx, s.DB, s.Status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Tour{}, 0, nil
	}
	items, err := s.Repo.ListToursPage(ctx, s.DB, s.Status, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns a single tour or ErrTourNotFound.
func (s *TourService) Get(ctx context.Context, id int64) (*domain.Tour, error) {
	if id <= 0 {
		return nil, ErrTourNotFound
	}
	t, err := s.Repo.GetTour(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}
	return t, nil
}
