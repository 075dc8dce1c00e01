package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/repo"
)

// fakeTourRepo records the paging arguments it receives.
type fakeTourRepo struct {
	tours  []domain.Tour
	err    error
	offset int
	limit  int
	status string
}

func (f *fakeTourRepo) GetTour(_ context.Context, _ *gorm.DB, id int64) (*domain.Tour, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.tours {
		if f.tours[i].ID == id {
			return &f.tours[i], nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeTourRepo) CountTours(_ context.Context, _ *gorm.DB, status string) (int64, error) {
	f.status = status
	return int64(len(f.tours)), f.err
}

func (f *fakeTourRepo) ListToursPage(_ context.Context, _ *gorm.DB, _ string, offset, limit int) ([]domain.Tour, error) {
	f.offset, f.limit = offset, limit
	end := offset + limit
	if end > len(f.tours) {
		end = len(f.tours)
	}
	if offset >= end {
		return []domain.Tour{}, nil
	}
	return f.tours[offset:end], nil
}

func TestTourService_ListPage_Defaults(t *testing.T) {
	fr := &fakeTourRepo{tours: []domain.Tour{{ID: 1}, {ID: 2}, {ID: 3}}}
	svc := NewTourService(nil, fr)

	items, total, err := svc.ListPage(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)
	assert.Equal(t, 0, fr.offset)
	assert.Equal(t, 20, fr.limit)
	assert.Equal(t, "active", fr.status)

	_, _, err = svc.ListPage(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, fr.offset)
}

func TestTourService_ListPage_Empty(t *testing.T) {
	svc := NewTourService(nil, &fakeTourRepo{})
	items, total, err := svc.ListPage(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestTourService_Get(t *testing.T) {
	fr := &fakeTourRepo{tours: []domain.Tour{{ID: 7, City: "rome"}}}
	svc := NewTourService(nil, fr)

	got, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "rome", got.City)

	_, err = svc.Get(context.Background(), 8)
	assert.ErrorIs(t, err, ErrTourNotFound)

	_, err = svc.Get(context.Background(), 0)
	assert.ErrorIs(t, err, ErrTourNotFound)

	boom := errors.New("boom")
	fr.err = boom
	_, err = svc.Get(context.Background(), 7)
	assert.ErrorIs(t, err, boom)
}
