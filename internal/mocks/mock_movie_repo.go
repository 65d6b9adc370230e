package mocks

import (
	"context"

	"github.com/metinatakli/cinex-booking/internal/domain"
)

type MockMovieRepo struct {
	domain.MovieRepository
	GetAllFunc  func(ctx context.Context) ([]domain.Movie, error)
	GetByIdFunc func(ctx context.Context, id int) (*domain.Movie, error)
}

func (m *MockMovieRepo) GetAll(ctx context.Context) ([]domain.Movie, error) {
	return m.GetAllFunc(ctx)
}

func (m *MockMovieRepo) GetById(ctx context.Context, id int) (*domain.Movie, error) {
	return m.GetByIdFunc(ctx, id)
}

type MockScheduleRepo struct {
	domain.ScheduleRepository
	GetAllFunc  func(ctx context.Context) ([]domain.Schedule, error)
	GetByIdFunc func(ctx context.Context, id int) (*domain.Schedule, error)
}

func (m *MockScheduleRepo) GetAll(ctx context.Context) ([]domain.Schedule, error) {
	return m.GetAllFunc(ctx)
}

func (m *MockScheduleRepo) GetById(ctx context.Context, id int) (*domain.Schedule, error) {
	return m.GetByIdFunc(ctx, id)
}
