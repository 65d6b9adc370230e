package mocks

import (
	"context"

	"github.com/metinatakli/cinex-booking/internal/domain"
)

type MockUserRepo struct {
	domain.UserRepository
	GetByIdFunc       func(ctx context.Context, id int) (*domain.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
}

func (m *MockUserRepo) GetById(ctx context.Context, id int) (*domain.User, error) {
	return m.GetByIdFunc(ctx, id)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.GetByUsernameFunc(ctx, username)
}
