package domain

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// User mirrors a users.txt row. Password is kept as plain text because that
// is what the file stores.
type User struct {
	ID       int
	Username string
	Password string
	Name     string
	Role     Role
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session carries the acting user through a single client interaction in
// place of process-wide "current user" state.
type Session struct {
	ID   string
	User *User
}

func NewSession(user *User) *Session {
	return &Session{
		ID:   uuid.New().String(),
		User: user,
	}
}

func (s *Session) UserID() int {
	if s == nil || s.User == nil {
		return 0
	}

	return s.User.ID
}

type UserRepository interface {
	GetById(ctx context.Context, id int) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
