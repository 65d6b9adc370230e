package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var fixtures = map[string]string{
	"movies.txt":   "1|Dune|Sci-Fi|155|8.5|100000\n2|Arrival|Drama|116|7.9|50000\n",
	"schedule.txt": "1|1|Studio 1|2025-10-04|19:00|80|80\n2|2|Studio 2|2025-10-07|14:30|80|80\n",
	"users.txt":    "1|alice|secret|Alice|customer\n2|admin|admin|Admin|ADMIN\n",
	"holidays.txt": "2025-10-07\n",
}

type ApplicationTestSuite struct {
	suite.Suite
	ctx context.Context
	dir string
	out bytes.Buffer
	app *Application
}

func (s *ApplicationTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.out.Reset()

	for name, content := range fixtures {
		s.Require().NoError(os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644))
	}

	cfg, _, err := ParseConfig([]string{"-data-dir", s.dir}, envOf(nil))
	s.Require().NoError(err)

	s.app, err = New(s.ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), &s.out)
	s.Require().NoError(err)
}

func (s *ApplicationTestSuite) TearDownTest() {
	s.app.Close()
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationTestSuite))
}

func (s *ApplicationTestSuite) run(args ...string) string {
	s.out.Reset()
	s.Require().NoError(s.app.Execute(s.ctx, args))
	return s.out.String()
}

func (s *ApplicationTestSuite) TestBookingLifecycle() {
	out := s.run("book", "-user", "alice", "-schedule", "1", "-type", "VIP", "-seats", "A1,a2")
	s.Contains(out, "Booking #1 - 2 ticket(s) - 560000.00 - CONFIRMED")
	s.Contains(out, "140000.00")

	out = s.run("seats", "-schedule", "1")
	s.Contains(out, "XX")
	s.Contains(out, "78 of 80 seats available")

	out = s.run("cancel", "-booking", "1")
	s.Contains(out, "CANCELLED")
	s.Contains(out, "seats A1, A2 remain booked")

	out = s.run("seats", "-schedule", "1", "-available")
	s.Contains(out, "78 available")
	s.NotContains(out, "A1 ")

	out = s.run("bookings", "-user", "1")
	s.Contains(out, "Booking #1 - 2 ticket(s) - 560000.00 - CANCELLED - schedule 1 - seats A1,A2")

	out = s.run("logs", "-schedule", "1")
	s.Contains(out, "User-1-Observer")
	s.Contains(out, "BOOKED")

	s.Contains(s.run("logs", "-clear"), "booking log cleared")
	s.NotContains(s.run("logs"), "User-1-Observer")
}

func (s *ApplicationTestSuite) TestPriceUsesHolidayFile() {
	s.Contains(s.run("price", "-schedule", "1", "-type", "Student"), "final 105000.00")

	// 2025-10-07 is a Tuesday listed in holidays.txt.
	out := s.run("price", "-schedule", "2", "-type", "Regular")
	s.Contains(out, "Holiday pricing")
	s.Contains(out, "final 90000.00")
}

func (s *ApplicationTestSuite) TestSeedAndSchedules() {
	out := s.run("seed")
	s.Contains(out, "schedule 1: seeded 80 seats")
	s.Contains(out, "schedule 2: seeded 80 seats")

	s.Contains(s.run("seed", "-schedule", "1"), "schedule 1: seats already present")

	out = s.run("schedules")
	s.Contains(out, "Dune")
	s.Contains(out, "Weekend x1.4")
	s.Contains(out, "80/80")
}

func (s *ApplicationTestSuite) TestErrors() {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"unknown command", []string{"refund"}, ErrUnknownCommand},
		{"unknown user", []string{"book", "-user", "bob", "-schedule", "1", "-seats", "A1"}, domain.ErrInvalidRequest},
		{"missing seats", []string{"book", "-user", "alice", "-schedule", "1"}, domain.ErrInvalidRequest},
		{"bad ticket type", []string{"book", "-user", "alice", "-schedule", "1", "-seats", "A1", "-type", "Senior"}, domain.ErrInvalidTicketType},
		{"unknown schedule", []string{"price", "-schedule", "9"}, domain.ErrScheduleNotFound},
		{"missing schedule flag", []string{"seats"}, domain.ErrInvalidRequest},
		{"unknown booking", []string{"cancel", "-booking", "4"}, domain.ErrBookingNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.app.Execute(s.ctx, tt.args)
			s.ErrorIs(err, tt.wantErr)
		})
	}

	s.Require().NoError(s.app.Execute(s.ctx, []string{"book", "-user", "alice", "-schedule", "1", "-seats", "B5"}))
	err := s.app.Execute(s.ctx, []string{"book", "-user", "admin", "-schedule", "1", "-seats", "B5"})
	s.ErrorIs(err, domain.ErrSeatUnavailable)
}

func (s *ApplicationTestSuite) TestUsage() {
	out := s.run()
	s.Contains(out, "usage: cinex")
	s.Contains(out, "book")
	s.Contains(out, "logs")
}

func TestResolveSession(t *testing.T) {
	alice := &domain.User{ID: 1, Username: "alice", Role: domain.RoleCustomer}
	diskErr := errors.New("users.txt unreadable")

	repo := &mocks.MockUserRepo{
		GetByIdFunc: func(_ context.Context, id int) (*domain.User, error) {
			if id == 1 {
				return alice, nil
			}
			return nil, domain.ErrRecordNotFound
		},
		GetByUsernameFunc: func(_ context.Context, username string) (*domain.User, error) {
			if username == "broken" {
				return nil, diskErr
			}
			if username == "alice" {
				return alice, nil
			}
			return nil, domain.ErrRecordNotFound
		},
	}

	tests := []struct {
		name       string
		ident      string
		wantUserID int
		wantErr    error
	}{
		{name: "by id", ident: "1", wantUserID: 1},
		{name: "by username", ident: " alice ", wantUserID: 1},
		{name: "unknown id", ident: "9", wantErr: domain.ErrInvalidRequest},
		{name: "unknown username", ident: "carol", wantErr: domain.ErrInvalidRequest},
		{name: "empty", ident: "", wantErr: domain.ErrInvalidRequest},
		{name: "repository failure", ident: "broken", wantErr: diskErr},
	}

	app := &Application{users: repo}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := app.resolveSession(context.Background(), tt.ident)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUserID, session.UserID())
			assert.NotEmpty(t, session.ID)
		})
	}
}
