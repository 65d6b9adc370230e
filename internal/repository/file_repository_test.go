package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

type FileRepositoryTestSuite struct {
	suite.Suite
	ctx    context.Context
	dir    string
	files  DataFiles
	logger *slog.Logger
}

func (s *FileRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.files = NewDataFiles(s.dir, "", s.logger)
}

func TestFileRepositorySuite(t *testing.T) {
	suite.Run(t, new(FileRepositoryTestSuite))
}

func (s *FileRepositoryTestSuite) write(name, content string) {
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644))
}

func (s *FileRepositoryTestSuite) read(name string) string {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	s.Require().NoError(err)
	return string(b)
}

func (s *FileRepositoryTestSuite) TestSeatRepository() {
	repo := NewFileSeatRepository(s.files.Seats, s.logger)

	err := repo.CreateBulk(s.ctx, []domain.Seat{
		{ID: 1000, ScheduleID: 1, Number: "A1"},
		{ID: 1001, ScheduleID: 1, Number: "A2"},
		{ID: 2000, ScheduleID: 2, Number: "A1"},
	})
	s.Require().NoError(err)

	seats, err := repo.GetSeatsBySchedule(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(seats, 2)

	err = repo.Update(s.ctx, domain.Seat{ID: 1001, ScheduleID: 1, Number: "A2", Booked: true})
	s.Require().NoError(err)

	seat, err := repo.GetById(s.ctx, 1001)
	s.Require().NoError(err)
	s.True(seat.Booked)

	s.Equal("seatId|scheduleId|seatNumber|isBooked\n1000|1|A1|false\n1001|1|A2|true\n2000|2|A1|false\n", s.read("seats.txt"))

	s.ErrorIs(repo.Update(s.ctx, domain.Seat{ID: 42}), domain.ErrRecordNotFound)

	_, err = repo.GetById(s.ctx, 42)
	s.ErrorIs(err, domain.ErrRecordNotFound)

	s.Error(repo.CreateBulk(s.ctx, []domain.Seat{{ID: 1000, ScheduleID: 3, Number: "A1"}}), "duplicate id")
	s.Error(repo.CreateBulk(s.ctx, []domain.Seat{{ID: 1500, ScheduleID: 1, Number: "A1"}}), "duplicate seat number")

	empty, err := repo.GetSeatsBySchedule(s.ctx, 99)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *FileRepositoryTestSuite) TestSeatRepositorySkipsInvalidRows() {
	s.write("seats.txt", "seatId|scheduleId|seatNumber|isBooked\n1000|1|A1|true\nx|1|A2|false\n1002|1|A3|maybe\n")

	seats, err := NewFileSeatRepository(s.files.Seats, s.logger).GetSeatsBySchedule(s.ctx, 1)
	s.Require().NoError(err)

	s.Equal([]domain.Seat{{ID: 1000, ScheduleID: 1, Number: "A1", Booked: true}}, seats)
}

func (s *FileRepositoryTestSuite) TestCatalogRepositories() {
	s.write("movies.txt", "movieId|title|genre|durationMinutes|rating|basePrice\n1|Dune|Sci-Fi|155|8.5|50000\n2|Broken|Drama|x|7|1\n")
	s.write("schedule.txt", "1|1|Studio 1|2025-10-04|19:30|80|80\n2|1|Studio 2|04-10-2025|19:30|80|80\n")
	s.write("users.txt", "1|admin|admin123|Administrator|admin\n2|budi|pass|Budi|Customer\n")
	s.write("holidays.txt", "2025-08-17\nnot-a-date\n")

	movies := NewFileMovieRepository(s.files.Movies, s.logger)
	all, err := movies.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1, "header and unparseable rows are skipped")

	movie, err := movies.GetById(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("Dune", movie.Title)
	s.True(decimal.NewFromInt(50000).Equal(movie.BasePrice))

	_, err = movies.GetById(s.ctx, 2)
	s.ErrorIs(err, domain.ErrRecordNotFound)

	schedules := NewFileScheduleRepository(s.files.Schedules, s.logger)
	schedule, err := schedules.GetById(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(time.Date(2025, time.October, 4, 0, 0, 0, 0, time.UTC), schedule.ShowDate)
	s.Equal("19:30", schedule.ShowTime)
	s.Equal("Studio 1", schedule.StudioName)

	_, err = schedules.GetById(s.ctx, 2)
	s.ErrorIs(err, domain.ErrRecordNotFound)

	users := NewFileUserRepository(s.files.Users, s.logger)
	user, err := users.GetByUsername(s.ctx, "budi")
	s.Require().NoError(err)
	s.Equal(domain.RoleCustomer, user.Role)
	s.False(user.IsAdmin())

	admin, err := users.GetById(s.ctx, 1)
	s.Require().NoError(err)
	s.True(admin.IsAdmin())

	_, err = users.GetByUsername(s.ctx, "nobody")
	s.ErrorIs(err, domain.ErrRecordNotFound)

	holidays, err := NewFileHolidayRepository(s.files.Holidays, s.logger).GetAll(s.ctx)
	s.Require().NoError(err)
	s.Equal([]time.Time{time.Date(2025, time.August, 17, 0, 0, 0, 0, time.UTC)}, holidays)
}

func (s *FileRepositoryTestSuite) newBooking(userID int, seats ...string) *domain.Booking {
	tickets := make([]domain.Ticket, len(seats))
	for i, seat := range seats {
		tickets[i] = domain.Ticket{
			SeatNumber: seat,
			Type:       domain.TicketVIP,
			BasePrice:  decimal.NewFromInt(140000),
			FinalPrice: decimal.NewFromInt(280000),
		}
	}

	bookedAt := time.Date(2025, time.October, 1, 10, 15, 30, 0, time.Local)
	b := domain.NewBooking(userID, 1, bookedAt, tickets)
	return &b
}

func (s *FileRepositoryTestSuite) TestBookingRoundTrip() {
	repo := NewFileBookingRepository(s.files.Bookings, s.files.Tickets, s.logger)

	id, err := repo.NextID(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, id)

	booking := s.newBooking(5, "A1", "A2")
	booking.ID = id
	s.Require().NoError(repo.Create(s.ctx, booking))
	s.Equal(1, booking.Tickets[0].ID)
	s.Equal(2, booking.Tickets[1].ID)

	other := s.newBooking(6, "B1")
	other.ID, err = repo.NextID(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, other.ID)
	s.Require().NoError(repo.Create(s.ctx, other))
	s.Equal(3, other.Tickets[0].ID)

	s.Equal("1|5|1|2025-10-01 10:15:30|560000.00|confirmed\n2|6|1|2025-10-01 10:15:30|280000.00|confirmed\n", s.read("bookings.txt"))
	s.Equal("1|1|VIP|A1|140000.00|280000.00\n2|1|VIP|A2|140000.00|280000.00\n3|2|VIP|B1|140000.00|280000.00\n", s.read("tickets.txt"))

	got, err := repo.GetByUserId(s.ctx, 5)
	s.Require().NoError(err)
	s.Require().Len(got, 1)

	diff := cmp.Diff(*booking, got[0], decimalComparer,
		cmpopts.SortSlices(func(a, b domain.Ticket) bool { return a.SeatNumber < b.SeatNumber }))
	s.Empty(diff, "booking mismatch (-want +got):\n%s", diff)
	s.True(got[0].TotalPrice.Equal(domain.SumTickets(got[0].Tickets)))

	all, err := repo.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)

	s.Require().NoError(repo.UpdateStatus(s.ctx, 1, domain.BookingCancelled))
	cancelled, err := repo.GetById(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(domain.BookingCancelled, cancelled.Status)
	s.Len(cancelled.Tickets, 2)

	s.ErrorIs(repo.UpdateStatus(s.ctx, 99, domain.BookingCancelled), domain.ErrRecordNotFound)

	_, err = repo.GetById(s.ctx, 99)
	s.ErrorIs(err, domain.ErrRecordNotFound)

	s.Error(repo.Create(s.ctx, booking), "duplicate booking id")
}

type failingTable struct {
	storage.Table
	failAppendAfter int
	appends         int
}

func (f *failingTable) AppendOne(ctx context.Context, r storage.Record) error {
	f.appends++
	if f.appends > f.failAppendAfter {
		return errors.New("disk full")
	}
	return f.Table.AppendOne(ctx, r)
}

func (s *FileRepositoryTestSuite) TestBookingCreateIsAllOrNothing() {
	tests := []struct {
		name     string
		bookings storage.Table
		tickets  storage.Table
	}{
		{
			name:     "second ticket write fails",
			bookings: storage.NewMemoryTable(),
			tickets:  &failingTable{Table: storage.NewMemoryTable(), failAppendAfter: 1},
		},
		{
			name:     "booking header write fails",
			bookings: &failingTable{Table: storage.NewMemoryTable(), failAppendAfter: 0},
			tickets:  storage.NewMemoryTable(),
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			repo := NewFileBookingRepository(tt.bookings, tt.tickets, s.logger)

			booking := s.newBooking(5, "A1", "A2")
			booking.ID = 1

			s.Error(repo.Create(s.ctx, booking))

			bookings, err := tt.bookings.LoadAll(s.ctx)
			s.Require().NoError(err)
			s.Empty(bookings)

			tickets, err := tt.tickets.LoadAll(s.ctx)
			s.Require().NoError(err)
			s.Empty(tickets)

			s.Zero(booking.Tickets[0].ID, "caller's tickets are untouched on failure")
		})
	}
}

func (s *FileRepositoryTestSuite) TestBookingLogRepository() {
	repo := NewFileBookingLogRepository(s.files.BookingLogs, s.logger)
	at := time.Date(2025, time.October, 1, 10, 0, 0, 0, time.Local)

	entries := []domain.BookingLogEntry{
		{Timestamp: at, ObserverName: "User-5-Observer", UserID: 5, SeatNumber: "A1", Action: domain.SeatBooked, ScheduleID: 1},
		{Timestamp: at, ObserverName: "User-5-Observer", UserID: 5, SeatNumber: "A1", Action: domain.SeatReleased, ScheduleID: 11},
		{Timestamp: at, ObserverName: "Audit", UserID: -1, SeatNumber: "C3", Action: domain.SeatBooked, ScheduleID: 1},
	}
	for _, e := range entries {
		s.Require().NoError(repo.Append(s.ctx, e))
	}

	s.Equal("timestamp|observerName|userId|seatNumber|action|scheduleId\n"+
		"2025-10-01 10:00:00|User-5-Observer|5|A1|BOOKED|1\n"+
		"2025-10-01 10:00:00|User-5-Observer|5|A1|RELEASED|11\n"+
		"2025-10-01 10:00:00|Audit|-1|C3|BOOKED|1\n", s.read("booking_logs.txt"))

	all, err := repo.GetAll(s.ctx)
	s.Require().NoError(err)
	diff := cmp.Diff(entries, all)
	s.Empty(diff, "entries mismatch (-want +got):\n%s", diff)

	bySchedule, err := repo.GetBySchedule(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(bySchedule, 2, "schedule 11 must not match schedule 1")

	s.Require().NoError(repo.Clear(s.ctx))
	s.Equal("timestamp|observerName|userId|seatNumber|action|scheduleId\n", s.read("booking_logs.txt"))

	all, err = repo.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}
