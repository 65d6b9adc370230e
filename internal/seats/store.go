// Package seats owns seat occupancy. Store is the only writer of seat records.
package seats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/lock"
	"github.com/metinatakli/cinex-booking/internal/notify"
)

type Store struct {
	repo   domain.SeatRepository
	locker lock.Locker
	hub    *notify.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(repo domain.SeatRepository, locker lock.Locker, hub *notify.Hub, logger *slog.Logger) *Store {
	return &Store{
		repo:   repo,
		locker: locker,
		hub:    hub,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) Hub() *notify.Hub {
	return s.hub
}

// WithSeatLock runs fn inside the single-writer section of a schedule.
func (s *Store) WithSeatLock(ctx context.Context, scheduleID int, fn func(ctx context.Context) error) error {
	return lock.With(ctx, s.locker, lock.ScheduleKey(scheduleID), fn)
}

func (s *Store) withTableLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return lock.With(ctx, s.locker, lock.SeatsTableKey, fn)
}

func sortSeats(seats []domain.Seat) {
	slices.SortStableFunc(seats, func(a, b domain.Seat) int {
		switch {
		case domain.LessSeatNumber(a.Number, b.Number):
			return -1
		case domain.LessSeatNumber(b.Number, a.Number):
			return 1
		default:
			return 0
		}
	})
}

// LoadSeats returns a schedule's seats ordered by row, then column. A schedule
// without seat records gets the default grid, which is persisted before it is
// returned.
func (s *Store) LoadSeats(ctx context.Context, scheduleID int) ([]domain.Seat, error) {
	seats, err := s.repo.GetSeatsBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load seats", Cause: err}
	}

	if len(seats) == 0 {
		seats, err = s.generate(ctx, scheduleID)
		if err != nil {
			return nil, err
		}
	}

	sortSeats(seats)

	return seats, nil
}

func (s *Store) generate(ctx context.Context, scheduleID int) ([]domain.Seat, error) {
	var seats []domain.Seat

	err := s.WithSeatLock(ctx, scheduleID, func(ctx context.Context) error {
		existing, err := s.repo.GetSeatsBySchedule(ctx, scheduleID)
		if err != nil {
			return &domain.PersistenceError{Op: "load seats", Cause: err}
		}

		if len(existing) > 0 {
			seats = existing
			return nil
		}

		grid := domain.DefaultGrid(scheduleID)
		if err := s.createSeats(ctx, grid); err != nil {
			return err
		}

		s.logger.Info("generated default seat grid", "schedule_id", scheduleID, "seats", len(grid))
		seats = grid

		return nil
	})

	return seats, err
}

func (s *Store) createSeats(ctx context.Context, seats []domain.Seat) error {
	return s.withTableLock(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateBulk(ctx, seats); err != nil {
			return &domain.PersistenceError{Op: "create seats", Cause: err}
		}

		return nil
	})
}

// Seed writes the default grid for a schedule. It reports false when the
// schedule already has seats.
func (s *Store) Seed(ctx context.Context, scheduleID int) (bool, error) {
	created := false

	err := s.WithSeatLock(ctx, scheduleID, func(ctx context.Context) error {
		existing, err := s.repo.GetSeatsBySchedule(ctx, scheduleID)
		if err != nil {
			return &domain.PersistenceError{Op: "load seats", Cause: err}
		}

		if len(existing) > 0 {
			return nil
		}

		if err := s.createSeats(ctx, domain.DefaultGrid(scheduleID)); err != nil {
			return err
		}

		created = true
		return nil
	})

	return created, err
}

func (s *Store) AvailableSeats(ctx context.Context, scheduleID int) ([]domain.Seat, error) {
	seats, err := s.LoadSeats(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	available := make([]domain.Seat, 0, len(seats))
	for _, seat := range seats {
		if !seat.Booked {
			available = append(available, seat)
		}
	}

	return available, nil
}

func (s *Store) AvailableCount(ctx context.Context, scheduleID int) (int, error) {
	available, err := s.AvailableSeats(ctx, scheduleID)
	if err != nil {
		return 0, err
	}

	return len(available), nil
}

func (s *Store) Seat(ctx context.Context, seatID int) (*domain.Seat, error) {
	seat, err := s.repo.GetById(ctx, seatID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("seat %d: %w", seatID, domain.ErrRecordNotFound)
		}

		return nil, &domain.PersistenceError{Op: "load seat", Cause: err}
	}

	return seat, nil
}

func (s *Store) SeatByNumber(ctx context.Context, scheduleID int, number string) (*domain.Seat, error) {
	if _, _, err := domain.ParseSeatNumber(number); err != nil {
		return nil, err
	}

	seats, err := s.LoadSeats(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	for _, seat := range seats {
		if seat.Number == number {
			return &seat, nil
		}
	}

	return nil, fmt.Errorf("%w: %s does not exist in schedule %d", domain.ErrInvalidSeatNumber, number, scheduleID)
}

// BookSeat marks an available seat as booked. It fails with
// domain.ErrSeatAlreadyBooked when the stored seat is already booked.
func (s *Store) BookSeat(ctx context.Context, seatID int) error {
	return s.setBooked(ctx, seatID, true)
}

// ReleaseSeat marks a booked seat as available. It fails with
// domain.ErrSeatNotBooked when the stored seat is available.
func (s *Store) ReleaseSeat(ctx context.Context, seatID int) error {
	return s.setBooked(ctx, seatID, false)
}

func (s *Store) setBooked(ctx context.Context, seatID int, booked bool) error {
	seat, err := s.Seat(ctx, seatID)
	if err != nil {
		return err
	}

	var event notify.SeatEvent

	err = s.WithSeatLock(ctx, seat.ScheduleID, func(ctx context.Context) error {
		current, err := s.Seat(ctx, seatID)
		if err != nil {
			return err
		}

		if current.Booked == booked {
			if booked {
				return fmt.Errorf("seat %s: %w", current.Number, domain.ErrSeatAlreadyBooked)
			}

			return fmt.Errorf("seat %s: %w", current.Number, domain.ErrSeatNotBooked)
		}

		current.Booked = booked
		err = s.withTableLock(ctx, func(ctx context.Context) error {
			if err := s.repo.Update(ctx, *current); err != nil {
				return &domain.PersistenceError{Op: "update seat", Cause: err}
			}

			return nil
		})
		if err != nil {
			return err
		}

		event = notify.SeatEvent{
			SeatID:     current.ID,
			ScheduleID: current.ScheduleID,
			SeatNumber: current.Number,
			Booked:     booked,
			OccurredAt: s.now(),
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("seat state changed", "seat_id", seatID, "seat", event.SeatNumber, "schedule_id", event.ScheduleID, "booked", booked)
	s.hub.Notify(ctx, event)

	return nil
}
