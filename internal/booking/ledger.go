package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/lock"
)

// Ledger is the durable record of bookings. Writes are serialised through the
// ledger lock so that id assignment and the write happen as one step.
type Ledger struct {
	repo   domain.BookingRepository
	locker lock.Locker
	logger *slog.Logger
}

func NewLedger(repo domain.BookingRepository, locker lock.Locker, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		locker: locker,
		logger: logger,
	}
}

func (l *Ledger) NextBookingID(ctx context.Context) (int, error) {
	id, err := l.repo.NextID(ctx)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "next booking id", Cause: err}
	}

	return id, nil
}

// Save assigns the next booking id and writes the booking with its tickets.
// On failure booking.ID is left unchanged.
func (l *Ledger) Save(ctx context.Context, booking *domain.Booking) error {
	return lock.With(ctx, l.locker, lock.LedgerKey, func(ctx context.Context) error {
		id, err := l.NextBookingID(ctx)
		if err != nil {
			return err
		}

		candidate := *booking
		candidate.ID = id

		if err := l.repo.Create(ctx, &candidate); err != nil {
			return &domain.PersistenceError{Op: "save booking", Cause: err}
		}

		*booking = candidate
		l.logger.Debug("booking saved", "booking_id", id, "tickets", len(booking.Tickets))

		return nil
	})
}

func (l *Ledger) UpdateStatus(ctx context.Context, id int, status domain.BookingStatus) error {
	return lock.With(ctx, l.locker, lock.LedgerKey, func(ctx context.Context) error {
		return l.updateStatus(ctx, id, status)
	})
}

func (l *Ledger) updateStatus(ctx context.Context, id int, status domain.BookingStatus) error {
	err := l.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", domain.ErrBookingNotFound, id)
		}

		return &domain.PersistenceError{Op: "update booking status", Cause: err}
	}

	return nil
}

// Cancel flips a confirmed booking to cancelled and returns the updated booking.
func (l *Ledger) Cancel(ctx context.Context, id int) (*domain.Booking, error) {
	var booking *domain.Booking

	err := lock.With(ctx, l.locker, lock.LedgerKey, func(ctx context.Context) error {
		b, err := l.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if err := b.Cancel(); err != nil {
			return fmt.Errorf("booking %d: %w", id, err)
		}

		if err := l.updateStatus(ctx, id, b.Status); err != nil {
			return err
		}

		booking = b
		return nil
	})

	return booking, err
}

func (l *Ledger) FindByID(ctx context.Context, id int) (*domain.Booking, error) {
	b, err := l.repo.GetById(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", domain.ErrBookingNotFound, id)
		}

		return nil, &domain.PersistenceError{Op: "load booking", Cause: err}
	}

	return b, nil
}

func (l *Ledger) FindByUser(ctx context.Context, userID int) ([]domain.Booking, error) {
	bookings, err := l.repo.GetByUserId(ctx, userID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load bookings", Cause: err}
	}

	return bookings, nil
}

func (l *Ledger) FindAll(ctx context.Context) ([]domain.Booking, error) {
	bookings, err := l.repo.GetAll(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load bookings", Cause: err}
	}

	return bookings, nil
}
