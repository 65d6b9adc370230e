package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
)

// AnonymousUserID is logged by observers not tied to a user.
const AnonymousUserID = -1

func UserObserverName(userID int) string {
	return fmt.Sprintf("User-%d-Observer", userID)
}

// BookingLogObserver writes a booking log row for every seat change it sees.
type BookingLogObserver struct {
	name    string
	userID  int
	repo    domain.BookingLogRepository
	logger  *slog.Logger
	enabled atomic.Bool
	now     func() time.Time
}

func NewBookingLogObserver(name string, userID int, repo domain.BookingLogRepository, logger *slog.Logger) *BookingLogObserver {
	o := &BookingLogObserver{
		name:   name,
		userID: userID,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	o.enabled.Store(true)

	return o
}

func NewUserObserver(userID int, repo domain.BookingLogRepository, logger *slog.Logger) *BookingLogObserver {
	return NewBookingLogObserver(UserObserverName(userID), userID, repo, logger)
}

func (o *BookingLogObserver) ID() string {
	return o.name
}

func (o *BookingLogObserver) UserID() int {
	return o.userID
}

func (o *BookingLogObserver) EnableLogging() {
	o.enabled.Store(true)
}

func (o *BookingLogObserver) DisableLogging() {
	o.enabled.Store(false)
}

func (o *BookingLogObserver) LoggingEnabled() bool {
	return o.enabled.Load()
}

func (o *BookingLogObserver) OnSeatChanged(ctx context.Context, event SeatEvent) error {
	o.logger.Info("seat changed",
		"observer", o.name,
		"schedule_id", event.ScheduleID,
		"seat", event.SeatNumber,
		"action", event.Action())

	if !o.enabled.Load() {
		return nil
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = o.now()
	}

	return o.repo.Append(ctx, domain.BookingLogEntry{
		Timestamp:    at,
		ObserverName: o.name,
		UserID:       o.userID,
		SeatNumber:   event.SeatNumber,
		Action:       event.Action(),
		ScheduleID:   event.ScheduleID,
	})
}
