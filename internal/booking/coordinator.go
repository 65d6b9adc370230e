// Package booking turns a multi-seat request into a confirmed, priced and
// persisted booking, releasing every reserved seat again if a step fails.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/notify"
	"github.com/metinatakli/cinex-booking/internal/pricing"
	"github.com/metinatakli/cinex-booking/internal/seats"
	appvalidator "github.com/metinatakli/cinex-booking/internal/validator"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/metinatakli/cinex-booking/internal/booking"

type BookRequest struct {
	UserID      int      `validate:"gt=0"`
	ScheduleID  int      `validate:"gt=0"`
	SeatNumbers []string `validate:"required,min=1,unique,dive,seat_number"`
	TicketType  string   `validate:"required,ticket_type"`
}

// ObserverFactory builds the listener attached to every seat a user reserves.
type ObserverFactory func(userID int) notify.Listener

type Dependencies struct {
	Validator *validator.Validate
	Schedules domain.ScheduleRepository
	Movies    domain.MovieRepository
	Seats     *seats.Store
	Ledger    *Ledger
	Calendar  *pricing.Calendar
	Observers ObserverFactory
	Logger    *slog.Logger
}

type Coordinator struct {
	validate  *validator.Validate
	schedules domain.ScheduleRepository
	movies    domain.MovieRepository
	seats     *seats.Store
	ledger    *Ledger
	calendar  *pricing.Calendar
	observers ObserverFactory
	logger    *slog.Logger
	now       func() time.Time

	tracer    trace.Tracer
	confirmed metric.Int64Counter
	failed    metric.Int64Counter
	tickets   metric.Int64Counter
}

func NewCoordinator(deps Dependencies) (*Coordinator, error) {
	meter := otel.Meter(instrumentationName)

	confirmed, err := meter.Int64Counter("cinex.bookings.confirmed",
		metric.WithDescription("Bookings confirmed"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("cinex.bookings.failed",
		metric.WithDescription("Booking attempts that failed, by reason"))
	if err != nil {
		return nil, err
	}

	tickets, err := meter.Int64Counter("cinex.tickets.sold",
		metric.WithDescription("Tickets in confirmed bookings"))
	if err != nil {
		return nil, err
	}

	calendar := deps.Calendar
	if calendar == nil {
		calendar = pricing.DefaultCalendar()
	}

	v := deps.Validator
	if v == nil {
		v = appvalidator.NewValidator()
	}

	return &Coordinator{
		validate:  v,
		schedules: deps.Schedules,
		movies:    deps.Movies,
		seats:     deps.Seats,
		ledger:    deps.Ledger,
		calendar:  calendar,
		observers: deps.Observers,
		logger:    deps.Logger,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
		confirmed: confirmed,
		failed:    failed,
		tickets:   tickets,
	}, nil
}

// BookSeats books every requested seat for one user and one schedule, or none
// of them.
func (c *Coordinator) BookSeats(ctx context.Context, req BookRequest) (*domain.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.BookSeats", trace.WithAttributes(
		attribute.Int("user.id", req.UserID),
		attribute.Int("schedule.id", req.ScheduleID),
		attribute.StringSlice("seat.numbers", req.SeatNumbers),
		attribute.String("ticket.type", req.TicketType),
	))
	defer span.End()

	booking, err := c.book(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))

		c.logger.Warn("booking failed",
			"user_id", req.UserID,
			"schedule_id", req.ScheduleID,
			"seats", req.SeatNumbers,
			"error", err)

		return nil, err
	}

	span.SetAttributes(attribute.Int("booking.id", booking.ID))
	c.confirmed.Add(ctx, 1)
	c.tickets.Add(ctx, int64(len(booking.Tickets)))

	c.logger.Info("booking confirmed",
		"booking_id", booking.ID,
		"user_id", booking.UserID,
		"schedule_id", booking.ScheduleID,
		"seats", booking.SeatNumbers(),
		"total", booking.TotalPrice.StringFixed(2))

	return booking, nil
}

func (c *Coordinator) book(ctx context.Context, req BookRequest) (*domain.Booking, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	ticketType, err := domain.ParseTicketType(req.TicketType)
	if err != nil {
		return nil, err
	}

	schedule, movie, err := c.resolveSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}

	requested, err := c.checkAvailability(ctx, req.ScheduleID, req.SeatNumbers)
	if err != nil {
		return nil, err
	}

	unsubscribe, err := c.reserve(ctx, req.UserID, requested)
	if err != nil {
		return nil, err
	}

	quote, err := c.calendar.Quote(schedule.ShowDate, movie.BasePrice, ticketType)
	if err != nil {
		return nil, c.abort(ctx, requested, unsubscribe, err)
	}

	tickets := make([]domain.Ticket, len(req.SeatNumbers))
	for i, number := range req.SeatNumbers {
		tickets[i] = domain.Ticket{
			SeatNumber: number,
			Type:       ticketType,
			BasePrice:  quote.DayPrice,
			FinalPrice: quote.FinalPrice,
		}
	}

	booking := domain.NewBooking(req.UserID, req.ScheduleID, c.now(), tickets)

	if err := c.ledger.Save(ctx, &booking); err != nil {
		var persistenceErr *domain.PersistenceError
		if !errors.As(err, &persistenceErr) {
			err = &domain.PersistenceError{Op: "save booking", Cause: err}
		}

		return nil, c.abort(ctx, requested, unsubscribe, err)
	}

	return &booking, nil
}

func (c *Coordinator) resolveSchedule(ctx context.Context, scheduleID int) (*domain.Schedule, *domain.Movie, error) {
	schedule, err := c.schedules.GetById(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %d", domain.ErrScheduleNotFound, scheduleID)
		}

		return nil, nil, &domain.PersistenceError{Op: "load schedule", Cause: err}
	}

	movie, err := c.movies.GetById(ctx, schedule.MovieID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %d (schedule %d)", domain.ErrMovieNotFound, schedule.MovieID, scheduleID)
		}

		return nil, nil, &domain.PersistenceError{Op: "load movie", Cause: err}
	}

	return schedule, movie, nil
}

// checkAvailability resolves the requested seats and returns them sorted in
// reservation order.
func (c *Coordinator) checkAvailability(ctx context.Context, scheduleID int, numbers []string) ([]domain.Seat, error) {
	all, err := c.seats.LoadSeats(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string]domain.Seat, len(all))
	for _, seat := range all {
		byNumber[seat.Number] = seat
	}

	requested := make([]domain.Seat, 0, len(numbers))
	for _, number := range numbers {
		seat, ok := byNumber[number]
		if !ok {
			return nil, fmt.Errorf("%w: %s does not exist in schedule %d", domain.ErrInvalidSeatNumber, number, scheduleID)
		}

		if seat.Booked {
			return nil, &domain.SeatUnavailableError{SeatNumber: number}
		}

		requested = append(requested, seat)
	}

	slices.SortFunc(requested, func(a, b domain.Seat) int {
		if domain.LessSeatNumber(a.Number, b.Number) {
			return -1
		}
		if domain.LessSeatNumber(b.Number, a.Number) {
			return 1
		}
		return 0
	})

	return requested, nil
}

// reserve books seats in order, subscribing the user's observer to each seat
// first. If one fails, the seats booked before it are released and the
// subscriptions made here are dropped before the error is returned. The
// returned func drops them too; callers use it when a later step fails.
func (c *Coordinator) reserve(ctx context.Context, userID int, seats []domain.Seat) (func(), error) {
	var (
		observer   notify.Listener
		subscribed []notify.SeatKey
	)
	if c.observers != nil {
		observer = c.observers(userID)
	}

	unsubscribe := func() {
		for _, key := range subscribed {
			c.seats.Hub().Unsubscribe(key, observer)
		}
	}

	for i, seat := range seats {
		if observer != nil {
			key := notify.KeyOf(seat)
			if c.seats.Hub().Subscribe(key, observer) {
				subscribed = append(subscribed, key)
			}
		}

		if err := c.seats.BookSeat(ctx, seat.ID); err != nil {
			rollbackErr := c.release(ctx, seats[:i])
			unsubscribe()
			return nil, &domain.PartialBookingError{FailedSeat: seat.Number, Cause: errors.Join(err, rollbackErr)}
		}
	}

	return unsubscribe, nil
}

// abort releases reserved seats, then drops the observer subscriptions.
func (c *Coordinator) abort(ctx context.Context, reserved []domain.Seat, unsubscribe func(), cause error) error {
	rollbackErr := c.release(ctx, reserved)
	unsubscribe()

	if rollbackErr != nil {
		return errors.Join(cause, rollbackErr)
	}

	return cause
}

// release frees seats in reverse reservation order. It keeps going after a
// failure so that as many seats as possible are freed.
func (c *Coordinator) release(ctx context.Context, seats []domain.Seat) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(seats) - 1; i >= 0; i-- {
		if err := c.seats.ReleaseSeat(ctx, seats[i].ID); err != nil {
			c.logger.Error("failed to release seat during rollback",
				"seat_id", seats[i].ID,
				"seat", seats[i].Number,
				"schedule_id", seats[i].ScheduleID,
				"error", err)
			errs = append(errs, fmt.Errorf("releasing seat %s: %w", seats[i].Number, err))
		}
	}

	if len(seats) > 0 {
		c.logger.Info("rolled back seat reservations", "seats", len(seats), "failures", len(errs))
	}

	return errors.Join(errs...)
}

// CancelBooking marks a booking cancelled. Its seats stay booked.
func (c *Coordinator) CancelBooking(ctx context.Context, bookingID int) (*domain.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.CancelBooking", trace.WithAttributes(attribute.Int("booking.id", bookingID)))
	defer span.End()

	booking, err := c.ledger.Cancel(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info("booking cancelled", "booking_id", bookingID, "seats_kept", booking.SeatNumbers())

	return booking, nil
}

func (c *Coordinator) GetAvailableSeats(ctx context.Context, scheduleID int) ([]domain.Seat, error) {
	if _, _, err := c.resolveSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}

	return c.seats.AvailableSeats(ctx, scheduleID)
}

// GetSeats returns the full seat map of a schedule.
func (c *Coordinator) GetSeats(ctx context.Context, scheduleID int) ([]domain.Seat, error) {
	if _, _, err := c.resolveSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}

	return c.seats.LoadSeats(ctx, scheduleID)
}

// Quote prices one ticket of ticketType for a schedule.
func (c *Coordinator) Quote(ctx context.Context, scheduleID int, ticketType string) (pricing.Quote, error) {
	t, err := domain.ParseTicketType(ticketType)
	if err != nil {
		return pricing.Quote{}, err
	}

	schedule, movie, err := c.resolveSchedule(ctx, scheduleID)
	if err != nil {
		return pricing.Quote{}, err
	}

	return c.calendar.Quote(schedule.ShowDate, movie.BasePrice, t)
}

func (c *Coordinator) PriceFor(ctx context.Context, scheduleID int, ticketType string) (decimal.Decimal, error) {
	quote, err := c.Quote(ctx, scheduleID, ticketType)
	if err != nil {
		return decimal.Zero, err
	}

	return quote.FinalPrice, nil
}

func (c *Coordinator) BookingsForUser(ctx context.Context, userID int) ([]domain.Booking, error) {
	return c.ledger.FindByUser(ctx, userID)
}

func (c *Coordinator) AllBookings(ctx context.Context) ([]domain.Booking, error) {
	return c.ledger.FindAll(ctx)
}

func validationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			switch fe.Tag() {
			case "ticket_type":
				return fmt.Errorf("%w: %q", domain.ErrInvalidTicketType, fe.Value())
			case "seat_number":
				return fmt.Errorf("%w: %q", domain.ErrInvalidSeatNumber, fe.Value())
			}
		}
	}

	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, appvalidator.Describe(err))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPartialBooking):
		return "partial_booking"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	case errors.Is(err, domain.ErrSeatUnavailable):
		return "seat_unavailable"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrScheduleNotFound), errors.Is(err, domain.ErrMovieNotFound):
		return "not_found"
	default:
		return "invalid_request"
	}
}
