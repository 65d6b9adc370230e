package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TicketType string

const (
	TicketRegular TicketType = "Regular"
	TicketVIP     TicketType = "VIP"
	TicketStudent TicketType = "Student"
)

// TicketTypes lists the valid ticket types in display order.
var TicketTypes = []TicketType{TicketRegular, TicketVIP, TicketStudent}

// ParseTicketType matches s case-insensitively against the known ticket types.
func ParseTicketType(s string) (TicketType, error) {
	normalized := strings.TrimSpace(s)

	for _, t := range TicketTypes {
		if strings.EqualFold(normalized, string(t)) {
			return t, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidTicketType, s)
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Ticket struct {
	ID         int
	SeatNumber string
	Type       TicketType
	BasePrice  decimal.Decimal
	FinalPrice decimal.Decimal
}

type Booking struct {
	ID         int
	UserID     int
	ScheduleID int
	BookedAt   time.Time
	Tickets    []Ticket
	TotalPrice decimal.Decimal
	Status     BookingStatus
}

// NewBooking assembles a confirmed booking whose total is the sum of the
// tickets' final prices.
func NewBooking(userID, scheduleID int, bookedAt time.Time, tickets []Ticket) Booking {
	return Booking{
		UserID:     userID,
		ScheduleID: scheduleID,
		BookedAt:   bookedAt,
		Tickets:    tickets,
		TotalPrice: SumTickets(tickets),
		Status:     BookingConfirmed,
	}
}

func SumTickets(tickets []Ticket) decimal.Decimal {
	total := decimal.Zero

	for _, t := range tickets {
		total = total.Add(t.FinalPrice)
	}

	return total
}

// Cancel moves a confirmed booking to cancelled. The transition is one-way.
func (b *Booking) Cancel() error {
	if b.Status == BookingCancelled {
		return ErrBookingAlreadyCancelled
	}

	b.Status = BookingCancelled

	return nil
}

func (b *Booking) SeatNumbers() []string {
	numbers := make([]string, len(b.Tickets))
	for i, t := range b.Tickets {
		numbers[i] = t.SeatNumber
	}

	return numbers
}

func (b *Booking) Summary() string {
	return fmt.Sprintf("Booking #%d - %d ticket(s) - %s - %s",
		b.ID, len(b.Tickets), b.TotalPrice.StringFixed(2), strings.ToUpper(string(b.Status)))
}

type BookingRepository interface {
	NextID(ctx context.Context) (int, error)
	Create(ctx context.Context, booking *Booking) error
	GetById(ctx context.Context, id int) (*Booking, error)
	GetByUserId(ctx context.Context, userID int) ([]Booking, error)
	GetAll(ctx context.Context) ([]Booking, error)
	UpdateStatus(ctx context.Context, id int, status BookingStatus) error
}

type SeatAction string

const (
	SeatBooked   SeatAction = "BOOKED"
	SeatReleased SeatAction = "RELEASED"
)

func ActionFor(booked bool) SeatAction {
	if booked {
		return SeatBooked
	}

	return SeatReleased
}

// BookingLogEntry is one booking_logs.txt row written by a booking observer.
type BookingLogEntry struct {
	Timestamp    time.Time
	ObserverName string
	UserID       int
	SeatNumber   string
	Action       SeatAction
	ScheduleID   int
}

type BookingLogRepository interface {
	Append(ctx context.Context, entry BookingLogEntry) error
	GetAll(ctx context.Context) ([]BookingLogEntry, error)
	GetBySchedule(ctx context.Context, scheduleID int) ([]BookingLogEntry, error)
	Clear(ctx context.Context) error
}
