package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrInvalidRequest          = errors.New("invalid booking request")
	ErrScheduleNotFound        = errors.New("schedule not found")
	ErrMovieNotFound           = errors.New("movie not found")
	ErrInvalidTicketType       = errors.New("invalid ticket type, valid types: Regular, VIP, Student")
	ErrInvalidSeatNumber       = errors.New("invalid seat number")
	ErrSeatAlreadyBooked       = errors.New("seat is already booked")
	ErrSeatNotBooked           = errors.New("seat is not booked")
	ErrSeatUnavailable         = errors.New("seat is unavailable")
	ErrPartialBooking          = errors.New("booking failed partway through seat reservation")
	ErrPersistence             = errors.New("booking could not be persisted")
	ErrLockTimeout             = errors.New("timed out waiting for schedule lock")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingAlreadyCancelled = errors.New("booking is already cancelled")
)

// SeatUnavailableError reports a requested seat that was already booked when
// the booking request was validated.
type SeatUnavailableError struct {
	SeatNumber string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s is unavailable", e.SeatNumber)
}

func (e *SeatUnavailableError) Unwrap() error {
	return ErrSeatUnavailable
}

// PartialBookingError reports the seat whose reservation failed. By the time
// it is returned every seat reserved earlier in the same attempt has been
// released again.
type PartialBookingError struct {
	FailedSeat string
	Cause      error
}

func (e *PartialBookingError) Error() string {
	return fmt.Sprintf("reserving seat %s failed: %v", e.FailedSeat, e.Cause)
}

func (e *PartialBookingError) Unwrap() []error {
	return []error{ErrPartialBooking, e.Cause}
}

// PersistenceError wraps a storage failure of the named operation.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Cause}
}
