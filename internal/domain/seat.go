package domain

import (
	"context"
	"fmt"
	"strconv"
)

const (
	GridRows    = 8
	GridColumns = 10
)

type Seat struct {
	ID         int
	ScheduleID int
	Number     string
	Booked     bool
}

// SeatNumber builds the label of a grid position, e.g. row 0 column 5 is "A5".
func SeatNumber(row, col int) string {
	return fmt.Sprintf("%c%d", 'A'+row, col)
}

// ParseSeatNumber splits a seat label into its row letter and column number.
func ParseSeatNumber(number string) (byte, int, error) {
	if len(number) < 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSeatNumber, number)
	}

	row := number[0]
	if row < 'A' || row > 'Z' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSeatNumber, number)
	}

	col, err := strconv.Atoi(number[1:])
	if err != nil || col < 1 || number[1] == '0' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSeatNumber, number)
	}

	return row, col, nil
}

// LessSeatNumber orders seat labels by row, then numerically by column, so
// "A2" sorts before "A10". Unparseable labels sort after valid ones.
func LessSeatNumber(a, b string) bool {
	rowA, colA, errA := ParseSeatNumber(a)
	rowB, colB, errB := ParseSeatNumber(b)

	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return false
	case errB != nil:
		return true
	case rowA != rowB:
		return rowA < rowB
	default:
		return colA < colB
	}
}

// DefaultGrid generates the deterministic 8x10 layout for a schedule. Seat ids
// start at scheduleID*1000 and increase row-major; every seat is available.
func DefaultGrid(scheduleID int) []Seat {
	seats := make([]Seat, 0, GridRows*GridColumns)
	id := scheduleID * 1000

	for row := 0; row < GridRows; row++ {
		for col := 1; col <= GridColumns; col++ {
			seats = append(seats, Seat{
				ID:         id,
				ScheduleID: scheduleID,
				Number:     SeatNumber(row, col),
			})
			id++
		}
	}

	return seats
}

type SeatRepository interface {
	GetSeatsBySchedule(ctx context.Context, scheduleID int) ([]Seat, error)
	GetById(ctx context.Context, seatID int) (*Seat, error)
	Update(ctx context.Context, seat Seat) error
	CreateBulk(ctx context.Context, seats []Seat) error
}
