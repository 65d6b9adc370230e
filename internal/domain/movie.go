package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Movie struct {
	ID        int
	Title     string
	Genre     string
	Duration  int
	Rating    float64
	BasePrice decimal.Decimal
}

type Schedule struct {
	ID             int
	MovieID        int
	StudioName     string
	ShowDate       time.Time
	ShowTime       string
	TotalSeats     int
	AvailableSeats int
}

type MovieRepository interface {
	GetAll(ctx context.Context) ([]Movie, error)
	GetById(ctx context.Context, id int) (*Movie, error)
}

type ScheduleRepository interface {
	GetAll(ctx context.Context) ([]Schedule, error)
	GetById(ctx context.Context, id int) (*Schedule, error)
}

// HolidayRepository lists extra holiday dates on top of the built-in calendar.
type HolidayRepository interface {
	GetAll(ctx context.Context) ([]time.Time, error)
}
