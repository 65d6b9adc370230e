package pricing

import (
	"time"
)

const DateLayout = "2006-01-02"

var staticHolidays = []string{
	"2025-01-01",
	"2025-03-31",
	"2025-04-18",
	"2025-05-01",
	"2025-05-29",
	"2025-12-25",
}

type dateKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{y, m, d}
}

// Calendar is an immutable holiday set. Only the calendar date of a time value
// is considered; clock and location are ignored.
type Calendar struct {
	holidays map[dateKey]struct{}
}

func NewCalendar(holidays ...time.Time) *Calendar {
	c := &Calendar{holidays: make(map[dateKey]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[keyOf(h)] = struct{}{}
	}

	return c
}

// DefaultCalendar holds the built-in national holidays.
func DefaultCalendar() *Calendar {
	dates := make([]time.Time, 0, len(staticHolidays))
	for _, s := range staticHolidays {
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			panic(err)
		}
		dates = append(dates, d)
	}

	return NewCalendar(dates...)
}

// With returns a new calendar containing c's holidays plus extra.
func (c *Calendar) With(extra ...time.Time) *Calendar {
	merged := &Calendar{holidays: make(map[dateKey]struct{}, len(c.holidays)+len(extra))}
	for k := range c.holidays {
		merged.holidays[k] = struct{}{}
	}
	for _, h := range extra {
		merged.holidays[keyOf(h)] = struct{}{}
	}

	return merged
}

func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.holidays[keyOf(date)]
	return ok
}

func (c *Calendar) Len() int {
	return len(c.holidays)
}

// Classify puts a holiday ahead of the weekday/weekend split.
func (c *Calendar) Classify(date time.Time) DayClass {
	if c.IsHoliday(date) {
		return Holiday
	}

	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	default:
		return Weekday
	}
}

func (c *Calendar) StrategyFor(date time.Time) Strategy {
	return StrategyOf(c.Classify(date))
}
