// Package pricing classifies show dates and prices tickets. Every function here
// is pure; holiday data is passed in through a Calendar.
package pricing

import (
	"fmt"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/shopspring/decimal"
)

type DayClass string

const (
	Weekday DayClass = "Weekday"
	Weekend DayClass = "Weekend"
	Holiday DayClass = "Holiday"
)

var (
	dayMultipliers = map[DayClass]decimal.Decimal{
		Weekday: decimal.RequireFromString("1.0"),
		Weekend: decimal.RequireFromString("1.4"),
		Holiday: decimal.RequireFromString("1.8"),
	}

	ticketMultipliers = map[domain.TicketType]decimal.Decimal{
		domain.TicketRegular: decimal.RequireFromString("1.0"),
		domain.TicketVIP:     decimal.RequireFromString("2.0"),
		domain.TicketStudent: decimal.RequireFromString("0.75"),
	}
)

// Strategy is the pricing result for one show date.
type Strategy struct {
	DayClass   DayClass
	Multiplier decimal.Decimal
}

func StrategyOf(class DayClass) Strategy {
	return Strategy{DayClass: class, Multiplier: dayMultipliers[class]}
}

func (s Strategy) Apply(basePrice decimal.Decimal) decimal.Decimal {
	return basePrice.Mul(s.Multiplier)
}

// TicketMultiplier looks up the multiplier of a ticket type.
func TicketMultiplier(t domain.TicketType) (decimal.Decimal, error) {
	m, ok := ticketMultipliers[t]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidTicketType, t)
	}

	return m, nil
}

// TicketMultiplierFor parses a raw ticket type name, case-insensitively, and
// returns its multiplier.
func TicketMultiplierFor(name string) (decimal.Decimal, error) {
	t, err := domain.ParseTicketType(name)
	if err != nil {
		return decimal.Zero, err
	}

	return TicketMultiplier(t)
}

// FinalPrice is basePrice * dayMultiplier * typeMultiplier, unrounded.
func FinalPrice(basePrice, dayMultiplier, typeMultiplier decimal.Decimal) decimal.Decimal {
	return basePrice.Mul(dayMultiplier).Mul(typeMultiplier)
}

// PriceScale is the number of decimal places a quoted price carries.
const PriceScale = 2

// Quote prices one ticket of the given type for a show on date. DayPrice and
// FinalPrice are rounded to PriceScale, so totals summed from quotes are exact.
type Quote struct {
	Strategy   Strategy
	TicketType domain.TicketType
	BasePrice  decimal.Decimal
	DayPrice   decimal.Decimal
	FinalPrice decimal.Decimal
}

func (c *Calendar) Quote(date time.Time, basePrice decimal.Decimal, t domain.TicketType) (Quote, error) {
	typeMultiplier, err := TicketMultiplier(t)
	if err != nil {
		return Quote{}, err
	}

	strategy := c.StrategyFor(date)

	return Quote{
		Strategy:   strategy,
		TicketType: t,
		BasePrice:  basePrice,
		DayPrice:   strategy.Apply(basePrice).Round(PriceScale),
		FinalPrice: FinalPrice(basePrice, strategy.Multiplier, typeMultiplier).Round(PriceScale),
	}, nil
}
