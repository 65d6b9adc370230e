package repository

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/metinatakli/cinex-booking/internal/storage"
	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04"
	timestampLayout = "2006-01-02 15:04:05"
)

var (
	seatsHeader       = []string{"seatId", "scheduleId", "seatNumber", "isBooked"}
	bookingLogsHeader = []string{"timestamp", "observerName", "userId", "seatNumber", "action", "scheduleId"}
)

// DataFiles holds one table per data file of a data directory.
type DataFiles struct {
	Movies      storage.Table
	Schedules   storage.Table
	Seats       storage.Table
	Bookings    storage.Table
	Tickets     storage.Table
	Users       storage.Table
	BookingLogs storage.Table
	Holidays    storage.Table
}

func NewDataFiles(dir, holidaysFile string, logger *slog.Logger) DataFiles {
	table := func(name string, columns int, opts ...storage.Option) storage.Table {
		opts = append(opts, storage.WithLogger(logger))
		return storage.NewFileTable(filepath.Join(dir, name), columns, opts...)
	}

	if holidaysFile == "" {
		holidaysFile = "holidays.txt"
	}

	return DataFiles{
		Movies:      table("movies.txt", 6),
		Schedules:   table("schedule.txt", 7),
		Seats:       table("seats.txt", 0, storage.WithHeader(seatsHeader...)),
		Bookings:    table("bookings.txt", 6),
		Tickets:     table("tickets.txt", 6),
		Users:       table("users.txt", 5),
		BookingLogs: table("booking_logs.txt", 0, storage.WithHeader(bookingLogsHeader...)),
		Holidays:    table(holidaysFile, 1),
	}
}

func checkColumns(r storage.Record, n int) error {
	if len(r) != n {
		return fmt.Errorf("expected %d columns, got %d", n, len(r))
	}

	return nil
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parsePrice(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// maxID returns the largest integer found in the first column, skipping rows
// where it does not parse.
func maxID(records []storage.Record) int {
	max := 0
	for _, r := range records {
		if len(r) == 0 {
			continue
		}

		id, err := parseInt(r[0])
		if err == nil && id > max {
			max = id
		}
	}

	return max
}
