package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/storage"
)

// FileBookingRepository keeps booking headers and tickets in two tables.
// Write methods assume a single writer.
type FileBookingRepository struct {
	bookings storage.Table
	tickets  storage.Table
	logger   *slog.Logger
}

func NewFileBookingRepository(bookings, tickets storage.Table, logger *slog.Logger) *FileBookingRepository {
	return &FileBookingRepository{
		bookings: bookings,
		tickets:  tickets,
		logger:   logger,
	}
}

func bookingFromRecord(r storage.Record) (domain.Booking, error) {
	if err := checkColumns(r, 6); err != nil {
		return domain.Booking{}, err
	}

	var (
		b   domain.Booking
		err error
	)

	if b.ID, err = parseInt(r[0]); err != nil {
		return b, err
	}
	if b.UserID, err = parseInt(r[1]); err != nil {
		return b, err
	}
	if b.ScheduleID, err = parseInt(r[2]); err != nil {
		return b, err
	}
	if b.BookedAt, err = time.ParseInLocation(timestampLayout, strings.TrimSpace(r[3]), time.Local); err != nil {
		return b, err
	}
	if b.TotalPrice, err = parsePrice(r[4]); err != nil {
		return b, err
	}
	b.Status = domain.BookingStatus(strings.ToLower(strings.TrimSpace(r[5])))

	return b, nil
}

func bookingToRecord(b *domain.Booking) storage.Record {
	return storage.Record{
		formatInt(b.ID),
		formatInt(b.UserID),
		formatInt(b.ScheduleID),
		b.BookedAt.Format(timestampLayout),
		formatPrice(b.TotalPrice),
		string(b.Status),
	}
}

type ticketRow struct {
	bookingID int
	ticket    domain.Ticket
}

func ticketFromRecord(r storage.Record) (ticketRow, error) {
	if err := checkColumns(r, 6); err != nil {
		return ticketRow{}, err
	}

	var (
		row ticketRow
		err error
	)

	if row.ticket.ID, err = parseInt(r[0]); err != nil {
		return row, err
	}
	if row.bookingID, err = parseInt(r[1]); err != nil {
		return row, err
	}
	if row.ticket.Type, err = domain.ParseTicketType(r[2]); err != nil {
		return row, err
	}
	row.ticket.SeatNumber = r[3]
	if row.ticket.BasePrice, err = parsePrice(r[4]); err != nil {
		return row, err
	}
	if row.ticket.FinalPrice, err = parsePrice(r[5]); err != nil {
		return row, err
	}

	return row, nil
}

func ticketToRecord(bookingID int, t domain.Ticket) storage.Record {
	return storage.Record{
		formatInt(t.ID),
		formatInt(bookingID),
		string(t.Type),
		t.SeatNumber,
		formatPrice(t.BasePrice),
		formatPrice(t.FinalPrice),
	}
}

func (f *FileBookingRepository) NextID(ctx context.Context) (int, error) {
	records, err := f.bookings.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	return maxID(records) + 1, nil
}

// Create appends the tickets and then the booking header. If any write fails
// both tables are restored to their previous contents.
func (f *FileBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	bookingRecords, err := f.bookings.LoadAll(ctx)
	if err != nil {
		return err
	}

	for _, b := range f.parseBookings(bookingRecords) {
		if b.ID == booking.ID {
			return fmt.Errorf("booking %d already exists", booking.ID)
		}
	}

	ticketRecords, err := f.tickets.LoadAll(ctx)
	if err != nil {
		return err
	}

	nextTicketID := maxID(ticketRecords) + 1
	tickets := make([]domain.Ticket, len(booking.Tickets))
	copy(tickets, booking.Tickets)
	for i := range tickets {
		tickets[i].ID = nextTicketID + i
	}

	err = f.appendBooking(ctx, booking, tickets)
	if err != nil {
		f.logger.Error("booking write failed, restoring tables", "booking_id", booking.ID, "error", err)

		restoreErr := errors.Join(
			f.tickets.SaveAll(context.WithoutCancel(ctx), ticketRecords),
			f.bookings.SaveAll(context.WithoutCancel(ctx), bookingRecords),
		)
		if restoreErr != nil {
			return errors.Join(err, restoreErr)
		}

		return err
	}

	booking.Tickets = tickets

	return nil
}

func (f *FileBookingRepository) appendBooking(ctx context.Context, booking *domain.Booking, tickets []domain.Ticket) error {
	for _, t := range tickets {
		if err := f.tickets.AppendOne(ctx, ticketToRecord(booking.ID, t)); err != nil {
			return fmt.Errorf("writing ticket %s: %w", t.SeatNumber, err)
		}
	}

	if err := f.bookings.AppendOne(ctx, bookingToRecord(booking)); err != nil {
		return fmt.Errorf("writing booking header: %w", err)
	}

	return nil
}

func (f *FileBookingRepository) parseBookings(records []storage.Record) []domain.Booking {
	bookings := make([]domain.Booking, 0, len(records))
	for _, r := range records {
		b, err := bookingFromRecord(r)
		if err != nil {
			f.logger.Warn("skipping invalid booking row", "row", r, "error", err)
			continue
		}

		bookings = append(bookings, b)
	}

	return bookings
}

// load joins bookings that satisfy keep with their tickets, ordered by id.
func (f *FileBookingRepository) load(ctx context.Context, keep func(domain.Booking) bool) ([]domain.Booking, error) {
	records, err := f.bookings.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	all := f.parseBookings(records)

	bookings := make([]domain.Booking, 0)
	byID := make(map[int]int)
	for _, b := range all {
		if keep(b) {
			byID[b.ID] = len(bookings)
			bookings = append(bookings, b)
		}
	}

	if len(bookings) == 0 {
		return bookings, nil
	}

	rows, err := loadRows(ctx, f.tickets, f.logger, "ticket", ticketFromRecord)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if i, ok := byID[row.bookingID]; ok {
			bookings[i].Tickets = append(bookings[i].Tickets, row.ticket)
		}
	}

	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })

	return bookings, nil
}

func (f *FileBookingRepository) GetById(ctx context.Context, id int) (*domain.Booking, error) {
	bookings, err := f.load(ctx, func(b domain.Booking) bool { return b.ID == id })
	if err != nil {
		return nil, err
	}

	if len(bookings) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return &bookings[0], nil
}

func (f *FileBookingRepository) GetByUserId(ctx context.Context, userID int) ([]domain.Booking, error) {
	return f.load(ctx, func(b domain.Booking) bool { return b.UserID == userID })
}

func (f *FileBookingRepository) GetAll(ctx context.Context) ([]domain.Booking, error) {
	return f.load(ctx, func(domain.Booking) bool { return true })
}

func (f *FileBookingRepository) UpdateStatus(ctx context.Context, id int, status domain.BookingStatus) error {
	return f.bookings.Update(ctx, func(records []storage.Record) ([]storage.Record, error) {
		for i, r := range records {
			b, err := bookingFromRecord(r)
			if err != nil || b.ID != id {
				continue
			}

			b.Status = status
			records[i] = bookingToRecord(&b)
			return records, nil
		}

		return nil, domain.ErrRecordNotFound
	})
}
