package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/storage"
)

type FileBookingLogRepository struct {
	table  storage.Table
	logger *slog.Logger
}

func NewFileBookingLogRepository(table storage.Table, logger *slog.Logger) *FileBookingLogRepository {
	return &FileBookingLogRepository{table: table, logger: logger}
}

func logEntryFromRecord(r storage.Record) (domain.BookingLogEntry, error) {
	if err := checkColumns(r, 6); err != nil {
		return domain.BookingLogEntry{}, err
	}

	var (
		e   domain.BookingLogEntry
		err error
	)

	if e.Timestamp, err = time.ParseInLocation(timestampLayout, strings.TrimSpace(r[0]), time.Local); err != nil {
		return e, err
	}
	e.ObserverName = r[1]
	if e.UserID, err = parseInt(r[2]); err != nil {
		return e, err
	}
	e.SeatNumber = r[3]
	e.Action = domain.SeatAction(strings.ToUpper(strings.TrimSpace(r[4])))
	if e.ScheduleID, err = parseInt(r[5]); err != nil {
		return e, err
	}

	return e, nil
}

func logEntryToRecord(e domain.BookingLogEntry) storage.Record {
	return storage.Record{
		e.Timestamp.Format(timestampLayout),
		e.ObserverName,
		formatInt(e.UserID),
		e.SeatNumber,
		string(e.Action),
		formatInt(e.ScheduleID),
	}
}

func (f *FileBookingLogRepository) Append(ctx context.Context, entry domain.BookingLogEntry) error {
	return f.table.AppendOne(ctx, logEntryToRecord(entry))
}

func (f *FileBookingLogRepository) GetAll(ctx context.Context) ([]domain.BookingLogEntry, error) {
	return loadRows(ctx, f.table, f.logger, "booking log", logEntryFromRecord)
}

func (f *FileBookingLogRepository) GetBySchedule(ctx context.Context, scheduleID int) ([]domain.BookingLogEntry, error) {
	all, err := f.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.BookingLogEntry, 0)
	for _, e := range all {
		if e.ScheduleID == scheduleID {
			entries = append(entries, e)
		}
	}

	return entries, nil
}

// Clear truncates the log back to its header line.
func (f *FileBookingLogRepository) Clear(ctx context.Context) error {
	return f.table.SaveAll(ctx, nil)
}
