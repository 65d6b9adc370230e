package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/storage"
)

// FileSeatRepository reads and rewrites the whole seats table on every call.
// Writes are single read-modify-write cycles of the table.
type FileSeatRepository struct {
	table  storage.Table
	logger *slog.Logger
}

func NewFileSeatRepository(table storage.Table, logger *slog.Logger) *FileSeatRepository {
	return &FileSeatRepository{
		table:  table,
		logger: logger,
	}
}

func seatFromRecord(r storage.Record) (domain.Seat, error) {
	if err := checkColumns(r, 4); err != nil {
		return domain.Seat{}, err
	}

	id, err := parseInt(r[0])
	if err != nil {
		return domain.Seat{}, err
	}

	scheduleID, err := parseInt(r[1])
	if err != nil {
		return domain.Seat{}, err
	}

	booked, err := strconv.ParseBool(r[3])
	if err != nil {
		return domain.Seat{}, err
	}

	return domain.Seat{ID: id, ScheduleID: scheduleID, Number: r[2], Booked: booked}, nil
}

func seatToRecord(s domain.Seat) storage.Record {
	return storage.Record{formatInt(s.ID), formatInt(s.ScheduleID), s.Number, strconv.FormatBool(s.Booked)}
}

func (f *FileSeatRepository) loadAll(ctx context.Context) ([]domain.Seat, error) {
	records, err := f.table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	return f.fromRecords(records), nil
}

func (f *FileSeatRepository) fromRecords(records []storage.Record) []domain.Seat {
	seats := make([]domain.Seat, 0, len(records))
	for _, r := range records {
		seat, err := seatFromRecord(r)
		if err != nil {
			f.logger.Warn("skipping invalid seat row", "row", r, "error", err)
			continue
		}

		seats = append(seats, seat)
	}

	return seats
}

// modify applies fn to every seat row as one read-modify-write of the table.
func (f *FileSeatRepository) modify(ctx context.Context, fn func([]domain.Seat) ([]domain.Seat, error)) error {
	return f.table.Update(ctx, func(records []storage.Record) ([]storage.Record, error) {
		seats, err := fn(f.fromRecords(records))
		if err != nil {
			return nil, err
		}

		out := make([]storage.Record, len(seats))
		for i, s := range seats {
			out[i] = seatToRecord(s)
		}

		return out, nil
	})
}

func (f *FileSeatRepository) GetSeatsBySchedule(ctx context.Context, scheduleID int) ([]domain.Seat, error) {
	all, err := f.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	seats := make([]domain.Seat, 0)
	for _, s := range all {
		if s.ScheduleID == scheduleID {
			seats = append(seats, s)
		}
	}

	return seats, nil
}

func (f *FileSeatRepository) GetById(ctx context.Context, seatID int) (*domain.Seat, error) {
	all, err := f.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range all {
		if s.ID == seatID {
			return &s, nil
		}
	}

	return nil, domain.ErrRecordNotFound
}

// Update rewrites the row with seat.ID.
func (f *FileSeatRepository) Update(ctx context.Context, seat domain.Seat) error {
	return f.modify(ctx, func(all []domain.Seat) ([]domain.Seat, error) {
		for i := range all {
			if all[i].ID == seat.ID {
				all[i] = seat
				return all, nil
			}
		}

		return nil, domain.ErrRecordNotFound
	})
}

// CreateBulk adds seats in a single rewrite. Seat ids and (schedule, number)
// pairs must not already exist.
func (f *FileSeatRepository) CreateBulk(ctx context.Context, seats []domain.Seat) error {
	type seatKey struct {
		scheduleID int
		number     string
	}

	return f.modify(ctx, func(all []domain.Seat) ([]domain.Seat, error) {
		ids := make(map[int]struct{}, len(all)+len(seats))
		keys := make(map[seatKey]struct{}, len(all)+len(seats))
		for _, s := range all {
			ids[s.ID] = struct{}{}
			keys[seatKey{s.ScheduleID, s.Number}] = struct{}{}
		}

		for _, s := range seats {
			if _, ok := ids[s.ID]; ok {
				return nil, fmt.Errorf("seat id %d already exists", s.ID)
			}

			k := seatKey{s.ScheduleID, s.Number}
			if _, ok := keys[k]; ok {
				return nil, fmt.Errorf("seat %s already exists for schedule %d", s.Number, s.ScheduleID)
			}

			ids[s.ID] = struct{}{}
			keys[k] = struct{}{}
		}

		return append(all, seats...), nil
	})
}
