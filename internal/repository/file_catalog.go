package repository

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/storage"
)

// loadRows parses every record, logging and skipping those that fail.
func loadRows[T any](ctx context.Context, table storage.Table, logger *slog.Logger, kind string,
	parse func(storage.Record) (T, error)) ([]T, error) {

	records, err := table.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]T, 0, len(records))
	for _, r := range records {
		row, err := parse(r)
		if err != nil {
			logger.Warn("skipping invalid row", "kind", kind, "row", r, "error", err)
			continue
		}

		rows = append(rows, row)
	}

	return rows, nil
}

type FileMovieRepository struct {
	table  storage.Table
	logger *slog.Logger
}

func NewFileMovieRepository(table storage.Table, logger *slog.Logger) *FileMovieRepository {
	return &FileMovieRepository{table: table, logger: logger}
}

func movieFromRecord(r storage.Record) (domain.Movie, error) {
	if err := checkColumns(r, 6); err != nil {
		return domain.Movie{}, err
	}

	id, err := parseInt(r[0])
	if err != nil {
		return domain.Movie{}, err
	}

	duration, err := parseInt(r[3])
	if err != nil {
		return domain.Movie{}, err
	}

	rating, err := strconv.ParseFloat(strings.TrimSpace(r[4]), 64)
	if err != nil {
		return domain.Movie{}, err
	}

	price, err := parsePrice(r[5])
	if err != nil {
		return domain.Movie{}, err
	}

	return domain.Movie{
		ID:        id,
		Title:     r[1],
		Genre:     r[2],
		Duration:  duration,
		Rating:    rating,
		BasePrice: price,
	}, nil
}

func (f *FileMovieRepository) GetAll(ctx context.Context) ([]domain.Movie, error) {
	return loadRows(ctx, f.table, f.logger, "movie", movieFromRecord)
}

func (f *FileMovieRepository) GetById(ctx context.Context, id int) (*domain.Movie, error) {
	movies, err := f.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range movies {
		if m.ID == id {
			return &m, nil
		}
	}

	return nil, domain.ErrRecordNotFound
}

type FileScheduleRepository struct {
	table  storage.Table
	logger *slog.Logger
}

func NewFileScheduleRepository(table storage.Table, logger *slog.Logger) *FileScheduleRepository {
	return &FileScheduleRepository{table: table, logger: logger}
}

func scheduleFromRecord(r storage.Record) (domain.Schedule, error) {
	if err := checkColumns(r, 7); err != nil {
		return domain.Schedule{}, err
	}

	var (
		s   domain.Schedule
		err error
	)

	if s.ID, err = parseInt(r[0]); err != nil {
		return s, err
	}
	if s.MovieID, err = parseInt(r[1]); err != nil {
		return s, err
	}
	s.StudioName = r[2]
	if s.ShowDate, err = time.Parse(dateLayout, strings.TrimSpace(r[3])); err != nil {
		return s, err
	}
	if _, err = time.Parse(clockLayout, strings.TrimSpace(r[4])); err != nil {
		return s, err
	}
	s.ShowTime = strings.TrimSpace(r[4])
	if s.TotalSeats, err = parseInt(r[5]); err != nil {
		return s, err
	}
	if s.AvailableSeats, err = parseInt(r[6]); err != nil {
		return s, err
	}

	return s, nil
}

func (f *FileScheduleRepository) GetAll(ctx context.Context) ([]domain.Schedule, error) {
	return loadRows(ctx, f.table, f.logger, "schedule", scheduleFromRecord)
}

func (f *FileScheduleRepository) GetById(ctx context.Context, id int) (*domain.Schedule, error) {
	schedules, err := f.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range schedules {
		if s.ID == id {
			return &s, nil
		}
	}

	return nil, domain.ErrRecordNotFound
}

type FileHolidayRepository struct {
	table  storage.Table
	logger *slog.Logger
}

func NewFileHolidayRepository(table storage.Table, logger *slog.Logger) *FileHolidayRepository {
	return &FileHolidayRepository{table: table, logger: logger}
}

func (f *FileHolidayRepository) GetAll(ctx context.Context) ([]time.Time, error) {
	return loadRows(ctx, f.table, f.logger, "holiday", func(r storage.Record) (time.Time, error) {
		if err := checkColumns(r, 1); err != nil {
			return time.Time{}, err
		}

		return time.Parse(dateLayout, strings.TrimSpace(r[0]))
	})
}

type FileUserRepository struct {
	table  storage.Table
	logger *slog.Logger
}

func NewFileUserRepository(table storage.Table, logger *slog.Logger) *FileUserRepository {
	return &FileUserRepository{table: table, logger: logger}
}

func userFromRecord(r storage.Record) (domain.User, error) {
	if err := checkColumns(r, 5); err != nil {
		return domain.User{}, err
	}

	id, err := parseInt(r[0])
	if err != nil {
		return domain.User{}, err
	}

	return domain.User{
		ID:       id,
		Username: r[1],
		Password: r[2],
		Name:     r[3],
		Role:     domain.Role(strings.ToLower(strings.TrimSpace(r[4]))),
	}, nil
}

func (f *FileUserRepository) find(ctx context.Context, match func(domain.User) bool) (*domain.User, error) {
	users, err := loadRows(ctx, f.table, f.logger, "user", userFromRecord)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if match(u) {
			return &u, nil
		}
	}

	return nil, domain.ErrRecordNotFound
}

func (f *FileUserRepository) GetById(ctx context.Context, id int) (*domain.User, error) {
	return f.find(ctx, func(u domain.User) bool { return u.ID == id })
}

func (f *FileUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return f.find(ctx, func(u domain.User) bool { return u.Username == username })
}
