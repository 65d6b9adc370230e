package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinex-booking/internal/domain"
)

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

func (p *PostgresBookingRepository) NextID(ctx context.Context) (int, error) {
	var id int

	err := p.db.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM bookings`).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	tickets := make([]domain.Ticket, len(booking.Tickets))
	copy(tickets, booking.Tickets)

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO bookings (id, user_id, schedule_id, booked_at, total_price, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`

		_, err := tx.Exec(
			ctx,
			query,
			booking.ID,
			booking.UserID,
			booking.ScheduleID,
			booking.BookedAt,
			booking.TotalPrice,
			string(booking.Status))

		if err != nil {
			return err
		}

		query = `
			INSERT INTO tickets (booking_id, ticket_type, seat_number, base_price, final_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`

		for i := range tickets {
			err = tx.QueryRow(
				ctx,
				query,
				booking.ID,
				string(tickets[i].Type),
				tickets[i].SeatNumber,
				tickets[i].BasePrice,
				tickets[i].FinalPrice).Scan(&tickets[i].ID)

			if err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("booking %d already exists: %w", booking.ID, err)
		}

		return err
	}

	booking.Tickets = tickets

	return nil
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

func (p *PostgresBookingRepository) GetById(ctx context.Context, id int) (*domain.Booking, error) {
	bookings, err := p.query(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	if len(bookings) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return &bookings[0], nil
}

func (p *PostgresBookingRepository) GetByUserId(ctx context.Context, userID int) ([]domain.Booking, error) {
	return p.query(ctx, `WHERE user_id = $1`, userID)
}

func (p *PostgresBookingRepository) GetAll(ctx context.Context) ([]domain.Booking, error) {
	return p.query(ctx, ``)
}

func (p *PostgresBookingRepository) query(ctx context.Context, where string, args ...any) ([]domain.Booking, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, schedule_id, booked_at, total_price, status
		FROM bookings
		%s
		ORDER BY id
	`, where)

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	ids := make([]int, 0)

	for rows.Next() {
		var (
			booking domain.Booking
			status  string
		)

		err = rows.Scan(
			&booking.ID,
			&booking.UserID,
			&booking.ScheduleID,
			&booking.BookedAt,
			&booking.TotalPrice,
			&status,
		)
		if err != nil {
			return nil, err
		}

		booking.Status = domain.BookingStatus(status)
		bookings = append(bookings, booking)
		ids = append(ids, booking.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(bookings) == 0 {
		return bookings, nil
	}

	tickets, err := p.retrieveTickets(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range bookings {
		bookings[i].Tickets = tickets[bookings[i].ID]
	}

	return bookings, nil
}

func (p *PostgresBookingRepository) retrieveTickets(ctx context.Context, bookingIDs []int) (map[int][]domain.Ticket, error) {
	query := `
		SELECT id, booking_id, ticket_type, seat_number, base_price, final_price
		FROM tickets
		WHERE booking_id = ANY($1)
		ORDER BY id
	`

	rows, err := p.db.Query(ctx, query, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make(map[int][]domain.Ticket)

	for rows.Next() {
		var (
			ticket     domain.Ticket
			bookingID  int
			ticketType string
		)

		err := rows.Scan(
			&ticket.ID,
			&bookingID,
			&ticketType,
			&ticket.SeatNumber,
			&ticket.BasePrice,
			&ticket.FinalPrice,
		)
		if err != nil {
			return nil, err
		}

		ticket.Type = domain.TicketType(ticketType)
		tickets[bookingID] = append(tickets[bookingID], ticket)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (p *PostgresBookingRepository) UpdateStatus(ctx context.Context, id int, status domain.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	tag, err := p.db.Exec(ctx, query, string(status), id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
