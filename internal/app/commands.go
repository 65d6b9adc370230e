package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/metinatakli/cinex-booking/internal/booking"
	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/pricing"
)

var ErrUnknownCommand = errors.New("unknown command")

type command struct {
	name  string
	usage string
	run   func(app *Application, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = []command{
	{"schedules", "list schedules with their movie and day pricing", (*Application).schedulesCmd},
	{"seed", "write the seat grid of a schedule (all schedules when -schedule is 0)", (*Application).seedCmd},
	{"seats", "show the seat map of a schedule", (*Application).seatsCmd},
	{"price", "quote the price of one ticket", (*Application).priceCmd},
	{"book", "book seats for a user", (*Application).bookCmd},
	{"cancel", "cancel a booking; its seats stay booked", (*Application).cancelCmd},
	{"bookings", "list bookings, optionally of one user", (*Application).bookingsCmd},
	{"logs", "show or clear the booking observer log", (*Application).logsCmd},
}

// Execute runs the command named by args[0] with the remaining arguments as
// its flags.
func (app *Application) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		app.printUsage(app.out)
		return nil
	}

	name := args[0]
	for _, c := range commands {
		if c.name != name {
			continue
		}

		fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
		fs.SetOutput(app.out)

		err := c.run(app, ctx, fs, args[1:])
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	app.printUsage(app.out)
	return fmt.Errorf("%w %q", ErrUnknownCommand, name)
}

func (app *Application) printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: cinex [global flags] <command> [flags]")
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.usage)
	}
	tw.Flush()
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func requirePositive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: -%s must be a positive number", domain.ErrInvalidRequest, name)
	}
	return nil
}

func (app *Application) schedulesCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	schedules, err := app.schedules.GetAll(ctx)
	if err != nil {
		return err
	}

	tw := table(app.out)
	fmt.Fprintln(tw, "ID\tMOVIE\tSTUDIO\tDATE\tTIME\tDAY\tBASE PRICE\tAVAILABLE")

	for _, s := range schedules {
		title := "?"
		base := "-"
		if movie, err := app.movies.GetById(ctx, s.MovieID); err == nil {
			title = movie.Title
			base = movie.BasePrice.StringFixed(2)
		}

		available, err := app.store.AvailableCount(ctx, s.ID)
		if err != nil {
			return err
		}

		quote, err := app.coordinator.Quote(ctx, s.ID, string(domain.TicketRegular))
		day := "-"
		if err == nil {
			day = fmt.Sprintf("%s x%s", quote.Strategy.DayClass, quote.Strategy.Multiplier)
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			s.ID, title, s.StudioName, s.ShowDate.Format(pricing.DateLayout), s.ShowTime, day, base, available, domain.GridRows*domain.GridColumns)
	}

	return tw.Flush()
}

func (app *Application) seedCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	scheduleID := fs.Int("schedule", 0, "schedule id, 0 for every schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids := []int{*scheduleID}
	if *scheduleID == 0 {
		schedules, err := app.schedules.GetAll(ctx)
		if err != nil {
			return err
		}

		ids = ids[:0]
		for _, s := range schedules {
			ids = append(ids, s.ID)
		}
	}

	for _, id := range ids {
		created, err := app.store.Seed(ctx, id)
		if err != nil {
			return err
		}

		if created {
			fmt.Fprintf(app.out, "schedule %d: seeded %d seats\n", id, domain.GridRows*domain.GridColumns)
		} else {
			fmt.Fprintf(app.out, "schedule %d: seats already present\n", id)
		}
	}

	return nil
}

func (app *Application) seatsCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	scheduleID := fs.Int("schedule", 0, "schedule id")
	availableOnly := fs.Bool("available", false, "list available seat numbers only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requirePositive("schedule", *scheduleID); err != nil {
		return err
	}

	if *availableOnly {
		seats, err := app.coordinator.GetAvailableSeats(ctx, *scheduleID)
		if err != nil {
			return err
		}

		numbers := make([]string, len(seats))
		for i, s := range seats {
			numbers[i] = s.Number
		}

		fmt.Fprintf(app.out, "%d available: %s\n", len(numbers), strings.Join(numbers, " "))
		return nil
	}

	seats, err := app.coordinator.GetSeats(ctx, *scheduleID)
	if err != nil {
		return err
	}

	rows := make(map[byte][]domain.Seat)
	var letters []byte
	for _, s := range seats {
		row := s.Number[0]
		if _, ok := rows[row]; !ok {
			letters = append(letters, row)
		}
		rows[row] = append(rows[row], s)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })

	tw := table(app.out)
	free := 0
	for _, letter := range letters {
		cells := []string{string(letter)}
		for _, s := range rows[letter] {
			if s.Booked {
				cells = append(cells, "XX")
				continue
			}
			free++
			cells = append(cells, s.Number)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "\n%d of %d seats available (XX = booked)\n", free, len(seats))
	return nil
}

func (app *Application) priceCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	scheduleID := fs.Int("schedule", 0, "schedule id")
	ticketType := fs.String("type", string(domain.TicketRegular), "ticket type (Regular|VIP|Student)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requirePositive("schedule", *scheduleID); err != nil {
		return err
	}

	quote, err := app.coordinator.Quote(ctx, *scheduleID, *ticketType)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.out, "%s ticket, %s pricing: base %s, day price %s (x%s), final %s\n",
		quote.TicketType,
		quote.Strategy.DayClass,
		quote.BasePrice.StringFixed(2),
		quote.DayPrice.StringFixed(2),
		quote.Strategy.Multiplier,
		quote.FinalPrice.StringFixed(2))

	return nil
}

// resolveSession looks a user up by id or username.
func (app *Application) resolveSession(ctx context.Context, ident string) (*domain.Session, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, fmt.Errorf("%w: -user is required", domain.ErrInvalidRequest)
	}

	var (
		user *domain.User
		err  error
	)
	if id, convErr := strconv.Atoi(ident); convErr == nil {
		user, err = app.users.GetById(ctx, id)
	} else {
		user, err = app.users.GetByUsername(ctx, ident)
	}

	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown user %q", domain.ErrInvalidRequest, ident)
		}
		return nil, err
	}

	return domain.NewSession(user), nil
}

func splitSeats(s string) []string {
	var seats []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		seats = append(seats, strings.ToUpper(part))
	}
	return seats
}

func (app *Application) bookCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "username or user id")
	scheduleID := fs.Int("schedule", 0, "schedule id")
	ticketType := fs.String("type", string(domain.TicketRegular), "ticket type (Regular|VIP|Student)")
	seatList := fs.String("seats", "", "comma separated seat numbers, e.g. A1,A2")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := app.resolveSession(ctx, *user)
	if err != nil {
		return err
	}

	b, err := app.coordinator.BookSeats(ctx, booking.BookRequest{
		UserID:      session.UserID(),
		ScheduleID:  *scheduleID,
		SeatNumbers: splitSeats(*seatList),
		TicketType:  *ticketType,
	})
	if err != nil {
		return err
	}

	app.logger.Debug("booked through cli", "session_id", session.ID, "booking_id", b.ID)

	fmt.Fprintln(app.out, b.Summary())
	return app.printTickets(b)
}

func (app *Application) printTickets(b *domain.Booking) error {
	tw := table(app.out)
	fmt.Fprintln(tw, "  SEAT\tTYPE\tBASE\tFINAL")
	for _, t := range b.Tickets {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.SeatNumber, t.Type, t.BasePrice.StringFixed(2), t.FinalPrice.StringFixed(2))
	}
	return tw.Flush()
}

func (app *Application) cancelCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	bookingID := fs.Int("booking", 0, "booking id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requirePositive("booking", *bookingID); err != nil {
		return err
	}

	b, err := app.coordinator.CancelBooking(ctx, *bookingID)
	if err != nil {
		return err
	}

	fmt.Fprintln(app.out, b.Summary())
	fmt.Fprintf(app.out, "seats %s remain booked\n", strings.Join(b.SeatNumbers(), ", "))
	return nil
}

func (app *Application) bookingsCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "username or user id; empty lists every booking")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		bookings []domain.Booking
		err      error
	)
	if *user == "" {
		bookings, err = app.coordinator.AllBookings(ctx)
	} else {
		var session *domain.Session
		session, err = app.resolveSession(ctx, *user)
		if err != nil {
			return err
		}
		bookings, err = app.coordinator.BookingsForUser(ctx, session.UserID())
	}
	if err != nil {
		return err
	}

	if len(bookings) == 0 {
		fmt.Fprintln(app.out, "no bookings")
		return nil
	}

	for _, b := range bookings {
		fmt.Fprintf(app.out, "%s - schedule %d - seats %s\n", b.Summary(), b.ScheduleID, strings.Join(b.SeatNumbers(), ","))
	}

	return nil
}

func (app *Application) logsCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	scheduleID := fs.Int("schedule", 0, "only entries of this schedule")
	clearLog := fs.Bool("clear", false, "remove every entry")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *clearLog {
		if err := app.bookingLogs.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(app.out, "booking log cleared")
		return nil
	}

	var (
		entries []domain.BookingLogEntry
		err     error
	)
	if *scheduleID > 0 {
		entries, err = app.bookingLogs.GetBySchedule(ctx, *scheduleID)
	} else {
		entries, err = app.bookingLogs.GetAll(ctx)
	}
	if err != nil {
		return err
	}

	tw := table(app.out)
	fmt.Fprintln(tw, "TIMESTAMP\tOBSERVER\tUSER\tSEAT\tACTION\tSCHEDULE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.ObserverName, e.UserID, e.SeatNumber, e.Action, e.ScheduleID)
	}

	return tw.Flush()
}
