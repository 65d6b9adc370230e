package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinex-booking/internal/booking"
	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/lock"
	"github.com/metinatakli/cinex-booking/internal/notify"
	"github.com/metinatakli/cinex-booking/internal/pricing"
	"github.com/metinatakli/cinex-booking/internal/repository"
	"github.com/metinatakli/cinex-booking/internal/seats"
	appvalidator "github.com/metinatakli/cinex-booking/internal/validator"
	"github.com/metinatakli/cinex-booking/internal/vcs"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const serviceName = "cinex-booking"

var (
	version = vcs.Version()
)

type Application struct {
	config Config
	logger *slog.Logger
	out    io.Writer

	db    *pgxpool.Pool
	redis redis.UniversalClient
	nats  *nats.Conn

	files       repository.DataFiles
	users       domain.UserRepository
	schedules   domain.ScheduleRepository
	movies      domain.MovieRepository
	bookingLogs domain.BookingLogRepository
	store       *seats.Store
	coordinator *booking.Coordinator
}

// Run is the process entry point: it loads configuration, wires the
// application and executes the requested command.
func Run(args []string) error {
	if err := LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, rest, err := ParseConfig(args, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if cfg.DisplayVersion {
		fmt.Printf("Version:\t%s\n", version)
		return nil
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &Application{config: cfg, logger: logger, out: os.Stdout}

	shutdown, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	if cfg.OtelCollectorUrl != "" {
		app.logger = slog.New(NewMultiHandler(logger.Handler(), otelslog.NewHandler(serviceName)))
	}

	if err := app.wire(ctx); err != nil {
		app.Close()
		return err
	}
	defer app.Close()

	return app.Execute(ctx, rest)
}

// New wires an application for cfg, writing command output to out.
func New(ctx context.Context, cfg Config, logger *slog.Logger, out io.Writer) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{config: cfg, logger: logger, out: out}
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func newLogger(cfg Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Log.level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (app *Application) wire(ctx context.Context) error {
	cfg := app.config
	logger := app.logger

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	app.files = repository.NewDataFiles(cfg.DataDir, cfg.HolidaysFile, logger)
	app.users = repository.NewFileUserRepository(app.files.Users, logger)
	app.schedules = repository.NewFileScheduleRepository(app.files.Schedules, logger)
	app.movies = repository.NewFileMovieRepository(app.files.Movies, logger)
	app.bookingLogs = repository.NewFileBookingLogRepository(app.files.BookingLogs, logger)

	locker, err := app.newLocker()
	if err != nil {
		return err
	}

	hub := notify.NewHub(logger)

	if cfg.Nats.URL != "" {
		app.nats, err = newNatsConn(cfg, logger)
		if err != nil {
			return err
		}

		hub.SubscribeAll(notify.NewPublisherListener(app.nats, cfg.Nats.SubjectPrefix))
	}

	app.store = seats.NewStore(repository.NewFileSeatRepository(app.files.Seats, logger), locker, hub, logger)

	bookingRepo, err := app.newBookingRepository(ctx)
	if err != nil {
		return err
	}

	calendar, err := app.newCalendar(ctx)
	if err != nil {
		return err
	}

	app.coordinator, err = booking.NewCoordinator(booking.Dependencies{
		Validator: appvalidator.NewValidator(),
		Schedules: app.schedules,
		Movies:    app.movies,
		Seats:     app.store,
		Ledger:    booking.NewLedger(bookingRepo, locker, logger),
		Calendar:  calendar,
		Observers: func(userID int) notify.Listener {
			return notify.NewUserObserver(userID, app.bookingLogs, logger)
		},
		Logger: logger,
	})

	return err
}

func (app *Application) newLocker() (lock.Locker, error) {
	if app.config.Lock.Backend != LockBackendRedis {
		return lock.NewLocalLocker(app.config.Lock.Timeout), nil
	}

	rdb, err := newRedisClient(app.config)
	if err != nil {
		return nil, err
	}
	app.redis = rdb

	return lock.NewRedisLocker(rdb, app.logger, app.config.Lock.Timeout), nil
}

func (app *Application) newBookingRepository(ctx context.Context) (domain.BookingRepository, error) {
	if app.config.Ledger.Backend != LedgerBackendPostgres {
		return repository.NewFileBookingRepository(app.files.Bookings, app.files.Tickets, app.logger), nil
	}

	if app.config.DB.Migrations != "" {
		if err := RunMigrations(app.config.DB.DSN, app.config.DB.Migrations); err != nil {
			return nil, err
		}
		app.logger.Info("database migrations applied", "source", app.config.DB.Migrations)
	}

	db, err := newDatabasePool(ctx, app.config)
	if err != nil {
		return nil, err
	}
	app.db = db

	return repository.NewPostgresBookingRepository(db), nil
}

func (app *Application) newCalendar(ctx context.Context) (*pricing.Calendar, error) {
	extra, err := repository.NewFileHolidayRepository(app.files.Holidays, app.logger).GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading holidays: %w", err)
	}

	calendar := pricing.DefaultCalendar().With(extra...)
	app.logger.Debug("holiday calendar loaded", "holidays", calendar.Len(), "from_file", len(extra))

	return calendar, nil
}

// Close releases the connections opened by wire.
func (app *Application) Close() {
	if app.nats != nil {
		if err := app.nats.Drain(); err != nil {
			app.logger.Warn("failed to drain nats connection", "error", err)
		}
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn("failed to close redis client", "error", err)
		}
	}

	if app.db != nil {
		app.db.Close()
	}
}

func (app *Application) Coordinator() *booking.Coordinator {
	return app.coordinator
}

func (app *Application) Store() *seats.Store {
	return app.store
}

func newRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb)); err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = db.Ping(pingCtx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func newNatsConn(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return nc, nil
}
