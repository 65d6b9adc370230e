package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/metinatakli/cinex-booking/internal/lock"
	"github.com/metinatakli/cinex-booking/internal/notify"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"

	LedgerBackendFile     = "file"
	LedgerBackendPostgres = "postgres"
)

type Config struct {
	DataDir          string
	HolidaysFile     string
	Env              string
	OtelCollectorUrl string
	// How often metrics are pushed to the collector.
	OtelMetricInterval time.Duration
	DisplayVersion     bool
	Log              LogConfig
	Lock             LockConfig
	Ledger           LedgerConfig
	DB               DBConfig
	Redis            RedisConfig
	Nats             NatsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type LockConfig struct {
	Backend string
	Timeout time.Duration
}

type LedgerConfig struct {
	Backend string
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
	Migrations   string
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type NatsConfig struct {
	URL           string
	SubjectPrefix string
}

// LoadDotEnv copies the variables of an optional .env file into the process
// environment. Variables that are already set win.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

// ParseConfig reads the global flags from args. Environment variables provide
// the defaults. The remaining arguments (the command and its flags) are
// returned alongside the config.
func ParseConfig(args []string, getenv func(string) string) (Config, []string, error) {
	var cfg Config

	env := envReader{getenv: getenv}
	fs := flag.NewFlagSet("cinex", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", env.str("CINEX_DATA_DIR", "data"), "Directory holding the pipe-delimited data files")
	fs.StringVar(&cfg.HolidaysFile, "holidays-file", env.str("CINEX_HOLIDAYS_FILE", "holidays.txt"), "Extra holidays file inside the data directory")
	fs.StringVar(&cfg.Env, "env", env.str("CINEX_ENV", "dev"), "Environment (dev|staging|prod)")
	fs.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", env.str("OTEL_COLLECTOR_URL", ""), "OpenTelemetry collector gRPC endpoint")
	fs.DurationVar(&cfg.OtelMetricInterval, "otel-metric-interval", env.duration("OTEL_METRIC_INTERVAL", 15*time.Second), "interval between metric exports")

	fs.StringVar(&cfg.Log.Level, "log-level", env.str("CINEX_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.Log.Format, "log-format", env.str("CINEX_LOG_FORMAT", "text"), "Log format (text|json)")

	fs.StringVar(&cfg.Lock.Backend, "lock-backend", env.str("CINEX_LOCK_BACKEND", LockBackendLocal), "Schedule lock backend (local|redis)")
	fs.DurationVar(&cfg.Lock.Timeout, "lock-timeout", env.duration("CINEX_LOCK_TIMEOUT", lock.DefaultTimeout), "Maximum wait for a schedule lock")

	fs.StringVar(&cfg.Ledger.Backend, "ledger-backend", env.str("CINEX_LEDGER_BACKEND", LedgerBackendFile), "Booking ledger backend (file|postgres)")

	fs.StringVar(&cfg.DB.DSN, "db-dsn", env.str("CINEX_DB_DSN", ""), "PostgreSQL DSN")
	fs.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", env.int("CINEX_DB_MAX_OPEN_CONNS", 25), "PostgreSQL max open connections")
	fs.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", env.duration("CINEX_DB_MAX_IDLE_TIME", 15*time.Minute), "PostgreSQL max idle time for connections")
	fs.StringVar(&cfg.DB.Migrations, "db-migrations", env.str("CINEX_DB_MIGRATIONS", ""), "Migrations source applied on start, e.g. file://migrations")

	fs.StringVar(&cfg.Redis.URL, "redis-url", env.str("CINEX_REDIS_URL", ""), "Redis URL")
	fs.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", env.int("CINEX_REDIS_MAX_OPEN_CONNS", 25), "Redis max open connections")
	fs.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", env.int("CINEX_REDIS_MAX_IDLE_CONNS", 10), "Redis max idle connections")
	fs.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", env.duration("CINEX_REDIS_MAX_IDLE_TIME", 2*time.Minute), "Redis max idle time for connections")

	fs.StringVar(&cfg.Nats.URL, "nats-url", env.str("CINEX_NATS_URL", ""), "NATS server URL for seat events")
	fs.StringVar(&cfg.Nats.SubjectPrefix, "nats-subject", env.str("CINEX_NATS_SUBJECT", notify.DefaultSubjectPrefix), "NATS subject prefix for seat events")

	fs.BoolVar(&cfg.DisplayVersion, "version", false, "Display version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}

	return cfg, fs.Args(), nil
}

func (cfg Config) Validate() error {
	var errs []error

	if cfg.DataDir == "" {
		errs = append(errs, errors.New("data directory must be set"))
	}

	switch cfg.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if cfg.Redis.URL == "" {
			errs = append(errs, errors.New("redis lock backend requires -redis-url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend))
	}

	switch cfg.Ledger.Backend {
	case LedgerBackendFile:
	case LedgerBackendPostgres:
		if cfg.DB.DSN == "" {
			errs = append(errs, errors.New("postgres ledger backend requires -db-dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend))
	}

	if cfg.Lock.Timeout <= 0 {
		errs = append(errs, errors.New("lock timeout must be positive"))
	}

	if cfg.OtelCollectorUrl != "" && cfg.OtelMetricInterval <= 0 {
		errs = append(errs, errors.New("otel metric interval must be positive"))
	}

	if _, err := cfg.Log.level(); err != nil {
		errs = append(errs, err)
	}

	if f := cfg.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", f))
	}

	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", l.Level)
	}

	return level, nil
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e envReader) int(key string, def int) int {
	if n, err := strconv.Atoi(e.str(key, "")); err == nil {
		return n
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.str(key, "")); err == nil {
		return d
	}
	return def
}
