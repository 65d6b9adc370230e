package integration_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/metinatakli/cinex-booking/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

type TestApp struct {
	App *app.Application
	Out *bytes.Buffer
}

// BaseSuite starts one Postgres and one Redis container for the whole suite.
// Every test gets a fresh data directory and empty booking tables.
type BaseSuite struct {
	suite.Suite
	ctx            context.Context
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
	db             *pgxpool.Pool
	redis          *redis.Client
	dataDir        string
}

func (s *BaseSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping container tests in short mode")
	}

	s.ctx = context.Background()

	postgresContainer, err := getDbContainer(s.ctx)
	s.Require().NoError(err)
	s.dbContainer = postgresContainer

	redisContainer, err := getCacheContainer(s.ctx)
	s.Require().NoError(err)
	s.cacheContainer = redisContainer

	s.db, err = pgxpool.New(s.ctx, postgresContainer.ConnectionString)
	s.Require().NoError(err)

	s.redis = redis.NewClient(&redis.Options{Addr: redisContainer.ConnectionString})
}

func (s *BaseSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container.Container); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
	if s.cacheContainer != nil {
		if err := testcontainers.TerminateContainer(s.cacheContainer.Container); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
}

func (s *BaseSuite) SetupTest() {
	_, err := s.db.Exec(s.ctx, "TRUNCATE tickets, bookings RESTART IDENTITY CASCADE")
	s.Require().NoError(err)
	s.Require().NoError(s.redis.FlushAll(s.ctx).Err())

	s.dataDir = s.T().TempDir()
	for name, content := range dataFiles {
		s.Require().NoError(os.WriteFile(filepath.Join(s.dataDir, name), []byte(content), 0o644))
	}
}

func (s *BaseSuite) config() app.Config {
	return app.Config{
		DataDir:      s.dataDir,
		HolidaysFile: "holidays.txt",
		Env:          "test",
		Log:          app.LogConfig{Level: "info", Format: "text"},
		Lock: app.LockConfig{
			Backend: app.LockBackendRedis,
			Timeout: 2 * time.Second,
		},
		Ledger: app.LedgerConfig{Backend: app.LedgerBackendPostgres},
		DB: app.DBConfig{
			DSN:          s.dbContainer.ConnectionString,
			MaxOpenConns: 10,
			MaxIdleTime:  2 * time.Minute,
			Migrations:   migrationsSource,
		},
		Redis: app.RedisConfig{
			URL:          s.cacheContainer.ConnectionString,
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			MaxIdleTime:  2 * time.Minute,
		},
	}
}

func (s *BaseSuite) newTestApp() *TestApp {
	out := new(bytes.Buffer)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	application, err := app.New(s.ctx, s.config(), logger, out)
	s.Require().NoError(err)
	s.T().Cleanup(application.Close)

	return &TestApp{App: application, Out: out}
}

func (t *TestApp) Run(ctx context.Context, args ...string) (string, error) {
	t.Out.Reset()
	err := t.App.Execute(ctx, args)
	return t.Out.String(), err
}
