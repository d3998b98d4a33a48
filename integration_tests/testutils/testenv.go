package testutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/uptrace/bun"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/thpsrun/website-sub000/config"
	"github.com/thpsrun/website-sub000/db/bundb"
	"github.com/thpsrun/website-sub000/integration_tests/containers"
)

// TestEnvironment holds all resources needed for integration testing
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	Postgres      *containers.Postgres
	DB            *bun.DB
	DBService     *bundb.DBService
	Config        *config.Config
	Logger        *slog.Logger
	T             *testing.T
}

// NewTestEnvironment starts Postgres, connects bun and applies every migration.
func NewTestEnvironment(t *testing.T) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stderr
	}
	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		Logger:        slog.New(slog.NewTextHandler(out, nil)),
		T:             t,
	}

	if err := env.setupContainers(ctx); err != nil {
		cancel()
		return nil, err
	}
	return env, nil
}

// setupContainers starts Postgres, connects bun and migrates.
func (env *TestEnvironment) setupContainers(ctx context.Context) error {
	pg, err := containers.StartPostgres(ctx, containers.PostgresOptionsFromEnv(), env.Logger)
	if err != nil {
		return err
	}
	env.Postgres = pg

	sqlDB, err := sql.Open("pgx", pg.DSN)
	if err != nil {
		return errors.Join(fmt.Errorf("open sql DB: %w", err), pg.Terminate(ctx))
	}

	db := bundb.BunDB(sqlDB)
	env.DB = db

	if err := runMigrations(ctx, db, pg.DSN, env.Logger); err != nil {
		return errors.Join(fmt.Errorf("run migrations: %w", err), db.Close(), pg.Terminate(ctx))
	}

	env.DBService = bundb.NewTestDBService(db)

	cfg := config.Default()
	cfg.Postgres = config.PostgresConfig{DSN: pg.DSN}
	env.Config = cfg
	return nil
}

// Reset checks the container is still healthy, then truncates every table so
// each test starts empty.
func (env *TestEnvironment) Reset(ctx context.Context) error {
	if err := env.CheckContainerHealth(ctx); err != nil {
		return err
	}
	return CleanupDatabase(ctx, env.DB)
}

// CheckContainerHealth verifies that the container is running and answers queries.
func (env *TestEnvironment) CheckContainerHealth(ctx context.Context) error {
	if env.Postgres != nil {
		if err := env.Postgres.Running(ctx); err != nil {
			return err
		}
	}
	if env.DB != nil {
		if err := env.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
	}
	return nil
}

// Cleanup tears down all resources created for testing.
func (env *TestEnvironment) Cleanup() {
	if env.CancelContext != nil {
		env.CancelContext()
	}
	if env.DB != nil {
		if err := env.DB.Close(); err != nil {
			env.Logger.Warn("Closing test database failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if env.Postgres != nil {
		if err := env.Postgres.Terminate(ctx); err != nil {
			env.Logger.Error("Terminating Postgres container failed", "error", err)
			return
		}
	}
	env.Logger.Info("Test environment cleaned up")
}
