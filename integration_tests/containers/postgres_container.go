package containers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresOptions describes the throwaway database the integration suite runs against.
type PostgresOptions struct {
	Image          string
	Database       string
	User           string
	Password       string
	StartupTimeout time.Duration
}

// PostgresOptionsFromEnv returns the suite defaults, overridden by SRL_TEST_PG_*
// variables so CI can pin a different server version.
func PostgresOptionsFromEnv() PostgresOptions {
	opts := PostgresOptions{
		Image:          "postgres:16-alpine",
		Database:       "srl_test",
		User:           "srl",
		Password:       "srl",
		StartupTimeout: 45 * time.Second,
	}
	if v := os.Getenv("SRL_TEST_PG_IMAGE"); v != "" {
		opts.Image = v
	}
	if v := os.Getenv("SRL_TEST_PG_DATABASE"); v != "" {
		opts.Database = v
	}
	if v := os.Getenv("SRL_TEST_PG_USER"); v != "" {
		opts.User = v
	}
	if v := os.Getenv("SRL_TEST_PG_PASSWORD"); v != "" {
		opts.Password = v
	}
	if v := os.Getenv("SRL_TEST_PG_STARTUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.StartupTimeout = d
		}
	}
	return opts
}

// DSN builds a connection string for the given host and port.
func (o PostgresOptions) DSN(host string, port nat.Port) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", o.User, o.Password, host, port.Port(), o.Database)
}

// Postgres is a running container together with its DSN.
type Postgres struct {
	Container *postgres.PostgresContainer
	DSN       string
}

// StartPostgres runs a Postgres container and waits until it accepts queries
// over the pgx driver the application uses.
func StartPostgres(ctx context.Context, opts PostgresOptions, logger *slog.Logger) (*Postgres, error) {
	started := time.Now()
	c, err := postgres.Run(ctx,
		opts.Image,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(opts.User),
		postgres.WithPassword(opts.Password),
		testcontainers.WithWaitStrategy(
			wait.ForSQL("5432/tcp", "pgx", opts.DSN).WithStartupTimeout(opts.StartupTimeout),
		),
	)
	if err != nil {
		if c != nil {
			err = errors.Join(err, c.Terminate(ctx))
		}
		return nil, fmt.Errorf("start postgres %s: %w", opts.Image, err)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, errors.Join(fmt.Errorf("postgres connection string: %w", err), c.Terminate(ctx))
	}

	logger.Info("Postgres container ready",
		"image", opts.Image,
		"database", opts.Database,
		"startup", time.Since(started).Round(time.Millisecond),
	)
	return &Postgres{Container: c, DSN: dsn}, nil
}

// Running reports an error unless the container is still up.
func (p *Postgres) Running(ctx context.Context) error {
	state, err := p.Container.State(ctx)
	if err != nil {
		return fmt.Errorf("postgres container state: %w", err)
	}
	if !state.Running {
		return fmt.Errorf("postgres container is %s", state.Status)
	}
	return nil
}

// Terminate stops and removes the container.
func (p *Postgres) Terminate(ctx context.Context) error {
	return p.Container.Terminate(ctx)
}
