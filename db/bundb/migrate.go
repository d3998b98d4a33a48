package bundb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	leaderboardmigrations "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories/migrations"
)

// NewMigrator returns the bun migrator for the application schema.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, leaderboardmigrations.Migrations)
}

// Migrate creates the migration tables if needed, then applies the river
// schema and every pending application migration.
func Migrate(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) (*migrate.MigrationGroup, error) {
	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	if err := MigrateRiver(ctx, dsn, logger); err != nil {
		return nil, err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run leaderboard migrations: %w", err)
	}
	if group.IsZero() {
		logger.InfoContext(ctx, "No new migrations to run")
	} else {
		logger.InfoContext(ctx, "Migrated database", slog.String("group", group.String()))
	}
	return group, nil
}

// MigrateRiver applies River's queue schema over its own pgx pool.
func MigrateRiver(ctx context.Context, dsn string, logger *slog.Logger) error {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN for River migrations: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
	if err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}

	logger.InfoContext(ctx, "River queue migrations completed", slog.Int("versions", len(res.Versions)))
	return nil
}
