package testutils

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/thpsrun/website-sub000/db/bundb"
)

// runMigrations applies the River schema and the application migrations.
func runMigrations(ctx context.Context, db *bun.DB, pgConnStr string, logger *slog.Logger) error {
	if _, err := bundb.Migrate(ctx, db, pgConnStr, logger); err != nil {
		return err
	}
	log.Println("All migrations ran successfully")
	return nil
}

// Known application tables, children first.
var appTables = []string{"run_history", "leaderboard_replays", "run_players", "runs", "players", "games"}

// CleanupRiverJobs deletes all jobs from the River queue
func CleanupRiverJobs(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, "DELETE FROM river_job")
	return err
}

// CleanupDatabase truncates all tables in the database to ensure a clean state
func CleanupDatabase(ctx context.Context, db *bun.DB) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(appTables, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	if err := CleanupRiverJobs(ctx, db); err != nil {
		// Don't fail if table doesn't exist yet
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("failed to cleanup river jobs: %w", err)
		}
	}
	return nil
}
