package leaderboardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating run_history table...")

		_, err := db.NewCreateTable().
			Model((*leaderboarddb.RunHistory)(nil)).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_run_history_dates ON run_history (start_date, end_date)").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_run_history_run_start ON run_history (run_id, start_date)").Exec(ctx)
		if err != nil {
			return err
		}
		// At most one open interval per run.
		_, err = db.NewRaw("CREATE UNIQUE INDEX IF NOT EXISTS uq_run_history_open ON run_history (run_id) WHERE end_date IS NULL").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("ALTER TABLE run_history DROP CONSTRAINT IF EXISTS chk_run_history_end_reason").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw(`ALTER TABLE run_history ADD CONSTRAINT chk_run_history_end_reason
			CHECK (end_reason IS NULL OR end_reason IN ('new_wr', 'lost_wr', 'gained_wr', 'obsoleted', 'recalculation'))`).Exec(ctx)
		if err != nil {
			return err
		}

		fmt.Println("run_history table created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping run_history table...")

		if _, err := db.NewDropTable().Model((*leaderboarddb.RunHistory)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}

		fmt.Println("run_history table dropped successfully!")
		return nil
	})
}
