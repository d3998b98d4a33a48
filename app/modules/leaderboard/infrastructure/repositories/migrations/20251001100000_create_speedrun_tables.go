package leaderboardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating games, players, runs and run_players tables...")

		models := []interface{}{
			(*leaderboarddb.Game)(nil),
			(*leaderboarddb.Player)(nil),
			(*leaderboarddb.Run)(nil),
			(*leaderboarddb.RunPlayer)(nil),
		}
		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_runs_leaderboard ON runs (game_id, category_id, level_id, subcategory, runtype)",
			"CREATE INDEX IF NOT EXISTS idx_runs_vid_status ON runs (vid_status)",
			"CREATE INDEX IF NOT EXISTS idx_run_players_player_id ON run_players (player_id)",
		}
		for _, stmt := range indexes {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Speedrun tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping games, players, runs and run_players tables...")

		models := []interface{}{
			(*leaderboarddb.RunPlayer)(nil),
			(*leaderboarddb.Run)(nil),
			(*leaderboarddb.Player)(nil),
			(*leaderboarddb.Game)(nil),
		}
		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Speedrun tables dropped successfully!")
		return nil
	})
}
