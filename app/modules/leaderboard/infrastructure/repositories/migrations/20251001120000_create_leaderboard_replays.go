package leaderboardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating leaderboard_replays table...")

		if _, err := db.NewCreateTable().Model((*leaderboarddb.LeaderboardReplay)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		_, err := db.NewRaw("CREATE INDEX IF NOT EXISTS idx_leaderboard_replays_game_id ON leaderboard_replays (game_id)").Exec(ctx)
		if err != nil {
			return err
		}

		fmt.Println("leaderboard_replays table created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping leaderboard_replays table...")

		if _, err := db.NewDropTable().Model((*leaderboarddb.LeaderboardReplay)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}

		fmt.Println("leaderboard_replays table dropped successfully!")
		return nil
	})
}
