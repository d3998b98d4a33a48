package leaderboarddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

func (r *Impl) GetLeaderboardReplay(ctx context.Context, db bun.IDB, key string) (*LeaderboardReplay, error) {
	db = r.resolveDB(db)
	replay := new(LeaderboardReplay)
	err := db.NewSelect().
		Model(replay).
		Where("lr.leaderboard_key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("leaderboarddb.GetLeaderboardReplay: %w", err)
	}
	return replay, nil
}

func (r *Impl) UpsertLeaderboardReplay(ctx context.Context, db bun.IDB, replay *LeaderboardReplay) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(replay).
		On("CONFLICT (leaderboard_key) DO UPDATE").
		Set("game_id = EXCLUDED.game_id").
		Set("input_hash = EXCLUDED.input_hash").
		Set("runs = EXCLUDED.runs").
		Set("open_entries = EXCLUDED.open_entries").
		Set("processed_at = EXCLUDED.processed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpsertLeaderboardReplay: %w", err)
	}
	return nil
}

func (r *Impl) ListLeaderboardReplays(ctx context.Context, db bun.IDB, gameID string) ([]LeaderboardReplay, error) {
	db = r.resolveDB(db)
	var replays []LeaderboardReplay
	q := db.NewSelect().Model(&replays).OrderExpr("lr.leaderboard_key ASC")
	if gameID != "" {
		q = q.Where("lr.game_id = ?", gameID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListLeaderboardReplays: %w", err)
	}
	return replays, nil
}

// DeleteLeaderboardReplays forgets replay hashes so the next build replays
// from scratch. An empty gameID clears every game.
func (r *Impl) DeleteLeaderboardReplays(ctx context.Context, db bun.IDB, gameID string) error {
	db = r.resolveDB(db)
	q := db.NewDelete().Model((*LeaderboardReplay)(nil))
	if gameID == "" {
		q = q.Where("TRUE")
	} else {
		q = q.Where("game_id = ?", gameID)
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboarddb.DeleteLeaderboardReplays: %w", err)
	}
	return nil
}
