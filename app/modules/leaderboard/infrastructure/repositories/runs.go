package leaderboarddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// whereKey limits a query joined on runs (alias r) to one leaderboard.
func whereKey(q *bun.SelectQuery, key leaderboarddomain.LeaderboardKey) *bun.SelectQuery {
	q = q.Where("r.game_id = ?", key.GameID).
		Where("r.subcategory = ?", key.Subcategory).
		Where("r.runtype = ?", string(key.RunType))
	if key.CategoryID == "" {
		q = q.Where("r.category_id IS NULL")
	} else {
		q = q.Where("r.category_id = ?", key.CategoryID)
	}
	if key.LevelID == "" {
		q = q.Where("r.level_id IS NULL")
	} else {
		q = q.Where("r.level_id = ?", key.LevelID)
	}
	return q
}

type leaderboardKeyRow struct {
	GameID      string `bun:"game_id"`
	CategoryID  string `bun:"category_id"`
	LevelID     string `bun:"level_id"`
	Subcategory string `bun:"subcategory"`
	RunType     string `bun:"runtype"`
}

func (r *Impl) ListLeaderboardKeys(ctx context.Context, db bun.IDB, gameID string) ([]leaderboarddomain.LeaderboardKey, error) {
	db = r.resolveDB(db)
	var rows []leaderboardKeyRow
	q := db.NewSelect().
		Model((*Run)(nil)).
		Distinct().
		ColumnExpr("r.game_id").
		ColumnExpr("COALESCE(r.category_id, '') AS category_id").
		ColumnExpr("COALESCE(r.level_id, '') AS level_id").
		ColumnExpr("r.subcategory").
		ColumnExpr("r.runtype").
		Where("r.vid_status = ?", leaderboarddomain.VidStatusVerified).
		Where("r.v_date IS NOT NULL OR r.date IS NOT NULL")
	if gameID != "" {
		q = q.Where("r.game_id = ?", gameID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListLeaderboardKeys: %w", err)
	}

	keys := make([]leaderboarddomain.LeaderboardKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, leaderboarddomain.LeaderboardKey{
			GameID:      row.GameID,
			CategoryID:  row.CategoryID,
			LevelID:     row.LevelID,
			Subcategory: row.Subcategory,
			RunType:     leaderboarddomain.RunType(row.RunType),
		})
	}
	leaderboarddomain.SortKeys(keys)
	return keys, nil
}

func (r *Impl) GetLeaderboardRuns(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]Run, error) {
	db = r.resolveDB(db)
	var runs []Run
	q := db.NewSelect().
		Model(&runs).
		Where("r.vid_status = ?", leaderboarddomain.VidStatusVerified).
		OrderExpr("COALESCE(r.v_date, r.date) ASC, r.id ASC")
	if err := whereKey(q, key).Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetLeaderboardRuns: %w", err)
	}
	if err := r.loadPlayers(ctx, db, runs); err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetLeaderboardRuns: %w", err)
	}
	return runs, nil
}

func (r *Impl) GetRun(ctx context.Context, db bun.IDB, runID string) (*Run, error) {
	db = r.resolveDB(db)
	run := new(Run)
	err := db.NewSelect().Model(run).Where("r.id = ?", runID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leaderboarddb.GetRun: %w", err)
	}
	runs := []Run{*run}
	if err := r.loadPlayers(ctx, db, runs); err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetRun: %w", err)
	}
	return &runs[0], nil
}

func (r *Impl) UpsertRuns(ctx context.Context, db bun.IDB, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(&runs).
		On("CONFLICT (id) DO UPDATE").
		Set("game_id = EXCLUDED.game_id").
		Set("category_id = EXCLUDED.category_id").
		Set("level_id = EXCLUDED.level_id").
		Set("subcategory = EXCLUDED.subcategory").
		Set("runtype = EXCLUDED.runtype").
		Set("place = EXCLUDED.place").
		Set("time_secs = EXCLUDED.time_secs").
		Set("timenl_secs = EXCLUDED.timenl_secs").
		Set("timeigt_secs = EXCLUDED.timeigt_secs").
		Set("date = EXCLUDED.date").
		Set("v_date = EXCLUDED.v_date").
		Set("vid_status = EXCLUDED.vid_status").
		Set("obsolete = EXCLUDED.obsolete").
		Set("points = EXCLUDED.points").
		Set("bonus = EXCLUDED.bonus").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpsertRuns: %w", err)
	}

	ids := make([]string, 0, len(runs))
	var links []RunPlayer
	for _, run := range runs {
		ids = append(ids, run.ID)
		for i, playerID := range run.PlayerIDs {
			links = append(links, RunPlayer{RunID: run.ID, PlayerID: playerID, Position: i})
		}
	}
	_, err = db.NewDelete().
		Model((*RunPlayer)(nil)).
		Where("run_id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpsertRuns: clear players: %w", err)
	}
	if len(links) > 0 {
		if _, err := db.NewInsert().Model(&links).Exec(ctx); err != nil {
			return fmt.Errorf("leaderboarddb.UpsertRuns: insert players: %w", err)
		}
	}
	return nil
}

type runPointsRow struct {
	ID     string `bun:"id"`
	Points int    `bun:"points"`
	Bonus  int    `bun:"bonus"`
}

func (r *Impl) UpdateRunPoints(ctx context.Context, db bun.IDB, updates []leaderboarddomain.RunUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	db = r.resolveDB(db)

	rows := make([]runPointsRow, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, runPointsRow{ID: u.RunID, Points: u.Points, Bonus: u.Bonus})
	}

	res, err := db.NewUpdate().
		With("_data", db.NewValues(&rows)).
		Model((*Run)(nil)).
		TableExpr("_data").
		Set("points = _data.points").
		Set("bonus = _data.bonus").
		Where("r.id = _data.id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpdateRunPoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpdateRunPoints: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *Impl) ListCurrentRecords(ctx context.Context, db bun.IDB, gameID string, maxBonus int) ([]Run, error) {
	db = r.resolveDB(db)
	var runs []Run
	q := db.NewSelect().
		Model(&runs).
		ColumnExpr("r.*").
		ColumnExpr("rh.points AS open_points").
		Join("JOIN run_history AS rh ON rh.run_id = r.id AND rh.end_date IS NULL").
		Join("JOIN games AS g ON g.id = r.game_id").
		Where("r.vid_status = ?", leaderboarddomain.VidStatusVerified).
		Where("r.obsolete = FALSE").
		Where("r.bonus < ?", maxBonus).
		Where("g.is_ce = FALSE").
		OrderExpr("r.game_id ASC, r.id ASC")
	if gameID != "" {
		q = q.Where("r.game_id = ?", gameID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListCurrentRecords: %w", err)
	}
	if err := r.loadPlayers(ctx, db, runs); err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListCurrentRecords: %w", err)
	}
	return runs, nil
}

type holdingRow struct {
	RunID     string    `bun:"run_id"`
	StartDate time.Time `bun:"start_date"`
}

func (r *Impl) ListRecordHoldings(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey, minPoints int) ([]leaderboarddomain.RecordHolding, error) {
	db = r.resolveDB(db)
	var rows []holdingRow
	q := db.NewSelect().
		TableExpr("run_history AS rh").
		ColumnExpr("rh.run_id, rh.start_date").
		Join("JOIN runs AS r ON r.id = rh.run_id").
		Where("rh.points >= ?", minPoints).
		OrderExpr("rh.start_date DESC, rh.id DESC")
	if err := whereKey(q, key).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListRecordHoldings: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.RunID)
	}
	players, err := r.playersByRun(ctx, db, ids)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListRecordHoldings: %w", err)
	}

	out := make([]leaderboarddomain.RecordHolding, 0, len(rows))
	for _, row := range rows {
		out = append(out, leaderboarddomain.RecordHolding{
			RunID:     row.RunID,
			StartDate: row.StartDate,
			PlayerIDs: players[row.RunID],
		})
	}
	return out, nil
}

// loadPlayers fills PlayerIDs on every run in place.
func (r *Impl) loadPlayers(ctx context.Context, db bun.IDB, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	players, err := r.playersByRun(ctx, db, ids)
	if err != nil {
		return err
	}
	for i := range runs {
		runs[i].PlayerIDs = players[runs[i].ID]
	}
	return nil
}

func (r *Impl) playersByRun(ctx context.Context, db bun.IDB, runIDs []string) (map[string][]string, error) {
	var links []RunPlayer
	err := db.NewSelect().
		Model(&links).
		Where("rp.run_id IN (?)", bun.In(runIDs)).
		OrderExpr("rp.run_id ASC, rp.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load run players: %w", err)
	}
	out := make(map[string][]string, len(runIDs))
	for _, l := range links {
		out[l.RunID] = append(out[l.RunID], l.PlayerID)
	}
	return out, nil
}
