package leaderboarddb

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// historyBatchSize bounds the rows per INSERT statement.
const historyBatchSize = 1000

func (r *Impl) ListHistoryForLeaderboard(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]RunHistory, error) {
	db = r.resolveDB(db)
	var entries []RunHistory
	q := db.NewSelect().
		Model(&entries).
		Join("JOIN runs AS r ON r.id = rh.run_id").
		OrderExpr("rh.id ASC")
	if err := whereKey(q, key).Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListHistoryForLeaderboard: %w", err)
	}
	return entries, nil
}

func (r *Impl) ListHistoryForRun(ctx context.Context, db bun.IDB, runID string) ([]RunHistory, error) {
	db = r.resolveDB(db)
	var entries []RunHistory
	err := db.NewSelect().
		Model(&entries).
		Where("rh.run_id = ?", runID).
		OrderExpr("rh.start_date ASC, rh.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListHistoryForRun: %w", err)
	}
	return entries, nil
}

func (r *Impl) AppendHistory(ctx context.Context, db bun.IDB, entries []RunHistory) error {
	if len(entries) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	for start := 0; start < len(entries); start += historyBatchSize {
		batch := entries[start:min(start+historyBatchSize, len(entries))]
		if _, err := db.NewInsert().Model(&batch).Returning("id").Exec(ctx); err != nil {
			return fmt.Errorf("leaderboarddb.AppendHistory: %w", err)
		}
	}
	return nil
}

type historyCloseRow struct {
	ID        int64     `bun:"id"`
	EndDate   time.Time `bun:"end_date"`
	EndReason string    `bun:"end_reason"`
}

func (r *Impl) BulkCloseHistory(ctx context.Context, db bun.IDB, closes []leaderboarddomain.EntryClose) error {
	if len(closes) == 0 {
		return nil
	}
	db = r.resolveDB(db)

	rows := make([]historyCloseRow, 0, len(closes))
	for _, c := range closes {
		rows = append(rows, historyCloseRow{ID: c.ID, EndDate: c.EndDate, EndReason: string(c.EndReason)})
	}

	res, err := db.NewUpdate().
		With("_data", db.NewValues(&rows)).
		Model((*RunHistory)(nil)).
		TableExpr("_data").
		Set("end_date = _data.end_date::timestamptz").
		Set("end_reason = _data.end_reason").
		Where("rh.id = _data.id::bigint").
		Where("rh.end_date IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.BulkCloseHistory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("leaderboarddb.BulkCloseHistory: rows affected: %w", err)
	}
	if n < int64(len(closes)) {
		return fmt.Errorf("leaderboarddb.BulkCloseHistory: closed %d of %d: %w", n, len(closes), ErrStaleClose)
	}
	return nil
}

func (r *Impl) DeleteHistory(ctx context.Context, db bun.IDB, gameID string) (int64, error) {
	db = r.resolveDB(db)
	q := db.NewDelete().Model((*RunHistory)(nil))
	if gameID == "" {
		q = q.Where("TRUE")
	} else {
		q = q.Where("run_id IN (SELECT id FROM runs WHERE game_id = ?)", gameID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("leaderboarddb.DeleteHistory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("leaderboarddb.DeleteHistory: rows affected: %w", err)
	}
	return n, nil
}
