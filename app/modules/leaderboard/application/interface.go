package leaderboardservice

import (
	"context"
	"io"

	"github.com/thpsrun/website-sub000/app/utils/results"
)

// Service defines the contract for run-history and points operations.
type Service interface {
	// --- MUTATIONS ---

	// BuildRunHistory replays every leaderboard and brings the run-history
	// ledger and run points in line with the result. Per-leaderboard failures
	// are reported in the summary and never fail the batch.
	BuildRunHistory(ctx context.Context, opts BuildOptions) (results.OperationResult[BuildSummary, error], error)

	// BuildStreaks awards monthly world-record streak bonuses.
	BuildStreaks(ctx context.Context, opts StreakOptions) (results.OperationResult[StreakSummary, error], error)

	// --- READS ---

	GetRunHistory(ctx context.Context, runID string) (results.OperationResult[RunHistoryView, error], error)

	ListLeaderboards(ctx context.Context, gameID string) (results.OperationResult[[]LeaderboardSummary, error], error)

	// RunHistoryChart renders a run's points over time as a PNG.
	RunHistoryChart(ctx context.Context, runID string) ([]byte, error)

	// ExportGameHistory writes a game's ledger as an XLSX workbook.
	ExportGameHistory(ctx context.Context, gameID string, w io.Writer) error
}
