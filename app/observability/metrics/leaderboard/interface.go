package leaderboardmetrics

import (
	"context"
	"time"
)

// LeaderboardMetrics records run-history and streak processing.
type LeaderboardMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, scope string)
	RecordOperationSuccess(ctx context.Context, operation, scope string)
	RecordOperationFailure(ctx context.Context, operation, scope string)
	RecordOperationDuration(ctx context.Context, operation string, duration time.Duration)

	// RecordLeaderboardProcessed counts one leaderboard of a build by outcome.
	RecordLeaderboardProcessed(ctx context.Context, outcome string)
	RecordHistoryAppended(ctx context.Context, count int)
	RecordHistoryClosed(ctx context.Context, count int)
	RecordRunsFixed(ctx context.Context, count int)
	RecordStreaksAwarded(ctx context.Context, count int)
}

// Build outcomes for RecordLeaderboardProcessed.
const (
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)
