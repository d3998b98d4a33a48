package leaderboardmetrics

import (
	"context"
	"time"
)

// NoOpMetrics discards every measurement.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string) {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string) {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string) {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, time.Duration) {}
func (NoOpMetrics) RecordLeaderboardProcessed(context.Context, string) {}
func (NoOpMetrics) RecordHistoryAppended(context.Context, int) {}
func (NoOpMetrics) RecordHistoryClosed(context.Context, int) {}
func (NoOpMetrics) RecordRunsFixed(context.Context, int) {}
func (NoOpMetrics) RecordStreaksAwarded(context.Context, int) {}

var (
	_ LeaderboardMetrics = NoOpMetrics{}
	_ LeaderboardMetrics = (*PrometheusMetrics)(nil)
)
