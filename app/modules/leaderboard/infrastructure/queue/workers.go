package leaderboardqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	"github.com/thpsrun/website-sub000/app/observability/attr"
)

// rebuildTimeout bounds a full replay of every game.
const rebuildTimeout = 30 * time.Minute

// StreakCheckWorker runs the daily anniversary check.
type StreakCheckWorker struct {
	river.WorkerDefaults[StreakCheckJob]
	service leaderboardservice.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewStreakCheckWorker creates a worker that calls BuildStreaks for today.
func NewStreakCheckWorker(logger *slog.Logger, service leaderboardservice.Service) *StreakCheckWorker {
	return &StreakCheckWorker{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// Work executes the streak check.
func (w *StreakCheckWorker) Work(ctx context.Context, job *river.Job[StreakCheckJob]) error {
	logger := w.logger.With(
		attr.Int64("job_id", job.ID),
		attr.String("job_kind", job.Kind),
		attr.String("game_id", job.Args.GameID),
		attr.Int("attempt", job.Attempt),
	)
	logger.InfoContext(ctx, "Processing streak check job")

	result, err := w.service.BuildStreaks(ctx, leaderboardservice.StreakOptions{
		GameID: job.Args.GameID,
		Date:   w.now().UTC(),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Streak check failed", attr.Error(err))
		return fmt.Errorf("build streaks: %w", err)
	}
	if result.Failure != nil {
		return cancelOnFailure(ctx, logger, *result.Failure)
	}

	summary := result.Success
	logger.InfoContext(ctx, "Streak check completed",
		attr.Int("checked", summary.Checked),
		attr.Int("awarded", summary.Awarded),
	)
	return nil
}

// RebuildWorker replays leaderboards on a schedule, paced by a rate limiter.
type RebuildWorker struct {
	river.WorkerDefaults[RebuildJob]
	service     leaderboardservice.Service
	logger      *slog.Logger
	limiter     *rate.Limiter
	concurrency int
}

// NewRebuildWorker creates a rebuild worker. A non-positive perSecond
// leaves the rebuild unthrottled.
func NewRebuildWorker(logger *slog.Logger, service leaderboardservice.Service, perSecond float64, concurrency int) *RebuildWorker {
	w := &RebuildWorker{
		service:     service,
		logger:      logger,
		concurrency: concurrency,
	}
	if perSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return w
}

// Timeout overrides River's default job timeout.
func (w *RebuildWorker) Timeout(*river.Job[RebuildJob]) time.Duration {
	return rebuildTimeout
}

// Work executes the rebuild.
func (w *RebuildWorker) Work(ctx context.Context, job *river.Job[RebuildJob]) error {
	logger := w.logger.With(
		attr.Int64("job_id", job.ID),
		attr.String("job_kind", job.Kind),
		attr.String("game_id", job.Args.GameID),
		attr.Int("attempt", job.Attempt),
	)
	logger.InfoContext(ctx, "Processing rebuild job")

	opts := leaderboardservice.BuildOptions{
		GameID:      job.Args.GameID,
		Force:       job.Args.Force,
		Concurrency: w.concurrency,
	}
	if w.limiter != nil {
		opts.Throttle = w.limiter
	}

	result, err := w.service.BuildRunHistory(ctx, opts)
	if err != nil {
		logger.ErrorContext(ctx, "Rebuild failed", attr.Error(err))
		return fmt.Errorf("build run history: %w", err)
	}
	if result.Failure != nil {
		return cancelOnFailure(ctx, logger, *result.Failure)
	}

	summary := result.Success
	logger.InfoContext(ctx, "Rebuild completed",
		attr.String("batch_id", summary.BatchID),
		attr.Int("leaderboards", summary.Leaderboards),
		attr.Int("updated", summary.Updated),
		attr.Int("errors", summary.Errors),
		attr.Int("entries_created", summary.EntriesCreated),
		attr.Int("entries_closed", summary.EntriesClosed),
		attr.Int("points_fixed", summary.PointsFixed),
	)
	return nil
}

// cancelOnFailure stops River from retrying a job that can never succeed.
func cancelOnFailure(ctx context.Context, logger *slog.Logger, failure error) error {
	if errors.Is(failure, leaderboardservice.ErrGameNotFound) {
		logger.WarnContext(ctx, "Job references an unknown game, cancelling", attr.Error(failure))
		return river.JobCancel(failure)
	}
	logger.ErrorContext(ctx, "Job failed", attr.Error(failure))
	return failure
}
