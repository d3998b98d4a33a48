package leaderboardservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
	"github.com/thpsrun/website-sub000/app/observability/attr"
	leaderboardmetrics "github.com/thpsrun/website-sub000/app/observability/metrics/leaderboard"
	"github.com/thpsrun/website-sub000/app/utils/results"
)

// BuildRunHistory replays every leaderboard and reconciles the stored ledger.
func (s *LeaderboardService) BuildRunHistory(ctx context.Context, opts BuildOptions) (results.OperationResult[BuildSummary, error], error) {
	batchID := uuid.NewString()
	ctx = attr.WithCorrelationID(ctx, batchID)

	return withTelemetry(s, ctx, "BuildRunHistory", scopeOf(opts.GameID), func(ctx context.Context) (results.OperationResult[BuildSummary, error], error) {
		return s.buildRunHistory(ctx, batchID, opts)
	})
}

func (s *LeaderboardService) buildRunHistory(ctx context.Context, batchID string, opts BuildOptions) (results.OperationResult[BuildSummary, error], error) {
	started := time.Now()
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	gameID, err := s.resolveGame(ctx, opts.GameID)
	if err != nil {
		if errors.Is(err, ErrGameNotFound) {
			return results.FailureResult[BuildSummary, error](err), nil
		}
		return results.OperationResult[BuildSummary, error]{}, err
	}

	summary := BuildSummary{BatchID: batchID, DryRun: opts.DryRun}

	if opts.Clear && !opts.DryRun {
		cleared, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[int64, error], error) {
			n, err := s.repo.DeleteHistory(ctx, db, gameID)
			if err != nil {
				return results.OperationResult[int64, error]{}, err
			}
			if err := s.repo.DeleteLeaderboardReplays(ctx, db, gameID); err != nil {
				return results.OperationResult[int64, error]{}, err
			}
			return results.SuccessResult[int64, error](n), nil
		})
		if err != nil {
			return results.OperationResult[BuildSummary, error]{}, fmt.Errorf("clear history: %w", err)
		}
		summary.Cleared = *cleared.Success
		s.logger.InfoContext(ctx, "Cleared run history",
			attr.String("scope", scopeOf(gameID)),
			attr.Int64("deleted", summary.Cleared),
			attr.ExtractCorrelationID(ctx),
		)
	}

	keys, err := s.repo.ListLeaderboardKeys(ctx, nil, gameID)
	if err != nil {
		return results.OperationResult[BuildSummary, error]{}, fmt.Errorf("list leaderboards: %w", err)
	}
	games, err := s.repo.GetGames(ctx, nil)
	if err != nil {
		return results.OperationResult[BuildSummary, error]{}, fmt.Errorf("load games: %w", err)
	}

	now := s.now().UTC()
	summary.Leaderboards = len(keys)
	summary.Reports = make([]LeaderboardReport, len(keys))

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	scheduled := 0
	for i, key := range keys {
		if ctx.Err() != nil {
			break
		}
		if opts.Throttle != nil {
			if err := opts.Throttle.Wait(ctx); err != nil {
				break
			}
		}
		scheduled++
		g.Go(func() error {
			report := s.processLeaderboard(ctx, key, games[key.GameID], opts, now)
			report.Index = i + 1
			report.Total = len(keys)
			summary.Reports[i] = report
			s.reportProgress(opts, report)
			return nil
		})
	}
	_ = g.Wait()
	summary.Reports = summary.Reports[:scheduled]

	for _, r := range summary.Reports {
		switch r.Outcome {
		case OutcomeUpdated:
			summary.Updated++
		case OutcomeUnchanged:
			summary.Unchanged++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Errors++
			continue
		}
		summary.Runs += r.Runs
		summary.EntriesCreated += r.EntriesCreated
		summary.EntriesClosed += r.EntriesClosed
		summary.PointsFixed += r.PointsFixed
	}
	summary.Duration = time.Since(started)

	if err := ctx.Err(); err != nil {
		return results.SuccessResult[BuildSummary, error](summary), fmt.Errorf("build interrupted after %d of %d leaderboards: %w", scheduled, len(keys), err)
	}
	return results.SuccessResult[BuildSummary, error](summary), nil
}

func (s *LeaderboardService) reportProgress(opts BuildOptions, report LeaderboardReport) {
	if opts.Progress == nil {
		return
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	opts.Progress(report)
}

// processLeaderboard replays one leaderboard in its own transaction. Errors
// are captured in the report.
func (s *LeaderboardService) processLeaderboard(
	ctx context.Context,
	key leaderboarddomain.LeaderboardKey,
	game *leaderboarddb.Game,
	opts BuildOptions,
	now time.Time,
) (report LeaderboardReport) {
	ctx, span := s.tracer.Start(ctx, "BuildRunHistory.leaderboard")
	defer span.End()

	report = LeaderboardReport{Key: key, Label: game.ToDomain().Label()}

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = OutcomeFailed
			report.Err = fmt.Errorf("panic: %v", r)
		}
		s.recordReport(ctx, report)
	}()

	var (
		res results.OperationResult[LeaderboardReport, error]
		err error
	)
	apply := func(ctx context.Context, db bun.IDB) (results.OperationResult[LeaderboardReport, error], error) {
		r, err := s.replayLeaderboard(ctx, db, key, game, opts, now)
		if err != nil {
			return results.OperationResult[LeaderboardReport, error]{}, err
		}
		return results.SuccessResult[LeaderboardReport, error](r), nil
	}
	if opts.DryRun {
		res, err = apply(ctx, nil)
	} else {
		res, err = runInTx(s, ctx, apply)
	}
	if err != nil {
		span.RecordError(err)
		report.Outcome = OutcomeFailed
		report.Err = err
		return report
	}

	label := report.Label
	report = *res.Success
	report.Label = label
	return report
}

func (s *LeaderboardService) recordReport(ctx context.Context, report LeaderboardReport) {
	switch report.Outcome {
	case OutcomeFailed:
		s.metrics.RecordLeaderboardProcessed(ctx, leaderboardmetrics.OutcomeFailed)
		s.logger.ErrorContext(ctx, "Leaderboard rebuild failed",
			attr.Leaderboard(report.Key),
			attr.ExtractCorrelationID(ctx),
			attr.Error(report.Err),
		)
		return
	case OutcomeSkipped:
		s.metrics.RecordLeaderboardProcessed(ctx, leaderboardmetrics.OutcomeSkipped)
	case OutcomeUnchanged:
		s.metrics.RecordLeaderboardProcessed(ctx, leaderboardmetrics.OutcomeUnchanged)
	default:
		s.metrics.RecordLeaderboardProcessed(ctx, leaderboardmetrics.OutcomeUpdated)
	}
	s.metrics.RecordHistoryAppended(ctx, report.EntriesCreated)
	s.metrics.RecordHistoryClosed(ctx, report.EntriesClosed)
	s.metrics.RecordRunsFixed(ctx, report.PointsFixed)

	s.logger.DebugContext(ctx, "Leaderboard processed",
		attr.Leaderboard(report.Key),
		attr.String("outcome", string(report.Outcome)),
		attr.Int("runs", report.Runs),
		attr.Int("entries_created", report.EntriesCreated),
		attr.Int("entries_closed", report.EntriesClosed),
		attr.Int("points_fixed", report.PointsFixed),
		attr.ExtractCorrelationID(ctx),
	)
}

// replayLeaderboard loads, replays and reconciles one leaderboard. Writes are
// skipped on a dry run.
func (s *LeaderboardService) replayLeaderboard(
	ctx context.Context,
	db bun.IDB,
	key leaderboarddomain.LeaderboardKey,
	game *leaderboarddb.Game,
	opts BuildOptions,
	now time.Time,
) (LeaderboardReport, error) {
	report := LeaderboardReport{Key: key}

	rows, err := s.repo.GetLeaderboardRuns(ctx, db, key)
	if err != nil {
		return report, err
	}
	loaded := make([]leaderboarddomain.Run, 0, len(rows))
	for i := range rows {
		loaded = append(loaded, rows[i].ToDomain())
	}
	var runs []leaderboarddomain.Run
	switch boards := leaderboarddomain.Partition(loaded); {
	case len(boards) == 0:
	case len(boards) == 1 && boards[0].Key == key:
		runs = boards[0].Runs
	default:
		return report, fmt.Errorf("%w: loading %s returned %d leaderboards", leaderboarddomain.ErrMixedLeaderboard, key, len(boards))
	}
	report.Runs = len(runs)

	in := leaderboarddomain.ReplayInput{
		Key:    key,
		Runs:   runs,
		Game:   game.ToDomain(),
		Config: s.scoring,
	}
	hash := leaderboarddomain.ComputeReplayHash(in)

	prev, err := s.repo.GetLeaderboardReplay(ctx, db, key.String())
	if err != nil {
		return report, err
	}
	if !opts.Force && prev != nil && prev.InputHash == hash {
		report.Outcome = OutcomeSkipped
		return report, nil
	}

	stored, err := s.repo.ListHistoryForLeaderboard(ctx, db, key)
	if err != nil {
		return report, err
	}
	existing := make([]leaderboarddomain.StoredEntry, 0, len(stored))
	for i := range stored {
		existing = append(existing, stored[i].ToDomain())
	}

	res, diff, err := leaderboarddomain.Plan(in, existing, now)
	if err != nil {
		if errors.Is(err, leaderboarddomain.ErrLedgerDiverged) {
			return report, fmt.Errorf("%w; rebuild with --clear --game %s", err, key.GameID)
		}
		return report, err
	}

	report.RunsSkipped = res.RunsSkipped
	report.EntriesComputed = len(res.Entries)
	report.EntriesCreated = len(diff.Append)
	report.EntriesClosed = len(diff.Close)
	report.PointsFixed = len(diff.Runs)
	report.WorldRecordRunID = res.WorldRecordRunID
	report.Outcome = OutcomeUpdated
	if diff.IsEmpty() {
		report.Outcome = OutcomeUnchanged
	}

	if opts.DryRun {
		return report, nil
	}

	// Close before append: a run may only have one open entry.
	if err := s.repo.BulkCloseHistory(ctx, db, diff.Close); err != nil {
		return report, err
	}
	appends := make([]leaderboarddb.RunHistory, 0, len(diff.Append))
	for _, e := range diff.Append {
		appends = append(appends, leaderboarddb.NewRunHistory(e))
	}
	if err := s.repo.AppendHistory(ctx, db, appends); err != nil {
		return report, err
	}
	if err := s.repo.UpdateRunPoints(ctx, db, diff.Runs); err != nil {
		return report, err
	}

	// The stored hash covers the points just written, so an untouched
	// leaderboard matches it next time.
	in.Runs = applyRunUpdates(runs, diff.Runs)
	applied := leaderboarddomain.ComputeReplayHash(in)
	if prev != nil && prev.InputHash == applied {
		return report, nil
	}
	err = s.repo.UpsertLeaderboardReplay(ctx, db, &leaderboarddb.LeaderboardReplay{
		LeaderboardKey: key.String(),
		GameID:         key.GameID,
		InputHash:      applied,
		Runs:           len(runs),
		OpenEntries:    len(res.Points),
		ProcessedAt:    now,
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

func applyRunUpdates(runs []leaderboarddomain.Run, updates []leaderboarddomain.RunUpdate) []leaderboarddomain.Run {
	if len(updates) == 0 {
		return runs
	}
	byID := make(map[string]leaderboarddomain.RunUpdate, len(updates))
	for _, u := range updates {
		byID[u.RunID] = u
	}
	out := make([]leaderboarddomain.Run, len(runs))
	copy(out, runs)
	for i := range out {
		if u, ok := byID[out[i].ID]; ok {
			out[i].Points = u.Points
			out[i].Bonus = u.Bonus
		}
	}
	return out
}
