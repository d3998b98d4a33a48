package leaderboardservice

import (
	"context"
	"errors"
	"fmt"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
	"github.com/thpsrun/website-sub000/app/utils/results"
)

// GetRunHistory returns a run together with every ledger interval it has.
func (s *LeaderboardService) GetRunHistory(ctx context.Context, runID string) (results.OperationResult[RunHistoryView, error], error) {
	return withTelemetry(s, ctx, "GetRunHistory", runID, func(ctx context.Context) (results.OperationResult[RunHistoryView, error], error) {
		view, err := s.loadRunHistory(ctx, runID)
		if err != nil {
			if errors.Is(err, ErrRunNotFound) {
				return results.FailureResult[RunHistoryView, error](err), nil
			}
			return results.OperationResult[RunHistoryView, error]{}, err
		}
		return results.SuccessResult[RunHistoryView, error](view), nil
	})
}

func (s *LeaderboardService) loadRunHistory(ctx context.Context, runID string) (RunHistoryView, error) {
	row, err := s.repo.GetRun(ctx, nil, runID)
	if err != nil {
		if errors.Is(err, leaderboarddb.ErrNotFound) {
			return RunHistoryView{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return RunHistoryView{}, err
	}

	var game *leaderboarddomain.Game
	g, err := s.repo.FindGame(ctx, nil, row.GameID)
	switch {
	case err == nil:
		game = g.ToDomain()
	case !errors.Is(err, leaderboarddb.ErrNotFound):
		return RunHistoryView{}, err
	}

	entries, err := s.repo.ListHistoryForRun(ctx, nil, runID)
	if err != nil {
		return RunHistoryView{}, err
	}
	names, err := s.repo.GetPlayerNames(ctx, nil, row.PlayerIDs)
	if err != nil {
		return RunHistoryView{}, err
	}

	run := row.ToDomain()
	method := leaderboarddomain.TimeColumn(game, run.RunType)
	view := RunHistoryView{
		RunID:        run.ID,
		GameID:       run.GameID,
		Label:        game.Label(),
		Subcategory:  run.Subcategory,
		Players:      displayNames(run.PlayerIDs, names),
		Time:         run.TimeFor(method),
		TimingMethod: method,
		Points:       run.Points,
		Bonus:        run.Bonus,
		Entries:      make([]HistoryEntryView, 0, len(entries)),
	}
	for _, e := range entries {
		view.Entries = append(view.Entries, HistoryEntryView{
			ID:        e.ID,
			StartDate: e.StartDate,
			EndDate:   e.EndDate,
			EndReason: e.EndReason,
			Points:    e.Points,
		})
	}
	return view, nil
}

// ListLeaderboards summarizes each leaderboard's current record and ledger.
func (s *LeaderboardService) ListLeaderboards(ctx context.Context, gameRef string) (results.OperationResult[[]LeaderboardSummary, error], error) {
	return withTelemetry(s, ctx, "ListLeaderboards", scopeOf(gameRef), func(ctx context.Context) (results.OperationResult[[]LeaderboardSummary, error], error) {
		gameID, err := s.resolveGame(ctx, gameRef)
		if err != nil {
			if errors.Is(err, ErrGameNotFound) {
				return results.FailureResult[[]LeaderboardSummary, error](err), nil
			}
			return results.OperationResult[[]LeaderboardSummary, error]{}, err
		}

		summaries, err := s.listLeaderboards(ctx, gameID)
		if err != nil {
			return results.OperationResult[[]LeaderboardSummary, error]{}, err
		}
		return results.SuccessResult[[]LeaderboardSummary, error](summaries), nil
	})
}

func (s *LeaderboardService) listLeaderboards(ctx context.Context, gameID string) ([]LeaderboardSummary, error) {
	keys, err := s.repo.ListLeaderboardKeys(ctx, nil, gameID)
	if err != nil {
		return nil, fmt.Errorf("list leaderboards: %w", err)
	}
	games, err := s.repo.GetGames(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	replays, err := s.repo.ListLeaderboardReplays(ctx, nil, gameID)
	if err != nil {
		return nil, fmt.Errorf("list replays: %w", err)
	}
	replayed := make(map[string]leaderboarddb.LeaderboardReplay, len(replays))
	for _, r := range replays {
		replayed[r.LeaderboardKey] = r
	}

	out := make([]LeaderboardSummary, 0, len(keys))
	for _, key := range keys {
		game := games[key.GameID].ToDomain()
		summary := LeaderboardSummary{
			Key:            key,
			LeaderboardKey: key.String(),
			Label:          game.Label(),
			Subcategory:    key.Subcategory,
			RunType:        string(key.RunType),
		}
		if r, ok := replayed[key.String()]; ok {
			at := r.ProcessedAt
			summary.LastReplayedAt = &at
		}

		history, err := s.repo.ListHistoryForLeaderboard(ctx, nil, key)
		if err != nil {
			return nil, fmt.Errorf("load history for %s: %w", key, err)
		}
		best := -1
		for i, h := range history {
			if h.EndDate != nil {
				continue
			}
			summary.OpenEntries++
			if best < 0 || h.Points > history[best].Points {
				best = i
			}
		}
		if best >= 0 {
			summary.WorldRecordRunID = history[best].RunID
			run, err := s.repo.GetRun(ctx, nil, summary.WorldRecordRunID)
			if err != nil {
				return nil, fmt.Errorf("load record run for %s: %w", key, err)
			}
			method := leaderboarddomain.TimeColumn(game, key.RunType)
			summary.WorldRecordTime = leaderboarddomain.FormatTime(run.ToDomain().TimeFor(method))
		}
		out = append(out, summary)
	}
	return out, nil
}
