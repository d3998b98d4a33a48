package leaderboardservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
	"github.com/thpsrun/website-sub000/app/observability/attr"
	"github.com/thpsrun/website-sub000/app/utils/results"
)

// BuildStreaks checks current world records against the check date and
// awards streak months on their monthly anniversaries.
func (s *LeaderboardService) BuildStreaks(ctx context.Context, opts StreakOptions) (results.OperationResult[StreakSummary, error], error) {
	return withTelemetry(s, ctx, "BuildStreaks", scopeOf(opts.GameID), func(ctx context.Context) (results.OperationResult[StreakSummary, error], error) {
		return s.buildStreaks(ctx, opts)
	})
}

func (s *LeaderboardService) buildStreaks(ctx context.Context, opts StreakOptions) (results.OperationResult[StreakSummary, error], error) {
	check := opts.Date
	if check.IsZero() {
		check = s.now()
	}
	check = leaderboarddomain.DateOf(check)
	cfg := s.scoring.Streak

	gameID, err := s.resolveGame(ctx, opts.GameID)
	if err != nil {
		if errors.Is(err, ErrGameNotFound) {
			return results.FailureResult[StreakSummary, error](err), nil
		}
		return results.OperationResult[StreakSummary, error]{}, err
	}

	games, err := s.repo.GetGames(ctx, nil)
	if err != nil {
		return results.OperationResult[StreakSummary, error]{}, fmt.Errorf("load games: %w", err)
	}
	records, err := s.repo.ListCurrentRecords(ctx, nil, gameID, cfg.MaxMonths)
	if err != nil {
		return results.OperationResult[StreakSummary, error]{}, fmt.Errorf("list current records: %w", err)
	}

	summary := StreakSummary{CheckDate: check, DryRun: opts.DryRun, All: opts.All}
	cutoff := leaderboarddomain.AddMonths(check, -cfg.MaxMonths)
	holdingsByKey := map[leaderboarddomain.LeaderboardKey][]leaderboarddomain.RecordHolding{}
	var updates []leaderboarddomain.RunUpdate

	for i := range records {
		row := &records[i]
		game := games[row.GameID].ToDomain()
		if game == nil || game.IsCE {
			continue
		}
		run := row.ToDomain()
		key := run.Key()
		maxPoints := leaderboarddomain.MaxPointsFor(game, key.RunType, s.scoring.Points)
		if row.OpenPoints < maxPoints {
			continue
		}

		holdings, ok := holdingsByKey[key]
		if !ok {
			holdings, err = s.repo.ListRecordHoldings(ctx, nil, key, maxPoints)
			if err != nil {
				return results.OperationResult[StreakSummary, error]{}, fmt.Errorf("trace streak for %s: %w", run.ID, err)
			}
			holdingsByKey[key] = holdings
		}

		start, ok := leaderboarddomain.TraceStreakStart(run.PlayerIDs, holdings, cutoff)
		if !ok {
			continue
		}

		decision := leaderboarddomain.EvaluateStreak(start, check, run.Bonus, opts.All, cfg)
		if !decision.Checked {
			continue
		}
		summary.Checked++

		award := StreakAward{
			RunID:       run.ID,
			Label:       game.Label(),
			Subcategory: run.Subcategory,
			Players:     run.PlayerIDs,
			StreakStart: start,
			MonthsHeld:  decision.MonthsHeld,
			OldBonus:    run.Bonus,
			NewBonus:    run.Bonus,
			MaxPoints:   maxPoints,
		}
		if !decision.Award {
			summary.Unchanged = append(summary.Unchanged, award)
			continue
		}

		award.NewBonus = decision.NewBonus
		award.BonusPoints = leaderboarddomain.CalculateBonus(key.RunType, decision.NewBonus, game.IsCE, cfg)
		award.NewPoints = maxPoints + award.BonusPoints
		summary.Awards = append(summary.Awards, award)
		updates = append(updates, leaderboarddomain.RunUpdate{
			RunID:  run.ID,
			Points: award.NewPoints,
			Bonus:  award.NewBonus,
		})
	}
	summary.Awarded = len(summary.Awards)

	if err := s.resolvePlayerNames(ctx, &summary); err != nil {
		return results.OperationResult[StreakSummary, error]{}, err
	}

	if len(updates) > 0 && !opts.DryRun {
		_, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[int, error], error) {
			if err := s.repo.UpdateRunPoints(ctx, db, updates); err != nil {
				return results.OperationResult[int, error]{}, err
			}
			return results.SuccessResult[int, error](len(updates)), nil
		})
		if err != nil {
			return results.OperationResult[StreakSummary, error]{}, fmt.Errorf("save streaks: %w", err)
		}
		s.metrics.RecordStreaksAwarded(ctx, len(updates))
	}

	for _, a := range summary.Awards {
		s.logger.InfoContext(ctx, "Streak bonus awarded",
			attr.String("run_id", a.RunID),
			attr.String("game", a.Label),
			attr.Time("streak_start", a.StreakStart),
			attr.Int("months", a.NewBonus),
			attr.Int("points", a.NewPoints),
			attr.Bool("dry_run", opts.DryRun),
		)
	}

	return results.SuccessResult[StreakSummary, error](summary), nil
}

// resolvePlayerNames swaps player IDs for display names in place.
func (s *LeaderboardService) resolvePlayerNames(ctx context.Context, summary *StreakSummary) error {
	var ids []string
	for _, list := range [][]StreakAward{summary.Awards, summary.Unchanged} {
		for _, a := range list {
			ids = append(ids, a.Players...)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	names, err := s.repo.GetPlayerNames(ctx, nil, ids)
	if err != nil {
		return fmt.Errorf("load player names: %w", err)
	}
	for _, list := range [][]StreakAward{summary.Awards, summary.Unchanged} {
		for i := range list {
			list[i].Players = displayNames(list[i].Players, names)
		}
	}
	return nil
}

func displayNames(ids []string, names map[string]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok && name != "" {
			out = append(out, name)
		} else {
			out = append(out, id)
		}
	}
	return out
}
