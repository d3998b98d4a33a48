package leaderboardservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
)

// maxSheetName is Excel's limit on worksheet names.
const maxSheetName = 31

var exportHeader = []any{"Run", "Players", "Time", "Start", "End", "End reason", "Points"}

// ExportGameHistory writes one worksheet per leaderboard of a game with the
// full ledger of every run on it.
func (s *LeaderboardService) ExportGameHistory(ctx context.Context, gameRef string, w io.Writer) error {
	ctx, span := s.tracer.Start(ctx, "ExportGameHistory")
	defer span.End()

	game, err := s.repo.FindGame(ctx, nil, gameRef)
	if err != nil {
		if errors.Is(err, leaderboarddb.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrGameNotFound, gameRef)
		}
		return err
	}
	keys, err := s.repo.ListLeaderboardKeys(ctx, nil, game.ID)
	if err != nil {
		return fmt.Errorf("list leaderboards: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	used := map[string]int{}
	for i, key := range keys {
		name := sheetName(key, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := s.writeLeaderboardSheet(ctx, f, name, game.ToDomain(), key); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.InfoContext(ctx, "Exported run history",
		"game", game.ID,
		"leaderboards", len(keys),
	)
	return nil
}

func (s *LeaderboardService) writeLeaderboardSheet(ctx context.Context, f *excelize.File, sheet string, game *leaderboarddomain.Game, key leaderboarddomain.LeaderboardKey) error {
	runs, err := s.repo.GetLeaderboardRuns(ctx, nil, key)
	if err != nil {
		return err
	}
	history, err := s.repo.ListHistoryForLeaderboard(ctx, nil, key)
	if err != nil {
		return err
	}

	var playerIDs []string
	byID := make(map[string]leaderboarddomain.Run, len(runs))
	for i := range runs {
		r := runs[i].ToDomain()
		byID[r.ID] = r
		playerIDs = append(playerIDs, r.PlayerIDs...)
	}
	names, err := s.repo.GetPlayerNames(ctx, nil, playerIDs)
	if err != nil {
		return err
	}
	method := leaderboarddomain.TimeColumn(game, key.RunType)

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return err
	}
	for i, h := range history {
		run := byID[h.RunID]
		end := ""
		if h.EndDate != nil {
			end = h.EndDate.UTC().Format("2006-01-02 15:04:05")
		}
		row := []any{
			h.RunID,
			strings.Join(displayNames(run.PlayerIDs, names), ", "),
			leaderboarddomain.FormatTime(run.TimeFor(method)),
			h.StartDate.UTC().Format("2006-01-02 15:04:05"),
			end,
			h.EndReason,
			h.Points,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// sheetName derives a unique worksheet name from a leaderboard key.
func sheetName(key leaderboarddomain.LeaderboardKey, used map[string]int) string {
	base := key.Subcategory
	if base == "" {
		base = key.String()
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, base)
	if key.RunType == leaderboarddomain.RunTypeIL {
		base = "IL " + base
	}
	if runes := []rune(base); len(runes) > maxSheetName {
		base = string(runes[:maxSheetName])
	}

	used[base]++
	if used[base] == 1 {
		return base
	}
	suffix := fmt.Sprintf(" (%d)", used[base])
	runes := []rune(base)
	if len(runes)+len(suffix) > maxSheetName {
		runes = runes[:maxSheetName-len(suffix)]
	}
	return string(runes) + suffix
}
