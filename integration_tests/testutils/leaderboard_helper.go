package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
)

// Day returns noon UTC on the given day of January 2024.
func Day(d int) time.Time {
	return time.Date(2024, time.January, d, 12, 0, 0, 0, time.UTC)
}

// InsertGame stores a realtime game with the default point ceilings.
func InsertGame(t *testing.T, ctx context.Context, repo leaderboarddb.Repository, db bun.IDB, id, slug string) *leaderboarddb.Game {
	t.Helper()
	g := &leaderboarddb.Game{
		ID:           id,
		Name:         gofakeit.AppName(),
		Slug:         slug,
		DefaultTime:  "realtime",
		IDefaultTime: "realtime",
		PointsMax:    1000,
		IPointsMax:   100,
	}
	require.NoError(t, repo.UpsertGame(ctx, db, g))
	return g
}

// InsertPlayers stores players with random display names.
func InsertPlayers(t *testing.T, ctx context.Context, repo leaderboarddb.Repository, db bun.IDB, ids ...string) {
	t.Helper()
	players := make([]leaderboarddb.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, leaderboarddb.Player{ID: id, Name: gofakeit.Username()})
	}
	require.NoError(t, repo.UpsertPlayers(ctx, db, players))
}

// NewRun builds a verified main-category run in the "any" category.
func NewRun(gameID, id, subcategory string, secs float64, verified time.Time, players ...string) leaderboarddb.Run {
	v := verified
	return leaderboarddb.Run{
		ID:          id,
		GameID:      gameID,
		CategoryID:  "any",
		Subcategory: subcategory,
		RunType:     "main",
		TimeSecs:    secs,
		VDate:       &v,
		VidStatus:   "verified",
		PlayerIDs:   players,
	}
}

// InsertRuns stores runs with their player lists.
func InsertRuns(t *testing.T, ctx context.Context, repo leaderboarddb.Repository, db bun.IDB, runs ...leaderboarddb.Run) {
	t.Helper()
	require.NoError(t, repo.UpsertRuns(ctx, db, runs))
}
