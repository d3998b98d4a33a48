package leaderboardservice

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

func TestGetRunHistory(t *testing.T) {
	repo := NewFakeLeaderboardRepo()
	seedThreeRuns(repo)
	repo.AddPlayer("A", "Alice")
	svc := newTestService(repo, day(10))
	mustBuild(t, svc, BuildOptions{})

	tests := []struct {
		name        string
		runID       string
		wantFailure bool
		verify      func(t *testing.T, view RunHistoryView)
	}{
		{
			name:  "run with two intervals",
			runID: "R2",
			verify: func(t *testing.T, view RunHistoryView) {
				assert.Equal(t, "THPS1", view.Label)
				assert.Equal(t, []string{"Alice"}, view.Players)
				assert.Equal(t, leaderboarddomain.TimingRealtime, view.TimingMethod)
				assert.InDelta(t, 35.0, view.Time, 0.001)
				require.Len(t, view.Entries, 2)
				assert.Equal(t, 1000, view.Entries[0].Points)
				assert.Equal(t, string(leaderboarddomain.EndReasonLostWR), view.Entries[0].EndReason)
				assert.Nil(t, view.Entries[1].EndDate)
				assert.Equal(t, view.Points, view.Entries[1].Points)
			},
		},
		{
			name:  "current record",
			runID: "R3",
			verify: func(t *testing.T, view RunHistoryView) {
				require.Len(t, view.Entries, 1)
				assert.Equal(t, 1000, view.Points)
			},
		},
		{name: "unknown run", runID: "missing", wantFailure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.GetRunHistory(context.Background(), tt.runID)
			require.NoError(t, err)
			if tt.wantFailure {
				require.True(t, res.IsFailure())
				assert.ErrorIs(t, *res.Failure, ErrRunNotFound)
				return
			}
			require.True(t, res.IsSuccess())
			tt.verify(t, *res.Success)
		})
	}
}

func TestListLeaderboards(t *testing.T) {
	repo := NewFakeLeaderboardRepo()
	seedThreeRuns(repo)
	repo.AddRuns(mkRun("H1", "100%", 95.5, day(1), "C"))
	svc := newTestService(repo, day(10))

	res, err := svc.ListLeaderboards(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, *res.Success, 2)
	for _, s := range *res.Success {
		assert.Zero(t, s.OpenEntries, "nothing built yet")
		assert.Nil(t, s.LastReplayedAt)
	}

	mustBuild(t, svc, BuildOptions{})

	res, err = svc.ListLeaderboards(context.Background(), "thps1")
	require.NoError(t, err)
	summaries := *res.Success
	require.Len(t, summaries, 2)

	assert.Equal(t, "100%", summaries[0].Subcategory)
	assert.Equal(t, "H1", summaries[0].WorldRecordRunID)
	assert.Equal(t, leaderboarddomain.FormatTime(95.5), summaries[0].WorldRecordTime)
	assert.Equal(t, 1, summaries[0].OpenEntries)

	assert.Equal(t, "Any%", summaries[1].Subcategory)
	assert.Equal(t, "R3", summaries[1].WorldRecordRunID)
	assert.Equal(t, 2, summaries[1].OpenEntries)
	require.NotNil(t, summaries[1].LastReplayedAt)
	assert.True(t, day(10).Equal(*summaries[1].LastReplayedAt))

	res, err = svc.ListLeaderboards(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, res.IsFailure())
}

func TestRunHistoryChart(t *testing.T) {
	repo := NewFakeLeaderboardRepo()
	seedThreeRuns(repo)
	svc := newTestService(repo, day(10))

	png, err := svc.RunHistoryChart(context.Background(), "R2")
	require.NoError(t, err, "no history yet still renders a placeholder")
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	mustBuild(t, svc, BuildOptions{})
	png, err = svc.RunHistoryChart(context.Background(), "R2")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = svc.RunHistoryChart(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestExportGameHistory(t *testing.T) {
	repo := NewFakeLeaderboardRepo()
	seedThreeRuns(repo)
	repo.AddRuns(mkRun("H1", "100%", 95.5, day(1), "C"))
	repo.AddPlayer("B", "Bob")
	svc := newTestService(repo, day(10))
	mustBuild(t, svc, BuildOptions{})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportGameHistory(context.Background(), "thps1", &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"100%", "Any%"}, f.GetSheetList())

	rows, err := f.GetRows("Any%")
	require.NoError(t, err)
	require.Len(t, rows, 5, "header plus four intervals")
	assert.Equal(t, "Run", rows[0][0])
	assert.Equal(t, "R1", rows[1][0])
	assert.Equal(t, string(leaderboarddomain.EndReasonObsoleted), rows[1][5])

	var bob bool
	for _, r := range rows[1:] {
		if r[0] == "R3" {
			bob = r[1] == "Bob"
		}
	}
	assert.True(t, bob, "player names are resolved")

	assert.ErrorIs(t, svc.ExportGameHistory(context.Background(), "nope", &buf), ErrGameNotFound)
}

func TestSheetName(t *testing.T) {
	used := map[string]int{}
	long := leaderboarddomain.LeaderboardKey{GameID: "g", Subcategory: "All Goals and Golds: Pro/Am [Glitchless]", RunType: leaderboarddomain.RunTypeMain}

	first := sheetName(long, used)
	second := sheetName(long, used)
	il := sheetName(leaderboarddomain.LeaderboardKey{GameID: "g", Subcategory: "Warehouse", RunType: leaderboarddomain.RunTypeIL}, used)

	assert.LessOrEqual(t, len([]rune(first)), maxSheetName)
	assert.LessOrEqual(t, len([]rune(second)), maxSheetName)
	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, ":")
	assert.NotContains(t, first, "/")
	assert.NotContains(t, first, "[")
	assert.Equal(t, "IL Warehouse", il)
}
