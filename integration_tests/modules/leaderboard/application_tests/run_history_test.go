package leaderboardintegrationtests

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
	"github.com/thpsrun/website-sub000/integration_tests/testutils"
)

var historyCmp = cmp.Options{
	cmpopts.IgnoreFields(leaderboarddb.RunHistory{}, "CreatedAt", "Run"),
	cmpopts.EquateApproxTime(time.Microsecond),
}

func TestBuildRunHistory_Handoff(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{})
	assert.Equal(t, 1, summary.Leaderboards)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, 4, summary.EntriesCreated)

	rows := allHistory(t, deps)
	require.Len(t, rows, 4)

	open := map[string]leaderboarddb.RunHistory{}
	closed := map[string]leaderboarddb.RunHistory{}
	for _, h := range rows {
		if h.EndDate == nil {
			open[h.RunID] = h
		} else {
			closed[h.RunID] = h
		}
	}
	require.Len(t, open, 2)
	assert.Equal(t, 1000, open["R3"].Points)
	assert.Equal(t, leaderboarddomain.PointsFormula(30, 35, 1000, leaderboarddomain.IsShort(30)), open["R2"].Points)
	assert.Equal(t, string(leaderboarddomain.EndReasonObsoleted), closed["R1"].EndReason)
	assert.Equal(t, string(leaderboarddomain.EndReasonLostWR), closed["R2"].EndReason)
	assert.True(t, testutils.Day(3).Equal(*closed["R2"].EndDate))

	r3, err := deps.Repo.GetRun(deps.Ctx, nil, "R3")
	require.NoError(t, err)
	assert.Equal(t, 1000, r3.Points)
	r1, err := deps.Repo.GetRun(deps.Ctx, nil, "R1")
	require.NoError(t, err)
	assert.Equal(t, 0, r1.Points)
}

func TestBuildRunHistory_RerunIsIdempotent(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)

	mustBuild(t, deps, leaderboardservice.BuildOptions{})
	before := allHistory(t, deps)

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{})
	assert.Equal(t, 1, summary.Skipped)

	forced := mustBuild(t, deps, leaderboardservice.BuildOptions{Force: true})
	assert.Equal(t, 1, forced.Unchanged)
	assert.Zero(t, forced.EntriesCreated)
	assert.Zero(t, forced.EntriesClosed)

	if diff := cmp.Diff(before, allHistory(t, deps), historyCmp); diff != "" {
		t.Errorf("history changed on rebuild (-before +after):\n%s", diff)
	}
}

func TestBuildRunHistory_IncrementalRecord(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)
	mustBuild(t, deps, leaderboardservice.BuildOptions{})

	testutils.InsertRuns(t, deps.Ctx, deps.Repo, deps.BunDB,
		testutils.NewRun("g1", "R4", "Any%", 29, testutils.Day(5), "B"))

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{})
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, summary.EntriesCreated)
	assert.Equal(t, 2, summary.EntriesClosed)

	openCount, err := deps.BunDB.NewSelect().Model((*leaderboarddb.RunHistory)(nil)).Where("end_date IS NULL").Count(deps.Ctx)
	require.NoError(t, err)
	// R4 replaces R3 and R2 reopens at its lower value.
	assert.Equal(t, 2, openCount)
}

func TestBuildRunHistory_BackfilledRunNeedsClear(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)
	mustBuild(t, deps, leaderboardservice.BuildOptions{})
	before := allHistory(t, deps)

	testutils.InsertPlayers(t, deps.Ctx, deps.Repo, deps.BunDB, "C")
	testutils.InsertRuns(t, deps.Ctx, deps.Repo, deps.BunDB,
		testutils.NewRun("g1", "R5", "Any%", 37, testutils.Day(1).Add(12*time.Hour), "C"))

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{})
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Reports, 1)
	require.ErrorIs(t, summary.Reports[0].Err, leaderboarddomain.ErrLedgerDiverged)
	if diff := cmp.Diff(before, allHistory(t, deps), historyCmp); diff != "" {
		t.Errorf("diverged leaderboard was written (-before +after):\n%s", diff)
	}

	rebuilt := mustBuild(t, deps, leaderboardservice.BuildOptions{Clear: true, GameID: "thps1"})
	assert.Zero(t, rebuilt.Errors)
	openCount, err := deps.BunDB.NewSelect().Model((*leaderboarddb.RunHistory)(nil)).Where("end_date IS NULL").Count(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, openCount)
}

func TestBuildRunHistory_UndatedLeaderboardIsIgnored(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)
	undated := testutils.NewRun("g1", "U1", "100%", 90, testutils.Day(1), "A")
	undated.VDate = nil
	testutils.InsertRuns(t, deps.Ctx, deps.Repo, deps.BunDB, undated)

	keys, err := deps.Repo.ListLeaderboardKeys(deps.Ctx, nil, "g1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "Any%", keys[0].Subcategory)

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{})
	assert.Equal(t, 1, summary.Leaderboards)
}

func TestBuildRunHistory_DryRunWritesNothing(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)

	dry := mustBuild(t, deps, leaderboardservice.BuildOptions{DryRun: true})
	assert.True(t, dry.DryRun)
	assert.Empty(t, allHistory(t, deps))

	applied := mustBuild(t, deps, leaderboardservice.BuildOptions{})
	assert.Equal(t, applied.EntriesCreated, dry.EntriesCreated)
	assert.Equal(t, applied.PointsFixed, dry.PointsFixed)
}

func TestBuildRunHistory_ClearRebuilds(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)
	mustBuild(t, deps, leaderboardservice.BuildOptions{})
	before := allHistory(t, deps)

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{Clear: true, GameID: "thps1"})
	assert.Equal(t, int64(4), summary.Cleared)
	assert.Equal(t, 4, summary.EntriesCreated)

	if diff := cmp.Diff(before, allHistory(t, deps), historyCmp, cmpopts.IgnoreFields(leaderboarddb.RunHistory{}, "ID")); diff != "" {
		t.Errorf("cleared rebuild differs (-before +after):\n%s", diff)
	}
}

func TestBuildRunHistory_ConcurrentGames(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	testutils.InsertPlayers(t, deps.Ctx, deps.Repo, deps.BunDB, "A", "B")

	for _, g := range []struct{ id, slug string }{{"g1", "thps1"}, {"g2", "thps2"}, {"g3", "thps3"}} {
		testutils.InsertGame(t, deps.Ctx, deps.Repo, deps.BunDB, g.id, g.slug)
		for _, sub := range []string{"Any%", "100%", "Glitchless"} {
			testutils.InsertRuns(t, deps.Ctx, deps.Repo, deps.BunDB,
				testutils.NewRun(g.id, g.id+sub+"-1", sub, 50, testutils.Day(1), "A"),
				testutils.NewRun(g.id, g.id+sub+"-2", sub, 45, testutils.Day(2), "B"),
			)
		}
	}

	summary := mustBuild(t, deps, leaderboardservice.BuildOptions{Concurrency: 4})
	assert.Equal(t, 9, summary.Leaderboards)
	assert.Equal(t, 9, summary.Updated)
	assert.Zero(t, summary.Errors)
	for i, r := range summary.Reports {
		assert.Equal(t, i+1, r.Index)
	}

	openCount, err := deps.BunDB.NewSelect().Model((*leaderboarddb.RunHistory)(nil)).Where("end_date IS NULL").Count(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, openCount)
}

func TestRepository_OneOpenEntryPerRun(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)

	first := leaderboarddb.RunHistory{RunID: "R1", StartDate: testutils.Day(1), Points: 1000}
	require.NoError(t, deps.Repo.AppendHistory(deps.Ctx, nil, []leaderboarddb.RunHistory{first}))

	second := leaderboarddb.RunHistory{RunID: "R1", StartDate: testutils.Day(2), Points: 900}
	err := deps.Repo.AppendHistory(deps.Ctx, nil, []leaderboarddb.RunHistory{second})
	require.Error(t, err, "partial unique index must reject a second open entry")
}

func TestRepository_BulkCloseIsNotRepeatable(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)

	rows := []leaderboarddb.RunHistory{{RunID: "R1", StartDate: testutils.Day(1), Points: 1000}}
	require.NoError(t, deps.Repo.AppendHistory(deps.Ctx, nil, rows))
	stored, err := deps.Repo.ListHistoryForRun(deps.Ctx, nil, "R1")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	closeIt := []leaderboarddomain.EntryClose{{
		ID:        stored[0].ID,
		RunID:     "R1",
		EndDate:   testutils.Day(2),
		EndReason: leaderboarddomain.EndReasonObsoleted,
	}}
	require.NoError(t, deps.Repo.BulkCloseHistory(deps.Ctx, nil, closeIt))
	require.ErrorIs(t, deps.Repo.BulkCloseHistory(deps.Ctx, nil, closeIt), leaderboarddb.ErrStaleClose)
}

func TestGetRunHistoryAndExport(t *testing.T) {
	deps := SetupTestLeaderboardService(t)
	seedHandoff(t, deps)
	mustBuild(t, deps, leaderboardservice.BuildOptions{})

	res, err := deps.Service.GetRunHistory(deps.Ctx, "R2")
	require.NoError(t, err)
	require.NotNil(t, res.Success)
	view := *res.Success
	assert.Equal(t, "THPS1", view.Label)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, 1000, view.Entries[0].Points)
	assert.Equal(t, "lost_wr", view.Entries[0].EndReason)
	assert.Nil(t, view.Entries[1].EndDate)

	missing, err := deps.Service.GetRunHistory(deps.Ctx, "nope")
	require.NoError(t, err)
	require.NotNil(t, missing.Failure)

	var buf bytes.Buffer
	require.NoError(t, deps.Service.ExportGameHistory(deps.Ctx, "thps1", &buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Any%"}, f.GetSheetList())
	sheetRows, err := f.GetRows("Any%")
	require.NoError(t, err)
	assert.Len(t, sheetRows, 5)
}
