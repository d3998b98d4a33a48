package leaderboardhandlers

import (
	"context"
	"io"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	"github.com/thpsrun/website-sub000/app/utils/results"
)

// ------------------------
// Fake Service
// ------------------------

type FakeService struct {
	trace []string

	BuildRunHistoryFunc   func(ctx context.Context, opts leaderboardservice.BuildOptions) (results.OperationResult[leaderboardservice.BuildSummary, error], error)
	BuildStreaksFunc      func(ctx context.Context, opts leaderboardservice.StreakOptions) (results.OperationResult[leaderboardservice.StreakSummary, error], error)
	GetRunHistoryFunc     func(ctx context.Context, runID string) (results.OperationResult[leaderboardservice.RunHistoryView, error], error)
	ListLeaderboardsFunc  func(ctx context.Context, gameID string) (results.OperationResult[[]leaderboardservice.LeaderboardSummary, error], error)
	RunHistoryChartFunc   func(ctx context.Context, runID string) ([]byte, error)
	ExportGameHistoryFunc func(ctx context.Context, gameID string, w io.Writer) error
}

func (f *FakeService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeService) BuildRunHistory(ctx context.Context, opts leaderboardservice.BuildOptions) (results.OperationResult[leaderboardservice.BuildSummary, error], error) {
	f.record("BuildRunHistory")
	if f.BuildRunHistoryFunc != nil {
		return f.BuildRunHistoryFunc(ctx, opts)
	}
	return results.SuccessResult[leaderboardservice.BuildSummary, error](leaderboardservice.BuildSummary{}), nil
}

func (f *FakeService) BuildStreaks(ctx context.Context, opts leaderboardservice.StreakOptions) (results.OperationResult[leaderboardservice.StreakSummary, error], error) {
	f.record("BuildStreaks")
	if f.BuildStreaksFunc != nil {
		return f.BuildStreaksFunc(ctx, opts)
	}
	return results.SuccessResult[leaderboardservice.StreakSummary, error](leaderboardservice.StreakSummary{}), nil
}

func (f *FakeService) GetRunHistory(ctx context.Context, runID string) (results.OperationResult[leaderboardservice.RunHistoryView, error], error) {
	f.record("GetRunHistory")
	if f.GetRunHistoryFunc != nil {
		return f.GetRunHistoryFunc(ctx, runID)
	}
	return results.SuccessResult[leaderboardservice.RunHistoryView, error](leaderboardservice.RunHistoryView{RunID: runID}), nil
}

func (f *FakeService) ListLeaderboards(ctx context.Context, gameID string) (results.OperationResult[[]leaderboardservice.LeaderboardSummary, error], error) {
	f.record("ListLeaderboards")
	if f.ListLeaderboardsFunc != nil {
		return f.ListLeaderboardsFunc(ctx, gameID)
	}
	return results.SuccessResult[[]leaderboardservice.LeaderboardSummary, error](nil), nil
}

func (f *FakeService) RunHistoryChart(ctx context.Context, runID string) ([]byte, error) {
	f.record("RunHistoryChart")
	if f.RunHistoryChartFunc != nil {
		return f.RunHistoryChartFunc(ctx, runID)
	}
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (f *FakeService) ExportGameHistory(ctx context.Context, gameID string, w io.Writer) error {
	f.record("ExportGameHistory")
	if f.ExportGameHistoryFunc != nil {
		return f.ExportGameHistoryFunc(ctx, gameID, w)
	}
	_, err := w.Write([]byte("PK"))
	return err
}
