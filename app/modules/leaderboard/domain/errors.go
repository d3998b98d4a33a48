package leaderboarddomain

import "errors"

var (
	// ErrUnsortedRuns is returned when replay input is not in chronological order.
	ErrUnsortedRuns = errors.New("runs are not in chronological order")

	// ErrMixedLeaderboard is returned when replay input contains a run from another leaderboard.
	ErrMixedLeaderboard = errors.New("run does not belong to leaderboard")

	// ErrIneligibleRun is returned when replay input contains an unverified or undated run.
	ErrIneligibleRun = errors.New("run is not eligible for replay")

	// ErrLedgerDiverged is returned when the stored history cannot be brought in
	// line with a replay without giving a run overlapping intervals.
	ErrLedgerDiverged = errors.New("stored history diverges from replay")
)
