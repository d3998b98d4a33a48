package leaderboardhandlers

import "net/http"

// Handlers defines the HTTP read API for run history.
type Handlers interface {
	// HandleRunHistory returns a run and its ledger as JSON.
	HandleRunHistory(w http.ResponseWriter, r *http.Request)

	// HandleRunHistoryChart renders a run's points over time as a PNG.
	HandleRunHistoryChart(w http.ResponseWriter, r *http.Request)

	// HandleListLeaderboards summarizes every leaderboard, optionally for one game.
	HandleListLeaderboards(w http.ResponseWriter, r *http.Request)

	// HandleExportGame streams a game's ledger as an XLSX workbook.
	HandleExportGame(w http.ResponseWriter, r *http.Request)
}
