package leaderboarddb

import (
	"context"

	"github.com/uptrace/bun"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// Repository defines the contract for run and run-history persistence.
// All methods are context-aware for cancellation and timeout propagation.
// A nil db runs the query on the repository's default connection.
//
// Error semantics:
//   - ErrNotFound: Record does not exist
//   - ErrNoRowsAffected: UPDATE/DELETE matched no rows
//   - ErrStaleClose: a history close raced with another writer
//   - Other errors: Infrastructure failures (DB connection, query errors)
type Repository interface {
	// --- Games ---

	// GetGames returns every game keyed by ID.
	GetGames(ctx context.Context, db bun.IDB) (map[string]*Game, error)

	// FindGame looks a game up by ID or by slug, case-insensitively.
	FindGame(ctx context.Context, db bun.IDB, ref string) (*Game, error)

	UpsertGame(ctx context.Context, db bun.IDB, game *Game) error

	// --- Runs ---

	// ListLeaderboardKeys returns every leaderboard that has at least one
	// verified run, optionally limited to one game.
	ListLeaderboardKeys(ctx context.Context, db bun.IDB, gameID string) ([]leaderboarddomain.LeaderboardKey, error)

	// GetLeaderboardRuns returns the verified runs of a leaderboard with their
	// players loaded, oldest first.
	GetLeaderboardRuns(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]Run, error)

	GetRun(ctx context.Context, db bun.IDB, runID string) (*Run, error)

	// UpsertRuns writes runs and replaces their player lists.
	UpsertRuns(ctx context.Context, db bun.IDB, runs []Run) error

	UpsertPlayers(ctx context.Context, db bun.IDB, players []Player) error

	// UpdateRunPoints sets points and bonus for many runs in one statement.
	UpdateRunPoints(ctx context.Context, db bun.IDB, updates []leaderboarddomain.RunUpdate) error

	// ListCurrentRecords returns verified runs with an open history entry and
	// a bonus below maxBonus, on games that are not CE. OpenPoints is set.
	ListCurrentRecords(ctx context.Context, db bun.IDB, gameID string, maxBonus int) ([]Run, error)

	// ListRecordHoldings returns the history entries of a leaderboard worth at
	// least minPoints, newest first, with the holders' players.
	ListRecordHoldings(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey, minPoints int) ([]leaderboarddomain.RecordHolding, error)

	GetPlayerNames(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]string, error)

	// --- Run history ---

	ListHistoryForLeaderboard(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]RunHistory, error)

	ListHistoryForRun(ctx context.Context, db bun.IDB, runID string) ([]RunHistory, error)

	// AppendHistory inserts new entries in batches.
	AppendHistory(ctx context.Context, db bun.IDB, entries []RunHistory) error

	// BulkCloseHistory sets end_date and end_reason on open entries. Entries
	// that are already closed are left alone and reported as ErrStaleClose.
	BulkCloseHistory(ctx context.Context, db bun.IDB, closes []leaderboarddomain.EntryClose) error

	// DeleteHistory removes history for one game, or all history when gameID
	// is empty. It returns the number of deleted rows.
	DeleteHistory(ctx context.Context, db bun.IDB, gameID string) (int64, error)

	// --- Replay records ---

	// GetLeaderboardReplay returns nil, nil when the leaderboard was never replayed.
	GetLeaderboardReplay(ctx context.Context, db bun.IDB, key string) (*LeaderboardReplay, error)

	UpsertLeaderboardReplay(ctx context.Context, db bun.IDB, replay *LeaderboardReplay) error

	ListLeaderboardReplays(ctx context.Context, db bun.IDB, gameID string) ([]LeaderboardReplay, error)

	DeleteLeaderboardReplays(ctx context.Context, db bun.IDB, gameID string) error
}
