package leaderboardservice

import (
	"context"
	"time"

	"github.com/wcharczuk/go-chart/v2/drawing"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// BuildOptions controls a run-history rebuild.
type BuildOptions struct {
	// GameID limits the build to one game, matched by ID or slug.
	GameID string
	// DryRun computes everything and writes nothing.
	DryRun bool
	// Clear deletes existing history before rebuilding.
	Clear bool
	// Force replays leaderboards whose input hash is unchanged.
	Force bool
	// Concurrency is the number of leaderboards processed at once.
	Concurrency int
	// Progress, when set, receives each leaderboard report as it finishes.
	// Calls are serialized.
	Progress func(LeaderboardReport)
	// Throttle, when set, is waited on before each leaderboard starts.
	Throttle Limiter
}

// Outcome is how a leaderboard fared in a build.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// LeaderboardReport is the per-leaderboard result of a build.
type LeaderboardReport struct {
	Index int
	Total int

	Key   leaderboarddomain.LeaderboardKey
	Label string

	Outcome Outcome
	Err     error

	Runs             int
	RunsSkipped      int
	EntriesComputed  int
	EntriesCreated   int
	EntriesClosed    int
	PointsFixed      int
	WorldRecordRunID string
}

// BuildSummary aggregates a whole build.
type BuildSummary struct {
	BatchID string
	DryRun  bool
	Cleared int64

	Leaderboards int
	Updated      int
	Unchanged    int
	Skipped      int
	Errors       int

	Runs           int
	EntriesCreated int
	EntriesClosed  int
	PointsFixed    int

	Reports  []LeaderboardReport
	Duration time.Duration
}

// StreakOptions controls the anniversary job.
type StreakOptions struct {
	GameID string
	// Date is the day to check. The zero value means today.
	Date    time.Time
	DryRun  bool
	Verbose bool
	// All audits every record instead of only today's anniversaries.
	All bool
}

// StreakAward describes one run whose streak bonus changes.
type StreakAward struct {
	RunID       string
	Label       string
	Subcategory string
	Players     []string
	StreakStart time.Time
	MonthsHeld  int
	OldBonus    int
	NewBonus    int
	MaxPoints   int
	BonusPoints int
	NewPoints   int
}

// StreakSummary aggregates an anniversary run.
type StreakSummary struct {
	CheckDate time.Time
	DryRun    bool
	All       bool
	// Checked counts anniversaries found, or every record looked at with All.
	Checked int
	Awarded int
	Awards  []StreakAward
	// Unchanged lists runs that were checked but already up to date.
	Unchanged []StreakAward
}

// RunHistoryView is a run with its ledger, for display.
type RunHistoryView struct {
	RunID        string                         `json:"run_id"`
	GameID       string                         `json:"game_id"`
	Label        string                         `json:"label"`
	Subcategory  string                         `json:"subcategory"`
	Players      []string                       `json:"players"`
	Time         float64                        `json:"time_secs"`
	TimingMethod leaderboarddomain.TimingMethod `json:"timing_method"`
	Points       int                            `json:"points"`
	Bonus        int                            `json:"bonus"`
	Entries      []HistoryEntryView             `json:"entries"`
}

// HistoryEntryView is one ledger interval.
type HistoryEntryView struct {
	ID        int64      `json:"id"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	EndReason string     `json:"end_reason,omitempty"`
	Points    int        `json:"points"`
}

// LeaderboardSummary describes one leaderboard's current state.
type LeaderboardSummary struct {
	Key              leaderboarddomain.LeaderboardKey `json:"-"`
	LeaderboardKey   string                           `json:"leaderboard"`
	Label            string                           `json:"label"`
	Subcategory      string                           `json:"subcategory"`
	RunType          string                           `json:"runtype"`
	WorldRecordRunID string                           `json:"world_record_run_id,omitempty"`
	WorldRecordTime  string                           `json:"world_record_time,omitempty"`
	OpenEntries      int                              `json:"open_entries"`
	LastReplayedAt   *time.Time                       `json:"last_replayed_at,omitempty"`
}

// ChartPalette holds the colors used for rendered charts.
type ChartPalette struct {
	Background  drawing.Color
	PrimaryLine drawing.Color
	AccentLine  drawing.Color
	TextColor   drawing.Color
}

// DefaultChartPalette is the palette used by the HTTP and CLI renderers.
var DefaultChartPalette = ChartPalette{
	Background:  drawing.ColorFromHex("1e1f22"),
	PrimaryLine: drawing.ColorFromHex("4caf50"),
	AccentLine:  drawing.ColorFromHex("f5c542"),
	TextColor:   drawing.ColorFromHex("e0e0e0"),
}

// Limiter paces work. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}
