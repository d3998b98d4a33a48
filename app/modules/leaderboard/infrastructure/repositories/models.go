package leaderboarddb

import (
	"time"

	"github.com/uptrace/bun"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// Game holds the per-game timing and scoring configuration.
type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID           string `bun:"id,pk"`
	Name         string `bun:"name,notnull"`
	Slug         string `bun:"slug,notnull,unique"`
	DefaultTime  string `bun:"defaulttime,notnull,default:'realtime'"`
	IDefaultTime string `bun:"idefaulttime,notnull,default:'realtime'"`
	IsCE         bool   `bun:"is_ce,notnull,default:false"`
	PointsMax    int    `bun:"pointsmax,notnull,default:1000"`
	IPointsMax   int    `bun:"ipointsmax,notnull,default:100"`
}

func (g *Game) ToDomain() *leaderboarddomain.Game {
	if g == nil {
		return nil
	}
	return &leaderboarddomain.Game{
		ID:           g.ID,
		Name:         g.Name,
		Slug:         g.Slug,
		DefaultTime:  leaderboarddomain.TimingMethod(g.DefaultTime),
		IDefaultTime: leaderboarddomain.TimingMethod(g.IDefaultTime),
		IsCE:         g.IsCE,
		PointsMax:    g.PointsMax,
		IPointsMax:   g.IPointsMax,
	}
}

// Player is a runner. Only the display name is used here.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

// Run is a submitted speedrun. The ingestion layer owns every column except
// points and bonus.
type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID          string     `bun:"id,pk"`
	GameID      string     `bun:"game_id,notnull"`
	CategoryID  string     `bun:"category_id,nullzero"`
	LevelID     string     `bun:"level_id,nullzero"`
	Subcategory string     `bun:"subcategory,notnull,default:''"`
	RunType     string     `bun:"runtype,notnull,default:'main'"`
	Place       int        `bun:"place,notnull,default:0"`
	TimeSecs    float64    `bun:"time_secs,notnull,default:0"`
	TimeNLSecs  float64    `bun:"timenl_secs,notnull,default:0"`
	TimeIGTSecs float64    `bun:"timeigt_secs,notnull,default:0"`
	Date        *time.Time `bun:"date"`
	VDate       *time.Time `bun:"v_date"`
	VidStatus   string     `bun:"vid_status,notnull,default:'new'"`
	Obsolete    bool       `bun:"obsolete,notnull,default:false"`
	Points      int        `bun:"points,notnull,default:0"`
	Bonus       int        `bun:"bonus,notnull,default:0"`

	// OpenPoints is the points of the run's open history entry when a query
	// joins it in.
	OpenPoints int      `bun:"open_points,scanonly"`
	PlayerIDs  []string `bun:"-"`
}

func (r *Run) ToDomain() leaderboarddomain.Run {
	return leaderboarddomain.Run{
		ID:          r.ID,
		GameID:      r.GameID,
		CategoryID:  r.CategoryID,
		LevelID:     r.LevelID,
		Subcategory: r.Subcategory,
		RunType:     leaderboarddomain.RunType(r.RunType),
		TimeSecs:    r.TimeSecs,
		TimeNLSecs:  r.TimeNLSecs,
		TimeIGTSecs: r.TimeIGTSecs,
		VDate:       r.VDate,
		Date:        r.Date,
		VidStatus:   r.VidStatus,
		PlayerIDs:   r.PlayerIDs,
		Points:      r.Points,
		Bonus:       r.Bonus,
	}
}

// RunPlayer links a run to a participant. Position keeps submission order.
type RunPlayer struct {
	bun.BaseModel `bun:"table:run_players,alias:rp"`

	RunID    string `bun:"run_id,pk"`
	PlayerID string `bun:"player_id,pk"`
	Position int    `bun:"position,notnull,default:0"`
}

// RunHistory is one interval of a run's point value. Rows are append-only:
// only end_date and end_reason are ever set after insert.
type RunHistory struct {
	bun.BaseModel `bun:"table:run_history,alias:rh"`

	ID        int64      `bun:"id,pk,autoincrement"`
	RunID     string     `bun:"run_id,notnull"`
	StartDate time.Time  `bun:"start_date,notnull"`
	EndDate   *time.Time `bun:"end_date"`
	EndReason string     `bun:"end_reason,nullzero"`
	Points    int        `bun:"points,notnull"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`

	Run *Run `bun:"rel:belongs-to,join:run_id=id"`
}

func (h *RunHistory) ToDomain() leaderboarddomain.StoredEntry {
	return leaderboarddomain.StoredEntry{
		ID: h.ID,
		HistoryEntry: leaderboarddomain.HistoryEntry{
			RunID:     h.RunID,
			StartDate: h.StartDate,
			EndDate:   h.EndDate,
			EndReason: leaderboarddomain.EndReason(h.EndReason),
			Points:    h.Points,
		},
	}
}

// NewRunHistory converts a computed entry into a row ready for insert.
func NewRunHistory(e leaderboarddomain.HistoryEntry) RunHistory {
	return RunHistory{
		RunID:     e.RunID,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
		EndReason: string(e.EndReason),
		Points:    e.Points,
	}
}

// LeaderboardReplay records the input hash of the last applied replay of a
// leaderboard so unchanged leaderboards can be skipped.
type LeaderboardReplay struct {
	bun.BaseModel `bun:"table:leaderboard_replays,alias:lr"`

	LeaderboardKey string    `bun:"leaderboard_key,pk"`
	GameID         string    `bun:"game_id,notnull"`
	InputHash      string    `bun:"input_hash,notnull"`
	Runs           int       `bun:"runs,notnull,default:0"`
	OpenEntries    int       `bun:"open_entries,notnull,default:0"`
	ProcessedAt    time.Time `bun:"processed_at,notnull"`
}
