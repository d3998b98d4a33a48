package leaderboarddomain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// RunType distinguishes full-game runs from individual-level runs.
type RunType string

const (
	RunTypeMain RunType = "main"
	RunTypeIL   RunType = "il"
)

// VidStatusVerified is the only verification state that takes part in a replay.
const VidStatusVerified = "verified"

// Game is the per-game configuration the replay needs.
type Game struct {
	ID           string
	Name         string
	Slug         string
	DefaultTime  TimingMethod
	IDefaultTime TimingMethod
	IsCE         bool
	PointsMax    int
	IPointsMax   int
}

// Label is the short upper-case tag used in operator output.
func (g *Game) Label() string {
	if g == nil {
		return "???"
	}
	if g.Slug != "" {
		return strings.ToUpper(g.Slug)
	}
	return g.ID
}

// Run is a single submitted speedrun. CategoryID and LevelID are empty when unset.
type Run struct {
	ID          string
	GameID      string
	CategoryID  string
	LevelID     string
	Subcategory string
	RunType     RunType
	TimeSecs    float64
	TimeNLSecs  float64
	TimeIGTSecs float64
	VDate       *time.Time
	Date        *time.Time
	VidStatus   string
	PlayerIDs   []string
	Points      int
	Bonus       int
}

// EffectiveDate is the verification date, falling back to the submission date.
func (r Run) EffectiveDate() (time.Time, bool) {
	if r.VDate != nil {
		return *r.VDate, true
	}
	if r.Date != nil {
		return *r.Date, true
	}
	return time.Time{}, false
}

// Eligible reports whether the run can take part in a replay at all.
func (r Run) Eligible() bool {
	if r.VidStatus != VidStatusVerified {
		return false
	}
	_, ok := r.EffectiveDate()
	return ok
}

// Key returns the leaderboard the run competes on.
func (r Run) Key() LeaderboardKey {
	return LeaderboardKey{
		GameID:      r.GameID,
		CategoryID:  r.CategoryID,
		LevelID:     r.LevelID,
		Subcategory: r.Subcategory,
		RunType:     r.RunType,
	}
}

// LeaderboardKey identifies one independent ranking.
type LeaderboardKey struct {
	GameID      string
	CategoryID  string
	LevelID     string
	Subcategory string
	RunType     RunType
}

// String renders the key as game/category/level/subcategory/runtype, using
// "-" for unset parts.
func (k LeaderboardKey) String() string {
	part := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		part(k.GameID), part(k.CategoryID), part(k.LevelID), part(k.Subcategory), part(string(k.RunType)))
}

// Compare orders keys field by field.
func (k LeaderboardKey) Compare(o LeaderboardKey) int {
	if c := cmp.Compare(k.GameID, o.GameID); c != 0 {
		return c
	}
	if c := cmp.Compare(k.CategoryID, o.CategoryID); c != 0 {
		return c
	}
	if c := cmp.Compare(k.LevelID, o.LevelID); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Subcategory, o.Subcategory); c != 0 {
		return c
	}
	return cmp.Compare(k.RunType, o.RunType)
}

// Leaderboard is a key together with its runs in replay order.
type Leaderboard struct {
	Key  LeaderboardKey
	Runs []Run
}

// CompareChronological orders runs by effective date, then by ID.
func CompareChronological(a, b Run) int {
	da, _ := a.EffectiveDate()
	db, _ := b.EffectiveDate()
	if c := da.Compare(db); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortChronological sorts runs in place into replay order.
func SortChronological(runs []Run) {
	slices.SortStableFunc(runs, CompareChronological)
}

// Partition groups eligible runs by leaderboard and sorts each group into
// replay order. Ineligible runs are dropped. Groups are returned in key order.
func Partition(runs []Run) []Leaderboard {
	groups := make(map[LeaderboardKey][]Run)
	for _, r := range runs {
		if !r.Eligible() {
			continue
		}
		k := r.Key()
		groups[k] = append(groups[k], r)
	}

	out := make([]Leaderboard, 0, len(groups))
	for k, rs := range groups {
		SortChronological(rs)
		out = append(out, Leaderboard{Key: k, Runs: rs})
	}

	slices.SortFunc(out, func(a, b Leaderboard) int {
		return a.Key.Compare(b.Key)
	})
	return out
}

// SortKeys sorts leaderboard keys in place.
func SortKeys(keys []LeaderboardKey) {
	slices.SortFunc(keys, LeaderboardKey.Compare)
}
