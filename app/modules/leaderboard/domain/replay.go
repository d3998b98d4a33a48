package leaderboarddomain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// EndReason explains why a history interval stopped applying.
type EndReason string

const (
	EndReasonNewWR         EndReason = "new_wr"
	EndReasonLostWR        EndReason = "lost_wr"
	EndReasonGainedWR      EndReason = "gained_wr"
	EndReasonObsoleted     EndReason = "obsoleted"
	EndReasonRecalculation EndReason = "recalculation"
)

// Valid reports whether r is a stored end reason.
func (r EndReason) Valid() bool {
	switch r {
	case EndReasonNewWR, EndReasonLostWR, EndReasonGainedWR, EndReasonObsoleted, EndReasonRecalculation:
		return true
	}
	return false
}

// HistoryEntry is one interval of a run's point value. An entry with a nil
// EndDate is open.
type HistoryEntry struct {
	RunID     string
	StartDate time.Time
	EndDate   *time.Time
	EndReason EndReason
	Points    int
}

// IsOpen reports whether the interval still applies.
func (e HistoryEntry) IsOpen() bool {
	return e.EndDate == nil
}

// ReplayInput is everything needed to replay one leaderboard. Runs must be
// eligible, belong to Key, and be in chronological order.
type ReplayInput struct {
	Key    LeaderboardKey
	Runs   []Run
	Game   *Game
	Config ScoringConfig
}

// ReplayResult is the full computed state of a leaderboard after replay.
type ReplayResult struct {
	Key          LeaderboardKey
	TimingMethod TimingMethod
	MaxPoints    int

	// Entries is the computed ledger in creation order.
	Entries []HistoryEntry

	// Points maps each run with an open entry to its current points: the
	// entry's points, plus awarded streak months for the record holder.
	Points map[string]int

	// Streaks maps every run that ever held the record to its streak months.
	Streaks map[string]int

	WorldRecordRunID string
	RunsReplayed     int
	RunsSkipped      int
}

// OpenEntries returns the entries still open after the replay.
func (r ReplayResult) OpenEntries() []HistoryEntry {
	var out []HistoryEntry
	for _, e := range r.Entries {
		if e.IsOpen() {
			out = append(out, e)
		}
	}
	return out
}

type activeEntry struct {
	index int
	time  float64
}

type bestRun struct {
	runID string
	time  float64
}

// ReplayState is the mutable state of a single leaderboard replay. It is
// never shared between leaderboards.
type ReplayState struct {
	runType   RunType
	maxPoints int
	isCE      bool
	streakCfg StreakConfig

	broken map[string]bool

	hasWR     bool
	wrTime    float64
	wrRunID   string
	wrPlayers map[string]struct{}

	active   map[string]activeEntry
	bestRuns map[string]bestRun
	streaks  map[string]int
	entries  []HistoryEntry
}

func newReplayState(runType RunType, maxPoints int, isCE bool, cfg StreakConfig) *ReplayState {
	return &ReplayState{
		runType:   runType,
		maxPoints: maxPoints,
		isCE:      isCE,
		streakCfg: cfg,
		wrPlayers: map[string]struct{}{},
		active:    map[string]activeEntry{},
		bestRuns:  map[string]bestRun{},
		streaks:   map[string]int{},
	}
}

// Replay walks a leaderboard's runs in order and computes every history
// interval, the final points of each run, and the streak months of every
// record holder. It has no side effects.
func Replay(in ReplayInput) (ReplayResult, error) {
	if err := validateReplayInput(in); err != nil {
		return ReplayResult{}, err
	}

	method := TimeColumn(in.Game, in.Key.RunType)
	maxPoints := MaxPointsFor(in.Game, in.Key.RunType, in.Config.Points)
	isCE := in.Game != nil && in.Game.IsCE

	st := newReplayState(in.Key.RunType, maxPoints, isCE, in.Config.Streak)
	st.broken = brokenStreaks(in.Runs, method)
	res := ReplayResult{
		Key:          in.Key,
		TimingMethod: method,
		MaxPoints:    maxPoints,
	}

	for _, run := range in.Runs {
		runTime := run.TimeFor(method)
		if runTime <= 0 {
			res.RunsSkipped++
			continue
		}
		res.RunsReplayed++

		at, _ := run.EffectiveDate()
		st.obsoletePersonalBests(run, runTime, at)

		if !st.hasWR || runTime < st.wrTime {
			st.crown(run, runTime, at)
			continue
		}

		points := PointsFormula(st.wrTime, runTime, maxPoints, IsShort(st.wrTime))
		st.open(run.ID, at, points, runTime)
	}

	res.Entries = st.entries
	res.Points = make(map[string]int, len(st.active))
	for runID, a := range st.active {
		res.Points[runID] = st.entries[a.index].Points
	}
	if st.hasWR {
		res.Points[st.wrRunID] = st.recordPoints(st.streaks[st.wrRunID])
	}
	res.Streaks = maps.Clone(st.streaks)
	res.WorldRecordRunID = st.wrRunID
	return res, nil
}

// obsoletePersonalBests closes the previous best of every participant that
// this run beats, and records this run as their new best.
func (s *ReplayState) obsoletePersonalBests(run Run, runTime float64, at time.Time) {
	for _, playerID := range run.PlayerIDs {
		best, seen := s.bestRuns[playerID]
		if seen && runTime < best.time {
			if a, open := s.active[best.runID]; open {
				s.close(a.index, at, EndReasonObsoleted)
				delete(s.active, best.runID)
			}
		}
		if !seen || runTime < best.time {
			s.bestRuns[playerID] = bestRun{runID: run.ID, time: runTime}
		}
	}
}

// crown makes run the new world record. Every open interval is closed and
// reopened against the new record time.
func (s *ReplayState) crown(run Run, runTime float64, at time.Time) {
	prevWR := s.wrRunID
	players := PlayerSet(run.PlayerIDs)
	continues := s.hasWR && RunsSharePlayer(s.wrPlayers, players)

	carried := 0
	if continues {
		carried = s.streaks[prevWR]
	} else if s.hasWR {
		s.streaks[prevWR] = 0
	}

	short := IsShort(runTime)
	for _, runID := range s.activeInOrder() {
		a := s.active[runID]
		reason := EndReasonRecalculation
		if s.hasWR && runID == prevWR {
			reason = EndReasonLostWR
		}
		s.close(a.index, at, reason)
		s.open(runID, at, PointsFormula(runTime, a.time, s.maxPoints, short), a.time)
	}

	// Persisted months from the anniversary job are a floor, except for
	// holders whose streak is later broken. The interval itself only carries
	// inherited months: awards land on the run, never on the ledger.
	months := carried
	if !s.broken[run.ID] {
		months = max(months, run.Bonus)
	}
	s.streaks[run.ID] = months

	s.hasWR = true
	s.wrTime = runTime
	s.wrRunID = run.ID
	s.wrPlayers = players

	s.open(run.ID, at, s.recordPoints(carried), runTime)
}

func (s *ReplayState) recordPoints(months int) int {
	return s.maxPoints + CalculateBonus(s.runType, months, s.isCE, s.streakCfg)
}

func (s *ReplayState) open(runID string, at time.Time, points int, runTime float64) {
	s.entries = append(s.entries, HistoryEntry{
		RunID:     runID,
		StartDate: at,
		Points:    points,
	})
	s.active[runID] = activeEntry{index: len(s.entries) - 1, time: runTime}
}

func (s *ReplayState) close(index int, at time.Time, reason EndReason) {
	end := at
	s.entries[index].EndDate = &end
	s.entries[index].EndReason = reason
}

// activeInOrder returns open run IDs in the order their entries were opened.
func (s *ReplayState) activeInOrder() []string {
	ids := slices.Collect(maps.Keys(s.active))
	slices.SortFunc(ids, func(a, b string) int {
		return s.active[a].index - s.active[b].index
	})
	return ids
}

// brokenStreaks returns the record holders that later lose the record to a
// run sharing none of their players. It depends only on times and players.
func brokenStreaks(runs []Run, method TimingMethod) map[string]bool {
	broken := map[string]bool{}

	var (
		hasWR     bool
		wrTime    float64
		wrRunID   string
		wrPlayers map[string]struct{}
	)
	for _, r := range runs {
		t := r.TimeFor(method)
		if t <= 0 || (hasWR && t >= wrTime) {
			continue
		}
		players := PlayerSet(r.PlayerIDs)
		if hasWR && !RunsSharePlayer(wrPlayers, players) {
			broken[wrRunID] = true
		}
		hasWR, wrTime, wrRunID, wrPlayers = true, t, r.ID, players
	}
	return broken
}

func validateReplayInput(in ReplayInput) error {
	var prev time.Time
	for i, run := range in.Runs {
		if run.Key() != in.Key {
			return fmt.Errorf("run %s on %s: %w", run.ID, in.Key, ErrMixedLeaderboard)
		}
		if !run.Eligible() {
			return fmt.Errorf("run %s: %w", run.ID, ErrIneligibleRun)
		}
		at, _ := run.EffectiveDate()
		if i > 0 && at.Before(prev) {
			return fmt.Errorf("run %s at %s precedes %s: %w", run.ID, at.Format(time.RFC3339), prev.Format(time.RFC3339), ErrUnsortedRuns)
		}
		prev = at
	}
	return nil
}
