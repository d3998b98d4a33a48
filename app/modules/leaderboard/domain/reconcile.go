package leaderboarddomain

import (
	"fmt"
	"sort"
	"time"
)

// StoredEntry is a persisted history entry.
type StoredEntry struct {
	ID int64
	HistoryEntry
}

// EntryClose sets the end of one stored entry.
type EntryClose struct {
	ID        int64
	RunID     string
	EndDate   time.Time
	EndReason EndReason
}

// RunUpdate is a change to a run's cached points and streak.
type RunUpdate struct {
	RunID  string
	Points int
	Bonus  int
}

// LedgerDiff is the set of writes that brings the stored ledger and run
// fields in line with a replay.
type LedgerDiff struct {
	Append []HistoryEntry
	Close  []EntryClose
	Runs   []RunUpdate
}

// IsEmpty reports whether applying the diff would write nothing.
func (d LedgerDiff) IsEmpty() bool {
	return len(d.Append) == 0 && len(d.Close) == 0 && len(d.Runs) == 0
}

type entryMatchKey struct {
	runID  string
	start  int64
	points int
}

func matchKeyOf(e HistoryEntry) entryMatchKey {
	return entryMatchKey{runID: e.RunID, start: e.StartDate.UnixMicro(), points: e.Points}
}

// sameEnd compares closures at the storage precision of microseconds.
func sameEnd(a, b HistoryEntry) bool {
	if a.IsOpen() || b.IsOpen() {
		return a.IsOpen() == b.IsOpen()
	}
	return a.EndDate.UnixMicro() == b.EndDate.UnixMicro() && a.EndReason == b.EndReason
}

// Reconcile diffs a computed ledger against the stored one.
//
// Entries are matched on run, start date and points. A computed entry whose
// match is stored unchanged needs nothing. A computed closed entry matching a
// stored open one closes it. Unmatched computed entries are appended, and
// stored open entries left unmatched are closed as recalculated at now.
// Stored points are never rewritten.
//
// When the resulting ledger would give any run overlapping intervals, as
// happens when a run is backfilled between two already replayed ones, nothing
// is returned but ErrLedgerDiverged. Only a cleared rebuild can fix that.
func Reconcile(stored []StoredEntry, computed []HistoryEntry, now time.Time) (LedgerDiff, error) {
	buckets := make(map[entryMatchKey][]int)
	for i, s := range stored {
		k := matchKeyOf(s.HistoryEntry)
		buckets[k] = append(buckets[k], i)
	}
	used := make([]bool, len(stored))

	var diff LedgerDiff
	for _, c := range computed {
		idx, ok := pickMatch(stored, used, buckets[matchKeyOf(c)], c)
		if !ok {
			diff.Append = append(diff.Append, c)
			continue
		}
		used[idx] = true

		s := stored[idx]
		if s.IsOpen() && !c.IsOpen() {
			diff.Close = append(diff.Close, EntryClose{
				ID:        s.ID,
				RunID:     s.RunID,
				EndDate:   *c.EndDate,
				EndReason: c.EndReason,
			})
		}
	}

	for i, s := range stored {
		if used[i] || !s.IsOpen() {
			continue
		}
		diff.Close = append(diff.Close, EntryClose{
			ID:        s.ID,
			RunID:     s.RunID,
			EndDate:   now,
			EndReason: EndReasonRecalculation,
		})
	}

	if err := checkOverlaps(stored, diff); err != nil {
		return LedgerDiff{}, err
	}
	return diff, nil
}

// checkOverlaps applies the diff to the stored ledger in memory and fails if
// any run ends up with two intervals covering the same time.
func checkOverlaps(stored []StoredEntry, diff LedgerDiff) error {
	closes := make(map[int64]EntryClose, len(diff.Close))
	for _, c := range diff.Close {
		closes[c.ID] = c
	}

	byRun := map[string][]HistoryEntry{}
	for _, s := range stored {
		e := s.HistoryEntry
		if c, ok := closes[s.ID]; ok {
			end := c.EndDate
			e.EndDate = &end
			e.EndReason = c.EndReason
		}
		byRun[e.RunID] = append(byRun[e.RunID], e)
	}
	for _, e := range diff.Append {
		byRun[e.RunID] = append(byRun[e.RunID], e)
	}

	for runID, entries := range byRun {
		live := entries[:0]
		for _, e := range entries {
			if e.IsOpen() || e.EndDate.After(e.StartDate) {
				live = append(live, e)
			}
		}
		sort.Slice(live, func(i, j int) bool {
			if !live[i].StartDate.Equal(live[j].StartDate) {
				return live[i].StartDate.Before(live[j].StartDate)
			}
			return !live[i].IsOpen() && (live[j].IsOpen() || live[i].EndDate.Before(*live[j].EndDate))
		})
		for i := 1; i < len(live); i++ {
			prev, next := live[i-1], live[i]
			if prev.IsOpen() || next.StartDate.Before(*prev.EndDate) {
				return fmt.Errorf("%w: run %s has %s overlapping %s", ErrLedgerDiverged, runID, intervalString(prev), intervalString(next))
			}
		}
	}
	return nil
}

func intervalString(e HistoryEntry) string {
	end := "open"
	if !e.IsOpen() {
		end = e.EndDate.UTC().Format(time.DateOnly)
	}
	return fmt.Sprintf("[%s, %s) %dpts", e.StartDate.UTC().Format(time.DateOnly), end, e.Points)
}

// pickMatch prefers a stored entry in the identical state, then an open one
// that the computed closure can still be applied to.
func pickMatch(stored []StoredEntry, used []bool, candidates []int, c HistoryEntry) (int, bool) {
	for _, i := range candidates {
		if !used[i] && sameEnd(stored[i].HistoryEntry, c) {
			return i, true
		}
	}
	if c.IsOpen() {
		return 0, false
	}
	for _, i := range candidates {
		if !used[i] && stored[i].IsOpen() {
			return i, true
		}
	}
	return 0, false
}

// ReconcileRuns lists the runs whose cached points or streak differ from the
// replay. Runs without an open entry keep their points and runs that never
// held the record keep their streak.
func ReconcileRuns(runs []Run, res ReplayResult) []RunUpdate {
	var out []RunUpdate
	for _, r := range runs {
		points, bonus := r.Points, r.Bonus
		if p, ok := res.Points[r.ID]; ok {
			points = p
		}
		if b, ok := res.Streaks[r.ID]; ok {
			bonus = b
		}
		if points != r.Points || bonus != r.Bonus {
			out = append(out, RunUpdate{RunID: r.ID, Points: points, Bonus: bonus})
		}
	}
	return out
}

// Plan replays a leaderboard and diffs the result against what is stored.
func Plan(in ReplayInput, stored []StoredEntry, now time.Time) (ReplayResult, LedgerDiff, error) {
	res, err := Replay(in)
	if err != nil {
		return ReplayResult{}, LedgerDiff{}, err
	}
	diff, err := Reconcile(stored, res.Entries, now)
	if err != nil {
		return res, LedgerDiff{}, err
	}
	diff.Runs = ReconcileRuns(in.Runs, res)
	return res, diff, nil
}
