package leaderboarddomain

import (
	"cmp"
	"slices"
	"time"
)

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AnniversaryDay returns the day a monthly anniversary of originalDay falls
// on in the target month, clamped to the month's length (Jan 31 -> Feb 28).
func AnniversaryDay(originalDay, year int, month time.Month) int {
	return min(originalDay, DaysIn(year, month))
}

// AddMonths moves t by the given number of calendar months, clamping the day.
func AddMonths(t time.Time, months int) time.Time {
	t = DateOf(t)
	y := t.Year()
	m := int(t.Month()) - 1 + months
	y += m / 12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	month := time.Month(m + 1)
	return time.Date(y, month, AnniversaryDay(t.Day(), y, month), 0, 0, 0, 0, time.UTC)
}

// MonthsHeld counts whole calendar months from start to check.
func MonthsHeld(start, check time.Time) int {
	start, check = DateOf(start), DateOf(check)
	if !check.After(start) {
		return 0
	}
	months := (check.Year()-start.Year())*12 + int(check.Month()) - int(start.Month())
	if AddMonths(start, months).After(check) {
		months--
	}
	return months
}

// IsAnniversary reports whether check is a monthly anniversary of start, and
// how many months have been held.
func IsAnniversary(start, check time.Time) (bool, int) {
	start, check = DateOf(start), DateOf(check)
	if !check.After(start) {
		return false, 0
	}
	months := MonthsHeld(start, check)
	if months <= 0 {
		return false, 0
	}
	return check.Day() == AnniversaryDay(start.Day(), check.Year(), check.Month()), months
}

// RecordHolding is a stored interval during which a run was worth at least
// the leaderboard ceiling.
type RecordHolding struct {
	RunID     string
	StartDate time.Time
	PlayerIDs []string
}

// TraceStreakStart walks record holdings newest first and returns the date
// the current holders' unbroken streak began. The walk stops at the first
// holding that shares no player, or once it passes cutoff.
func TraceStreakStart(currentPlayers []string, holdings []RecordHolding, cutoff time.Time) (time.Time, bool) {
	if len(currentPlayers) == 0 || len(holdings) == 0 {
		return time.Time{}, false
	}

	sorted := slices.Clone(holdings)
	slices.SortStableFunc(sorted, func(a, b RecordHolding) int {
		return cmp.Compare(b.StartDate.UnixMicro(), a.StartDate.UnixMicro())
	})

	cutoff = DateOf(cutoff)
	tracking := PlayerSet(currentPlayers)

	var start time.Time
	found := false
	for _, h := range sorted {
		d := DateOf(h.StartDate)
		if d.Before(cutoff) {
			if !found {
				start, found = d, true
			}
			break
		}

		players := PlayerSet(h.PlayerIDs)
		if !RunsSharePlayer(players, tracking) {
			break
		}
		start, found = d, true
		tracking = players
	}
	return start, found
}

// StreakDecision is the outcome of checking one record against a date.
type StreakDecision struct {
	MonthsHeld int
	// Checked is set when the record counts toward the run's summary.
	Checked bool
	// Award is set when the run's streak should change to NewBonus.
	Award    bool
	NewBonus int
}

// EvaluateStreak decides whether a record whose streak began at start earns
// a new streak value on check. Outside audit mode only anniversaries count,
// and the streak only ever grows.
func EvaluateStreak(start, check time.Time, currentBonus int, audit bool, cfg StreakConfig) StreakDecision {
	d := StreakDecision{MonthsHeld: MonthsHeld(start, check)}

	if !audit {
		if ok, _ := IsAnniversary(start, check); !ok {
			return d
		}
	}
	d.Checked = true

	if audit && d.MonthsHeld == currentBonus {
		return d
	}
	if !audit && d.MonthsHeld <= currentBonus {
		return d
	}

	d.Award = true
	d.NewBonus = min(d.MonthsHeld, cfg.MaxMonths)
	return d
}
