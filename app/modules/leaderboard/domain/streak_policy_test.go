package leaderboarddomain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAnniversaryDay(t *testing.T) {
	assert.Equal(t, 28, AnniversaryDay(31, 2023, time.February))
	assert.Equal(t, 29, AnniversaryDay(31, 2024, time.February))
	assert.Equal(t, 30, AnniversaryDay(31, 2024, time.April))
	assert.Equal(t, 15, AnniversaryDay(15, 2024, time.February))
}

func TestAddMonths(t *testing.T) {
	assert.Equal(t, date(2024, 2, 29), AddMonths(date(2024, 1, 31), 1))
	assert.Equal(t, date(2023, 10, 31), AddMonths(date(2024, 1, 31), -3))
	assert.Equal(t, date(2022, 10, 15), AddMonths(date(2024, 1, 15), -15))
	assert.Equal(t, date(2025, 1, 15), AddMonths(date(2024, 1, 15), 12))
}

func TestMonthsHeld(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		check time.Time
		want  int
	}{
		{name: "same day", start: date(2024, 1, 10), check: date(2024, 1, 10), want: 0},
		{name: "check before start", start: date(2024, 1, 10), check: date(2023, 12, 1), want: 0},
		{name: "one day short of a month", start: date(2024, 1, 10), check: date(2024, 2, 9), want: 0},
		{name: "exactly one month", start: date(2024, 1, 10), check: date(2024, 2, 10), want: 1},
		{name: "clamped month end", start: date(2024, 1, 31), check: date(2024, 2, 29), want: 1},
		{name: "across a year", start: date(2023, 11, 5), check: date(2024, 3, 4), want: 3},
		{name: "time of day ignored", start: time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC), check: time.Date(2024, 2, 10, 1, 0, 0, 0, time.UTC), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsHeld(tt.start, tt.check))
		})
	}
}

func TestIsAnniversary(t *testing.T) {
	ok, months := IsAnniversary(date(2024, 1, 31), date(2024, 2, 29))
	assert.True(t, ok)
	assert.Equal(t, 1, months)

	ok, months = IsAnniversary(date(2024, 1, 31), date(2024, 4, 30))
	assert.True(t, ok)
	assert.Equal(t, 3, months)

	ok, _ = IsAnniversary(date(2024, 1, 15), date(2024, 3, 14))
	assert.False(t, ok)

	ok, _ = IsAnniversary(date(2024, 1, 15), date(2024, 1, 15))
	assert.False(t, ok)
}

func TestTraceStreakStart(t *testing.T) {
	cutoff := date(2024, 1, 1)

	t.Run("follows shared players back", func(t *testing.T) {
		holdings := []RecordHolding{
			{RunID: "old", StartDate: date(2024, 2, 1), PlayerIDs: []string{"X"}},
			{RunID: "team", StartDate: date(2024, 3, 1), PlayerIDs: []string{"X", "A"}},
			{RunID: "solo", StartDate: date(2024, 4, 1), PlayerIDs: []string{"A"}},
		}
		start, ok := TraceStreakStart([]string{"A"}, holdings, cutoff)
		assert.True(t, ok)
		assert.Equal(t, date(2024, 2, 1), start)
	})

	t.Run("stops at a different holder", func(t *testing.T) {
		holdings := []RecordHolding{
			{RunID: "mine", StartDate: date(2024, 4, 1), PlayerIDs: []string{"A"}},
			{RunID: "theirs", StartDate: date(2024, 3, 1), PlayerIDs: []string{"B"}},
			{RunID: "mine-before", StartDate: date(2024, 2, 1), PlayerIDs: []string{"A"}},
		}
		start, ok := TraceStreakStart([]string{"A"}, holdings, cutoff)
		assert.True(t, ok)
		assert.Equal(t, date(2024, 4, 1), start)
	})

	t.Run("stops past the cutoff", func(t *testing.T) {
		holdings := []RecordHolding{
			{RunID: "recent", StartDate: date(2024, 2, 1), PlayerIDs: []string{"A"}},
			{RunID: "ancient", StartDate: date(2020, 2, 1), PlayerIDs: []string{"A"}},
		}
		start, ok := TraceStreakStart([]string{"A"}, holdings, cutoff)
		assert.True(t, ok)
		assert.Equal(t, date(2024, 2, 1), start)
	})

	t.Run("only holding is past the cutoff", func(t *testing.T) {
		holdings := []RecordHolding{{RunID: "ancient", StartDate: date(2020, 2, 1), PlayerIDs: []string{"B"}}}
		start, ok := TraceStreakStart([]string{"A"}, holdings, cutoff)
		assert.True(t, ok)
		assert.Equal(t, date(2020, 2, 1), start)
	})

	t.Run("no players or holdings", func(t *testing.T) {
		_, ok := TraceStreakStart(nil, []RecordHolding{{StartDate: cutoff}}, cutoff)
		assert.False(t, ok)
		_, ok = TraceStreakStart([]string{"A"}, nil, cutoff)
		assert.False(t, ok)
	})

	t.Run("newest holding shares nobody", func(t *testing.T) {
		holdings := []RecordHolding{{RunID: "other", StartDate: date(2024, 5, 1), PlayerIDs: []string{"B"}}}
		_, ok := TraceStreakStart([]string{"A"}, holdings, cutoff)
		assert.False(t, ok)
	})
}

func TestEvaluateStreak(t *testing.T) {
	cfg := DefaultScoringConfig().Streak
	start := date(2024, 1, 31)

	tests := []struct {
		name  string
		check time.Time
		bonus int
		audit bool
		want  StreakDecision
	}{
		{
			name:  "anniversary awards the new month",
			check: date(2024, 2, 29),
			want:  StreakDecision{MonthsHeld: 1, Checked: true, Award: true, NewBonus: 1},
		},
		{
			name:  "not an anniversary",
			check: date(2024, 3, 1),
			want:  StreakDecision{MonthsHeld: 1},
		},
		{
			name:  "anniversary already awarded",
			check: date(2024, 3, 31),
			bonus: 2,
			want:  StreakDecision{MonthsHeld: 2, Checked: true},
		},
		{
			name:  "audit corrects an off value",
			check: date(2024, 3, 15),
			bonus: 3,
			audit: true,
			want:  StreakDecision{MonthsHeld: 1, Checked: true, Award: true, NewBonus: 1},
		},
		{
			name:  "audit leaves a matching value",
			check: date(2024, 3, 15),
			bonus: 1,
			audit: true,
			want:  StreakDecision{MonthsHeld: 1, Checked: true},
		},
		{
			name:  "award is capped",
			check: date(2025, 1, 31),
			bonus: 2,
			want:  StreakDecision{MonthsHeld: 12, Checked: true, Award: true, NewBonus: cfg.MaxMonths},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateStreak(start, tt.check, tt.bonus, tt.audit, cfg))
		})
	}
}
