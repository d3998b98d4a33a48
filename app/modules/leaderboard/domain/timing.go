package leaderboarddomain

import (
	"fmt"
	"math"
	"strings"
)

// TimingMethod names which stored time is authoritative.
type TimingMethod string

const (
	TimingRealtime        TimingMethod = "realtime"
	TimingRealtimeNoLoads TimingMethod = "realtime_noloads"
	TimingInGame          TimingMethod = "ingame"
)

// Valid reports whether m is a known method.
func (m TimingMethod) Valid() bool {
	switch m {
	case TimingRealtime, TimingRealtimeNoLoads, TimingInGame:
		return true
	}
	return false
}

// TimeColumn resolves the timing method a leaderboard uses. Missing games and
// unknown methods resolve to realtime.
func TimeColumn(game *Game, runType RunType) TimingMethod {
	if game == nil {
		return TimingRealtime
	}

	m := game.DefaultTime
	if runType != RunTypeMain {
		m = game.IDefaultTime
	}
	if !m.Valid() {
		return TimingRealtime
	}
	return m
}

// TimeFor returns the run's time under the given method.
func (r Run) TimeFor(m TimingMethod) float64 {
	switch m {
	case TimingRealtimeNoLoads:
		return r.TimeNLSecs
	case TimingInGame:
		return r.TimeIGTSecs
	default:
		return r.TimeSecs
	}
}

// FormatTime renders seconds as e.g. "1h 2m 03s 456ms". Hours are omitted
// below one hour and milliseconds are omitted when zero.
func FormatTime(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	totalMs := int64(math.Round(secs * 1000))

	hours := totalMs / 3_600_000
	minutes := (totalMs / 60_000) % 60
	seconds := (totalMs / 1000) % 60
	ms := totalMs % 1000

	var sb strings.Builder
	if hours >= 1 {
		fmt.Fprintf(&sb, "%dh ", hours)
	}
	fmt.Fprintf(&sb, "%dm %02ds", minutes, seconds)
	if ms != 0 {
		fmt.Fprintf(&sb, " %03dms", ms)
	}
	return sb.String()
}
