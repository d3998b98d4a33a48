package leaderboarddomain

import (
	"math"
)

// decayConstant is the exponent coefficient of the points curve. A run at
// half the speed of the world record keeps roughly 8.9% of the ceiling.
const decayConstant = 4.8284

// shortRunThreshold is the world-record time, in seconds, below which the
// curve is flattened so tiny absolute gaps are not over-penalized.
const shortRunThreshold = 60.0

// PointsConfig holds the point ceilings used when a game does not carry its own.
type PointsConfig struct {
	MaxFG int `yaml:"max_fg"`
	MaxIL int `yaml:"max_il"`
	MaxCE int `yaml:"max_ce"`
}

// StreakConfig controls the world-record streak bonus.
type StreakConfig struct {
	MaxMonths int     `yaml:"max_months"`
	BonusFG   float64 `yaml:"bonus_fg"`
	BonusIL   float64 `yaml:"bonus_il"`
}

// ScoringConfig bundles every tunable that affects computed points.
type ScoringConfig struct {
	Points PointsConfig `yaml:"points"`
	Streak StreakConfig `yaml:"streak"`
}

// DefaultScoringConfig returns the production ceilings and streak tuning.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Points: PointsConfig{
			MaxFG: 1000,
			MaxIL: 100,
			MaxCE: 25,
		},
		Streak: StreakConfig{
			MaxMonths: 4,
			BonusFG:   25,
			BonusIL:   2.5,
		},
	}
}

// IsShort reports whether a leaderboard whose record is wrTime should use the
// flattened curve.
func IsShort(wrTime float64) bool {
	return wrTime < shortRunThreshold
}

// PointsFormula returns the points a run of runTime earns against a world
// record of wrTime, on a ceiling of maxPoints.
//
// The result is floor(e^(k*(wr/run - 1)) * max), clamped to [0, max]. When
// short is set, k is scaled by sqrt(wr/60).
func PointsFormula(wrTime, runTime float64, maxPoints int, short bool) int {
	if maxPoints <= 0 || wrTime <= 0 || runTime <= 0 {
		return 0
	}
	if runTime <= wrTime {
		return maxPoints
	}

	k := decayConstant
	if short {
		k *= math.Sqrt(wrTime / shortRunThreshold)
	}

	points := int(math.Floor(math.Exp(k*((wrTime/runTime)-1)) * float64(maxPoints)))
	switch {
	case points < 0:
		return 0
	case points > maxPoints:
		return maxPoints
	}
	return points
}

// CalculateBonus returns the streak bonus points for a world record held for
// streakMonths consecutive months. Category-extension games never earn one.
func CalculateBonus(runType RunType, streakMonths int, isCE bool, cfg StreakConfig) int {
	if isCE || streakMonths <= 0 {
		return 0
	}

	capped := min(streakMonths, cfg.MaxMonths)
	if runType == RunTypeMain {
		return int(float64(capped) * cfg.BonusFG)
	}
	return int(float64(capped) * cfg.BonusIL)
}

// RunsSharePlayer reports whether two participant sets intersect.
func RunsSharePlayer(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for id := range a {
		if _, ok := b[id]; ok {
			return true
		}
	}
	return false
}

// PlayerSet builds the set form of a participant list.
func PlayerSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// MaxPointsFor resolves the point ceiling of a leaderboard. A nil game falls
// back to the configured ceilings.
func MaxPointsFor(game *Game, runType RunType, cfg PointsConfig) int {
	if game != nil && game.IsCE {
		return cfg.MaxCE
	}

	if runType == RunTypeMain {
		if game != nil && game.PointsMax > 0 {
			return game.PointsMax
		}
		return cfg.MaxFG
	}

	if game != nil && game.IPointsMax > 0 {
		return game.IPointsMax
	}
	return cfg.MaxIL
}
