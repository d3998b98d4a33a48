package leaderboarddomain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// ComputeReplayHash generates a deterministic hash of everything that can
// change a leaderboard's replay: its runs, their participants and cached
// fields, the game's timing and ceilings, and the scoring config.
// A stored hash that matches means the stored ledger is already current.
func ComputeReplayHash(in ReplayInput) string {
	method := TimeColumn(in.Game, in.Key.RunType)
	isCE := in.Game != nil && in.Game.IsCE

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%d|%t|%+v;", in.Key, method,
		MaxPointsFor(in.Game, in.Key.RunType, in.Config.Points), isCE, in.Config.Streak)

	for _, r := range in.Runs {
		at, _ := r.EffectiveDate()
		players := slices.Clone(r.PlayerIDs)
		slices.Sort(players)
		fmt.Fprintf(&sb, "%s:%d:%g:%s:%d:%d;",
			r.ID, at.UnixMicro(), r.TimeFor(method), strings.Join(players, ","), r.Points, r.Bonus)
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}
