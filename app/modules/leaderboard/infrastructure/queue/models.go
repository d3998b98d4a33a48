package leaderboardqueue

// QueueName is the river queue the leaderboard jobs run on.
const QueueName = "leaderboard"

// StreakCheckJob awards the streak bonuses due on the day it runs.
type StreakCheckJob struct {
	GameID string `json:"game_id,omitempty"`
}

// Kind returns the job type identifier for River
func (StreakCheckJob) Kind() string { return "leaderboard_streak_check" }

// RebuildJob replays every leaderboard of a game, or all games when GameID is empty.
type RebuildJob struct {
	GameID string `json:"game_id,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

// Kind returns the job type identifier for River
func (RebuildJob) Kind() string { return "leaderboard_rebuild" }

// JobInfo represents information about a queued job (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	GameID      string `json:"game_id,omitempty"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
