package leaderboardservice

import "errors"

var (
	// ErrGameNotFound is returned when a game filter matches no game.
	ErrGameNotFound = errors.New("game not found")

	// ErrRunNotFound is returned when a run lookup matches nothing.
	ErrRunNotFound = errors.New("run not found")
)
