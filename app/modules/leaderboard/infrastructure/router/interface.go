package leaderboardrouter

import (
	"context"

	leaderboardhandlers "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/handlers"
)

// Router interface for the run history HTTP surface.
type Router interface {
	Configure(ctx context.Context, handlers leaderboardhandlers.Handlers) error
	Run(ctx context.Context, addr string) error
	Close() error
}
