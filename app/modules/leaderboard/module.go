package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	leaderboardhandlers "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/handlers"
	leaderboardqueue "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/queue"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
	leaderboardrouter "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/router"
	"github.com/thpsrun/website-sub000/app/observability"
	"github.com/thpsrun/website-sub000/config"
)

// Module represents the leaderboard module.
type Module struct {
	LeaderboardService leaderboardservice.Service
	LeaderboardRouter  *leaderboardrouter.LeaderboardRouter
	// Queue is nil until StartQueue is called.
	Queue *leaderboardqueue.Service

	config        *config.Config
	db            *bun.DB
	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// NewLeaderboardModule creates a new instance of the Leaderboard module.
func NewLeaderboardModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	leaderboardDB leaderboarddb.Repository,
	db *bun.DB,
) (*Module, error) {
	// Extract observability components
	logger := obs.Provider.Logger
	metrics := obs.Registry.LeaderboardMetrics
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "leaderboard.NewLeaderboardModule called")

	leaderboardService := leaderboardservice.NewLeaderboardService(leaderboardDB, logger, metrics, tracer, db, cfg.Scoring())

	handlers := leaderboardhandlers.NewLeaderboardHandlers(leaderboardService, logger, tracer)
	leaderboardRouter := leaderboardrouter.NewLeaderboardRouter(logger, tracer, obs.Registry.Prometheus)
	if err := leaderboardRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure leaderboard router: %w", err)
	}

	return &Module{
		LeaderboardService: leaderboardService,
		LeaderboardRouter:  leaderboardRouter,
		config:             cfg,
		db:                 db,
		observability:      obs,
	}, nil
}

// NewQueue connects a River client for this module. With work set, the
// client also runs the workers and the periodic schedule once started.
func (m *Module) NewQueue(ctx context.Context, work bool) (*leaderboardqueue.Service, error) {
	q, err := leaderboardqueue.NewService(ctx, m.db, m.observability.Provider.Logger, m.config.Postgres.DSN,
		m.observability.Registry.LeaderboardMetrics, m.LeaderboardService,
		leaderboardqueue.Options{
			Work:            work,
			StreakInterval:  m.config.Worker.StreakInterval,
			RebuildInterval: m.config.Worker.RebuildInterval,
			RebuildRate:     m.config.Worker.RebuildRate,
			Concurrency:     m.config.Build.Concurrency,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create leaderboard queue: %w", err)
	}
	return q, nil
}

// StartQueue creates the working queue and starts it.
func (m *Module) StartQueue(ctx context.Context) error {
	q, err := m.NewQueue(ctx, true)
	if err != nil {
		return err
	}
	if err := q.Start(ctx); err != nil {
		return err
	}
	m.Queue = q
	return nil
}

// Run serves the read API until the context is canceled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) error {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting leaderboard module")

	// Create a context that can be canceled
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	// If we have a wait group, mark as done when this method exits
	if wg != nil {
		defer wg.Done()
	}

	err := m.LeaderboardRouter.Run(ctx, m.config.Server.Address)
	logger.InfoContext(ctx, "Leaderboard module stopped serving")
	return err
}

// Close stops the leaderboard module and cleans up resources.
func (m *Module) Close(ctx context.Context) error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping leaderboard module")

	// Cancel any other running operations
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var errs []error
	if m.Queue != nil {
		errs = append(errs, m.Queue.Stop(ctx))
	}
	errs = append(errs, m.LeaderboardRouter.Close())

	logger.Info("Leaderboard module stopped")
	return errors.Join(errs...)
}
