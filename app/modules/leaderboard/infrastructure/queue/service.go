package leaderboardqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/uptrace/bun"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	"github.com/thpsrun/website-sub000/app/observability/attr"
)

// Metrics is the subset of the leaderboard metrics the queue records into.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, scope string)
	RecordOperationSuccess(ctx context.Context, operation, scope string)
	RecordOperationFailure(ctx context.Context, operation, scope string)
	RecordOperationDuration(ctx context.Context, operation string, duration time.Duration)
}

// QueueService interface defines the contract for the leaderboard job queue
type QueueService interface {
	// EnqueueRebuild queues a run-history rebuild to run as soon as a worker is free
	EnqueueRebuild(ctx context.Context, gameID string, force bool) (int64, error)
	// EnqueueStreakCheck queues an immediate streak check
	EnqueueStreakCheck(ctx context.Context, gameID string) (int64, error)
	// ListJobs returns the leaderboard jobs that are waiting or running
	ListJobs(ctx context.Context) ([]JobInfo, error)
	// HealthCheck verifies the queue service is healthy
	HealthCheck(ctx context.Context) error
	// Start starts the queue service
	Start(ctx context.Context) error
	// Stop stops the queue service
	Stop(ctx context.Context) error
}

// Ensure Service implements QueueService
var _ QueueService = (*Service)(nil)

// Options configures the workers and their schedule.
type Options struct {
	// Work runs the workers. Without it the client only inserts jobs.
	Work bool
	// StreakInterval schedules the streak check. Zero disables it.
	StreakInterval time.Duration
	// RebuildInterval schedules a full rebuild. Zero disables it.
	RebuildInterval time.Duration
	// RebuildRate caps leaderboards rebuilt per second.
	RebuildRate float64
	Concurrency int
}

// Service handles job scheduling for the leaderboard module using River
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics Metrics
}

// NewService creates a new River-based queue service for leaderboard jobs
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics Metrics, service leaderboardservice.Service, opts Options) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_leaderboard_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	ctxLogger.Info("Initializing leaderboard queue service")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.Error("Failed to parse DSN for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.Error("Failed to create pgx pool for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), newRiverConfig(ctxLogger, service, opts))
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	s := &Service{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", time.Since(start))

	ctxLogger.Info("Leaderboard queue service initialized successfully",
		attr.Bool("work", opts.Work),
		attr.Duration("streak_interval", opts.StreakInterval),
		attr.Duration("rebuild_interval", opts.RebuildInterval))
	return s, nil
}

// newRiverConfig registers the workers and, when working, the queue and
// periodic jobs.
func newRiverConfig(logger *slog.Logger, service leaderboardservice.Service, opts Options) *river.Config {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewStreakCheckWorker(logger, service))
	river.AddWorker(workers, NewRebuildWorker(logger, service, opts.RebuildRate, opts.Concurrency))

	cfg := &river.Config{
		Workers: workers,
		Logger:  logger,
	}
	if !opts.Work {
		return cfg
	}

	cfg.Queues = map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: 5},
		// Rebuilds run one at a time.
		QueueName: {MaxWorkers: 1},
	}
	cfg.PeriodicJobs = periodicJobs(opts)
	return cfg
}

func periodicJobs(opts Options) []*river.PeriodicJob {
	var jobs []*river.PeriodicJob
	if opts.StreakInterval > 0 {
		jobs = append(jobs, river.NewPeriodicJob(
			river.PeriodicInterval(opts.StreakInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return StreakCheckJob{}, &river.InsertOpts{Queue: QueueName}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}
	if opts.RebuildInterval > 0 {
		jobs = append(jobs, river.NewPeriodicJob(
			river.PeriodicInterval(opts.RebuildInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return RebuildJob{}, &river.InsertOpts{Queue: QueueName}
			},
			nil,
		))
	}
	return jobs
}

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", "river")

	s.logger.Info("Starting leaderboard queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", "river")
	s.metrics.RecordOperationDuration(ctx, "start_service", time.Since(start))

	s.logger.Info("Leaderboard queue service started successfully")
	return nil
}

// Stop stops the River queue service and releases its pool
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", "river")

	s.logger.Info("Stopping leaderboard queue service")
	defer s.pool.Close()

	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", "river")
		return fmt.Errorf("failed to stop River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "stop_service", "river")
	s.metrics.RecordOperationDuration(ctx, "stop_service", time.Since(start))

	s.logger.Info("Leaderboard queue service stopped successfully")
	return nil
}

// Close releases the pool of a client that was never started.
func (s *Service) Close() {
	s.pool.Close()
}

// EnqueueRebuild queues a run-history rebuild
func (s *Service) EnqueueRebuild(ctx context.Context, gameID string, force bool) (int64, error) {
	return s.insert(ctx, "enqueue_rebuild", RebuildJob{GameID: gameID, Force: force})
}

// EnqueueStreakCheck queues a streak check
func (s *Service) EnqueueStreakCheck(ctx context.Context, gameID string) (int64, error) {
	return s.insert(ctx, "enqueue_streak_check", StreakCheckJob{GameID: gameID})
}

func (s *Service) insert(ctx context.Context, operation string, args river.JobArgs) (int64, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, "river")

	ctxLogger := s.logger.With(
		attr.String("operation", operation),
		attr.String("job_kind", args.Kind()),
	)

	jobResult, err := s.client.Insert(ctx, args, &river.InsertOpts{
		Queue: QueueName,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	})
	if err != nil {
		ctxLogger.Error("Failed to enqueue job", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, operation, "river")
		return 0, fmt.Errorf("failed to enqueue %s job: %w", args.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, operation, "river")
	s.metrics.RecordOperationDuration(ctx, operation, time.Since(start))

	ctxLogger.Info("Job enqueued",
		attr.Int64("job_id", jobResult.Job.ID),
		attr.Bool("duplicate", jobResult.UniqueSkippedAsDuplicate))
	return jobResult.Job.ID, nil
}

// ListJobs returns the leaderboard jobs that have not finished yet
func (s *Service) ListJobs(ctx context.Context) ([]JobInfo, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "list_jobs", "river")

	params := river.NewJobListParams().
		Queues(QueueName).
		Kinds(StreakCheckJob{}.Kind(), RebuildJob{}.Kind()).
		States(
			rivertype.JobStateAvailable,
			rivertype.JobStateRetryable,
			rivertype.JobStateRunning,
			rivertype.JobStateScheduled,
		).
		First(100)

	res, err := s.client.JobList(ctx, params)
	if err != nil {
		s.logger.Error("Failed to list jobs", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "list_jobs", "river")
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]JobInfo, 0, len(res.Jobs))
	for _, row := range res.Jobs {
		jobs = append(jobs, jobInfoFromRow(row))
	}

	s.metrics.RecordOperationSuccess(ctx, "list_jobs", "river")
	s.metrics.RecordOperationDuration(ctx, "list_jobs", time.Since(start))
	return jobs, nil
}

func jobInfoFromRow(row *rivertype.JobRow) JobInfo {
	var args struct {
		GameID string `json:"game_id"`
	}
	_ = json.Unmarshal(row.EncodedArgs, &args)

	return JobInfo{
		ID:          row.ID,
		Kind:        row.Kind,
		GameID:      args.GameID,
		State:       string(row.State),
		ScheduledAt: row.ScheduledAt.Format(time.RFC3339),
		CreatedAt:   row.CreatedAt.Format(time.RFC3339),
		Attempt:     row.Attempt,
		MaxAttempts: row.MaxAttempts,
	}
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "health_check", "river")

	if s.client == nil {
		s.metrics.RecordOperationFailure(ctx, "health_check", "river")
		return fmt.Errorf("river client is nil")
	}

	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Where("queue = ?", QueueName).
		Scan(ctx, &count)
	if err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "health_check", "river")
		return fmt.Errorf("queue service health check failed: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "health_check", "river")
	s.metrics.RecordOperationDuration(ctx, "health_check", time.Since(start))

	s.logger.Debug("Queue service health check passed", attr.Int("total_jobs", count))
	return nil
}

// GetClient returns the underlying River client for advanced operations
func (s *Service) GetClient() *river.Client[pgx.Tx] {
	return s.client
}
