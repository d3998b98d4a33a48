package leaderboardintegrationtests

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
	leaderboardmetrics "github.com/thpsrun/website-sub000/app/observability/metrics/leaderboard"
	"github.com/thpsrun/website-sub000/integration_tests/testutils"
)

// Global variables for the test environment, initialized once.
var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

type TestDeps struct {
	Ctx     context.Context
	Repo    leaderboarddb.Repository
	BunDB   *bun.DB
	Service leaderboardservice.Service
}

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	testEnvOnce.Do(func() {
		log.Println("Initializing leaderboard test environment...")
		env, err := testutils.NewTestEnvironment(t)
		if err != nil {
			testEnvErr = err
			log.Printf("Failed to set up test environment: %v", err)
		} else {
			log.Println("Leaderboard test environment initialized successfully.")
			testEnv = env
		}
	})

	if testEnvErr != nil {
		t.Fatalf("Leaderboard test environment initialization failed: %v", testEnvErr)
	}
	if testEnv == nil {
		t.Fatalf("Leaderboard test environment not initialized")
	}
	return testEnv
}

func SetupTestLeaderboardService(t *testing.T) TestDeps {
	t.Helper()

	env := GetTestEnv(t)

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer resetCancel()
	if err := env.Reset(resetCtx); err != nil {
		t.Fatalf("Failed to reset environment: %v", err)
	}

	service := leaderboardservice.NewLeaderboardService(
		env.DBService.LeaderboardDB,
		env.Logger,
		leaderboardmetrics.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test_leaderboard_service"),
		env.DB,
		env.Config.Scoring(),
	)

	return TestDeps{
		Ctx:     env.Ctx,
		Repo:    env.DBService.LeaderboardDB,
		BunDB:   env.DB,
		Service: service,
	}
}

// seedHandoff stores the three-run handoff: A improves their own record,
// then B takes it.
func seedHandoff(t *testing.T, deps TestDeps) {
	t.Helper()
	testutils.InsertGame(t, deps.Ctx, deps.Repo, deps.BunDB, "g1", "thps1")
	testutils.InsertPlayers(t, deps.Ctx, deps.Repo, deps.BunDB, "A", "B")
	testutils.InsertRuns(t, deps.Ctx, deps.Repo, deps.BunDB,
		testutils.NewRun("g1", "R1", "Any%", 40, testutils.Day(1), "A"),
		testutils.NewRun("g1", "R2", "Any%", 35, testutils.Day(2), "A"),
		testutils.NewRun("g1", "R3", "Any%", 30, testutils.Day(3), "B"),
	)
}

func mustBuild(t *testing.T, deps TestDeps, opts leaderboardservice.BuildOptions) leaderboardservice.BuildSummary {
	t.Helper()
	res, err := deps.Service.BuildRunHistory(deps.Ctx, opts)
	if err != nil {
		t.Fatalf("BuildRunHistory: %v", err)
	}
	if res.Failure != nil {
		t.Fatalf("BuildRunHistory failed: %v", *res.Failure)
	}
	return *res.Success
}

func allHistory(t *testing.T, deps TestDeps) []leaderboarddb.RunHistory {
	t.Helper()
	var rows []leaderboarddb.RunHistory
	if err := deps.BunDB.NewSelect().Model(&rows).Order("rh.run_id", "rh.start_date").Scan(deps.Ctx); err != nil {
		t.Fatalf("select history: %v", err)
	}
	return rows
}
