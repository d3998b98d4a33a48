package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/thpsrun/website-sub000/app/modules/leaderboard"
	"github.com/thpsrun/website-sub000/app/observability"
	"github.com/thpsrun/website-sub000/config"
	"github.com/thpsrun/website-sub000/db/bundb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "srl",
		Usage:     "speedrun leaderboard run history and points",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"SRL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			buildRunHistoryCommand(),
			buildStreaksCommand(),
			historyCommand(),
			exportCommand(),
			jobsCommand(),
			migrateCommand(),
			serveCommand(),
		},
	}
}

// deps is what a command needs to reach the database.
type deps struct {
	cfg       *config.Config
	obs       observability.Observability
	dbService *bundb.DBService
	module    *leaderboard.Module
}

func (d *deps) Close() {
	if d.dbService != nil {
		d.dbService.Close()
	}
}

// setup loads config, observability and the database. Logs go to the error
// writer so command output stays clean.
func setup(c *cli.Context) (*deps, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	obsCfg := config.ToObsConfig(cfg)
	obsCfg.Output = c.App.ErrWriter
	obs, err := observability.Init(c.Context, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	dbService, err := bundb.NewBunDBService(c.Context, cfg.Postgres, obs.Provider.Logger)
	if err != nil {
		return nil, err
	}

	return &deps{cfg: cfg, obs: obs, dbService: dbService}, nil
}

// setupModule is setup plus the leaderboard module.
func setupModule(c *cli.Context) (*deps, error) {
	d, err := setup(c)
	if err != nil {
		return nil, err
	}

	module, err := leaderboard.NewLeaderboardModule(c.Context, d.cfg, d.obs, d.dbService.LeaderboardDB, d.dbService.GetDB())
	if err != nil {
		d.Close()
		return nil, err
	}
	d.module = module
	return d, nil
}
