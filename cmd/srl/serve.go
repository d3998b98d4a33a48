package main

import (
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/thpsrun/website-sub000/app/observability/attr"
)

const stopTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the read API and run the periodic streak and rebuild jobs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-worker", Usage: "serve the API without running queue workers"},
		},
		Action: func(c *cli.Context) error {
			d, err := setupModule(c)
			if err != nil {
				return err
			}
			defer d.Close()

			logger := d.obs.Provider.Logger
			if !c.Bool("no-worker") {
				if err := d.module.StartQueue(c.Context); err != nil {
					return err
				}
			}

			runErr := d.module.Run(c.Context, nil)

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := d.module.Close(stopCtx); err != nil {
				logger.Error("Failed to stop leaderboard module", attr.Error(err))
			}
			return runErr
		},
	}
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "list queued and running leaderboard jobs",
		Action: func(c *cli.Context) error {
			d, err := setupModule(c)
			if err != nil {
				return err
			}
			defer d.Close()

			q, err := d.module.NewQueue(c.Context, false)
			if err != nil {
				return err
			}
			defer q.Close()

			jobs, err := q.ListJobs(c.Context)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(c.App.Writer, "No pending jobs")
				return nil
			}

			tbl := tablewriter.NewTable(c.App.Writer)
			tbl.Header("ID", "Kind", "Game", "State", "Scheduled", "Attempt")
			for _, j := range jobs {
				if err := tbl.Append([]string{
					fmt.Sprint(j.ID),
					j.Kind,
					j.GameID,
					j.State,
					j.ScheduledAt,
					fmt.Sprintf("%d/%d", j.Attempt, j.MaxAttempts),
				}); err != nil {
					return err
				}
			}
			return tbl.Render()
		},
	}
}
