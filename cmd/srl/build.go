package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
)

const (
	dryRunBanner = "DRY RUN MODE: No changes will be saved."
	dryRunFooter = "This was a dry run. No changes saved."
)

func buildRunHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "build-run-history",
		Usage: "replay every leaderboard and rebuild the run history ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "limit to one game ID or slug"},
			&cli.BoolFlag{Name: "dry-run", Usage: "calculate but don't write to the database"},
			&cli.BoolFlag{Name: "clear", Usage: "delete existing history before rebuilding"},
			&cli.BoolFlag{Name: "force", Usage: "replay leaderboards whose runs are unchanged"},
			&cli.IntFlag{Name: "concurrency", Usage: "leaderboards processed at once (default from config)"},
			&cli.BoolFlag{Name: "enqueue", Usage: "queue the rebuild for the worker instead of running it here"},
		},
		Action: func(c *cli.Context) error {
			d, err := setupModule(c)
			if err != nil {
				return err
			}
			defer d.Close()

			out := c.App.Writer
			if c.Bool("enqueue") {
				return enqueueRebuild(c, d, out)
			}

			opts := leaderboardservice.BuildOptions{
				GameID:      c.String("game"),
				DryRun:      c.Bool("dry-run"),
				Clear:       c.Bool("clear"),
				Force:       c.Bool("force"),
				Concurrency: d.cfg.Build.Concurrency,
				Progress: func(r leaderboardservice.LeaderboardReport) {
					if line := formatProgress(r); line != "" {
						fmt.Fprintln(out, line)
					}
				},
			}
			if c.IsSet("concurrency") {
				opts.Concurrency = c.Int("concurrency")
			}

			if opts.DryRun {
				fmt.Fprintln(out, dryRunBanner)
			}

			result, runErr := d.module.LeaderboardService.BuildRunHistory(c.Context, opts)
			if result.Failure != nil {
				fmt.Fprintf(out, "Error: %v\n", *result.Failure)
				return nil
			}
			if result.Success == nil {
				return runErr
			}

			renderBuildSummary(out, *result.Success)
			// Per-leaderboard failures are in the summary; only an interrupted
			// batch is an error.
			return runErr
		},
	}
}

func enqueueRebuild(c *cli.Context, d *deps, out io.Writer) error {
	q, err := d.module.NewQueue(c.Context, false)
	if err != nil {
		return err
	}
	defer q.Close()

	id, err := q.EnqueueRebuild(c.Context, c.String("game"), c.Bool("force"))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued rebuild job %d\n", id)
	return nil
}

// formatProgress renders one leaderboard's outcome as a progress line. Empty
// leaderboards produce no line.
func formatProgress(r leaderboardservice.LeaderboardReport) string {
	prefix := fmt.Sprintf("[%d/%d] [%s]", r.Index, r.Total, r.Label)

	if r.Outcome == leaderboardservice.OutcomeFailed {
		return fmt.Sprintf("%s ERROR in %s: %v", prefix, r.Key.Subcategory, r.Err)
	}
	if r.Runs == 0 {
		return ""
	}

	switch r.Outcome {
	case leaderboardservice.OutcomeSkipped:
		return fmt.Sprintf("%s %s: %d runs, skipped (unchanged)", prefix, r.Key.Subcategory, r.Runs)
	case leaderboardservice.OutcomeUnchanged:
		return fmt.Sprintf("%s %s: %d runs, up to date", prefix, r.Key.Subcategory, r.Runs)
	}

	line := fmt.Sprintf("%s %s: %d runs, %d entries", prefix, r.Key.Subcategory, r.Runs, r.EntriesCreated)
	if r.PointsFixed > 0 {
		line += fmt.Sprintf(", %d points fixed", r.PointsFixed)
	}
	return line
}

func renderBuildSummary(out io.Writer, s leaderboardservice.BuildSummary) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out, "RUN HISTORY COMPLETE")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	if s.Cleared > 0 {
		fmt.Fprintf(out, "Deleted %s entries before rebuilding.\n", humanize.Comma(s.Cleared))
	}

	tbl := tablewriter.NewTable(out)
	tbl.Header("Metric", "Value")
	rows := [][]string{
		{"Leaderboards processed", humanize.Comma(int64(s.Leaderboards))},
		{"Updated", humanize.Comma(int64(s.Updated))},
		{"Unchanged", humanize.Comma(int64(s.Unchanged))},
		{"Skipped", humanize.Comma(int64(s.Skipped))},
		{"Errors", humanize.Comma(int64(s.Errors))},
		{"Total runs", humanize.Comma(int64(s.Runs))},
		{"History entries created", humanize.Comma(int64(s.EntriesCreated))},
		{"History entries closed", humanize.Comma(int64(s.EntriesClosed))},
		{"Runs with points fixed", humanize.Comma(int64(s.PointsFixed))},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Batch", s.BatchID},
	}
	for _, row := range rows {
		_ = tbl.Append(row)
	}
	_ = tbl.Render()

	if s.DryRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, dryRunFooter)
	}
}
