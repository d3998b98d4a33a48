package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/urfave/cli/v2"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
)

const dateLayout = "2006-01-02"

func buildStreaksCommand() *cli.Command {
	return &cli.Command{
		Name:  "build-streaks",
		Usage: "award monthly world record streak bonuses",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "limit to one game ID or slug"},
			&cli.StringFlag{Name: "date", Usage: "check date as YYYY-MM-DD or plain English (\"last friday\")"},
			&cli.BoolFlag{Name: "dry-run", Usage: "calculate but don't save changes"},
			&cli.BoolFlag{Name: "verbose", Usage: "show runs that are already up to date"},
			&cli.BoolFlag{Name: "all", Usage: "check every world record regardless of anniversary"},
			&cli.BoolFlag{Name: "enqueue", Usage: "queue the check for the worker instead of running it here"},
		},
		Action: func(c *cli.Context) error {
			out := c.App.Writer

			checkDate, err := parseCheckDate(c.String("date"), time.Now().UTC())
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return nil
			}

			d, err := setupModule(c)
			if err != nil {
				return err
			}
			defer d.Close()

			if c.Bool("enqueue") {
				q, err := d.module.NewQueue(c.Context, false)
				if err != nil {
					return err
				}
				defer q.Close()

				id, err := q.EnqueueStreakCheck(c.Context, c.String("game"))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued streak check job %d\n", id)
				return nil
			}

			opts := leaderboardservice.StreakOptions{
				GameID:  c.String("game"),
				Date:    checkDate,
				DryRun:  c.Bool("dry-run"),
				Verbose: c.Bool("verbose"),
				All:     c.Bool("all"),
			}
			if opts.DryRun {
				fmt.Fprintln(out, dryRunBanner)
			}

			result, err := d.module.LeaderboardService.BuildStreaks(c.Context, opts)
			if err != nil {
				return err
			}
			if result.Failure != nil {
				fmt.Fprintf(out, "Error: %v\n", *result.Failure)
				return nil
			}

			renderStreakSummary(out, *result.Success, opts.Verbose)
			return nil
		},
	}
}

// parseCheckDate accepts YYYY-MM-DD or a natural-language date relative to
// now. An empty input returns the zero time, which means today.
func parseCheckDate(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if d, err := time.Parse(dateLayout, input); err == nil {
		return d, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(input, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s. Use YYYY-MM-DD", input)
	}

	t := r.Time.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func renderStreakSummary(out io.Writer, s leaderboardservice.StreakSummary, verbose bool) {
	day := s.CheckDate.Format(dateLayout)
	if s.All {
		fmt.Fprintf(out, "Checking ALL WR streaks as of %s...\n\n", day)
	} else {
		fmt.Fprintf(out, "Checking streak anniversaries for %s...\n\n", day)
	}

	if verbose {
		for _, a := range s.Unchanged {
			fmt.Fprintf(out, "  [%s] %s: %s - already at %d months (no change)\n", a.Label, a.Subcategory, a.RunID, a.OldBonus)
		}
	}
	for _, a := range s.Awards {
		fmt.Fprintln(out, formatAward(a))
	}

	fmt.Fprintln(out)
	if s.All {
		fmt.Fprintf(out, "Summary: %d WRs checked, %d updated\n", s.Checked, s.Awarded)
	} else {
		fmt.Fprintf(out, "Summary: %d anniversaries found, %d awarded\n", s.Checked, s.Awarded)
	}

	if s.DryRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, dryRunFooter)
	}
}

func formatAward(a leaderboardservice.StreakAward) string {
	return fmt.Sprintf("[%s] %s: %s (%s) -> streak started %s, %d month(s) (%d + %d bonus = %d points)",
		a.Label, a.Subcategory, a.RunID, strings.Join(a.Players, ", "),
		a.StreakStart.Format(dateLayout), a.NewBonus,
		a.MaxPoints, a.BonusPoints, a.NewPoints)
}
