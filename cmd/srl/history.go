package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"github.com/xuri/excelize/v2"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatPNG   = "png"
	formatXLSX  = "xlsx"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show a run's points history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "run ID", Required: true},
			&cli.StringFlag{Name: "format", Value: formatTable, Usage: "table, json, png or xlsx"},
			&cli.StringFlag{Name: "out", Usage: "output file (required for png and xlsx)"},
		},
		Action: func(c *cli.Context) error {
			format := strings.ToLower(c.String("format"))
			switch format {
			case formatTable, formatJSON:
			case formatPNG, formatXLSX:
				if c.String("out") == "" {
					return fmt.Errorf("--out is required for %s output", format)
				}
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			d, err := setupModule(c)
			if err != nil {
				return err
			}
			defer d.Close()

			svc := d.module.LeaderboardService
			runID := c.String("run")

			var buf bytes.Buffer
			if format == formatPNG {
				png, err := svc.RunHistoryChart(c.Context, runID)
				if err != nil {
					return err
				}
				buf.Write(png)
			} else {
				result, err := svc.GetRunHistory(c.Context, runID)
				if err != nil {
					return err
				}
				if result.Failure != nil {
					return *result.Failure
				}
				if err := writeRunHistory(&buf, *result.Success, format); err != nil {
					return err
				}
			}

			return writeOutput(c.App.Writer, c.String("out"), buf.Bytes())
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export a game's run history as an XLSX workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "game ID or slug", Required: true},
			&cli.StringFlag{Name: "out", Usage: "output file", Required: true},
		},
		Action: func(c *cli.Context) error {
			d, err := setupModule(c)
			if err != nil {
				return err
			}
			defer d.Close()

			var buf bytes.Buffer
			if err := d.module.LeaderboardService.ExportGameHistory(c.Context, c.String("game"), &buf); err != nil {
				return err
			}
			if err := writeOutput(c.App.Writer, c.String("out"), buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s to %s\n", humanize.Bytes(uint64(buf.Len())), c.String("out"))
			return nil
		},
	}
}

func writeRunHistory(w io.Writer, view leaderboardservice.RunHistoryView, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case formatXLSX:
		return writeRunWorkbook(w, view)
	default:
		return renderHistoryTable(w, view)
	}
}

func renderHistoryTable(w io.Writer, view leaderboardservice.RunHistoryView) error {
	fmt.Fprintf(w, "[%s] %s %s by %s: %d points", view.Label, view.Subcategory,
		leaderboarddomain.FormatTime(view.Time), strings.Join(view.Players, ", "), view.Points)
	if view.Bonus > 0 {
		fmt.Fprintf(w, " (%d month streak)", view.Bonus)
	}
	fmt.Fprintln(w)

	tbl := tablewriter.NewTable(w)
	tbl.Header("#", "Start", "End", "Held", "Reason", "Points")
	for i, e := range view.Entries {
		end, held := "open", ""
		if e.EndDate != nil {
			end = e.EndDate.Format(dateLayout)
			held = humanize.RelTime(e.StartDate, *e.EndDate, "", "")
		}
		if err := tbl.Append([]string{
			fmt.Sprint(i + 1),
			e.StartDate.Format(dateLayout),
			end,
			strings.TrimSpace(held),
			e.EndReason,
			fmt.Sprint(e.Points),
		}); err != nil {
			return err
		}
	}
	return tbl.Render()
}

// writeRunWorkbook writes a one-sheet workbook of a run's entries.
func writeRunWorkbook(w io.Writer, view leaderboardservice.RunHistoryView) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	rows := [][]any{{"Start", "End", "End reason", "Points"}}
	for _, e := range view.Entries {
		var end any
		if e.EndDate != nil {
			end = *e.EndDate
		}
		rows = append(rows, []any{e.StartDate, end, e.EndReason, e.Points})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetSheetName(sheet, "History"); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
