package leaderboardservice

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// RunHistoryChart renders the points-over-time chart for one run.
func (s *LeaderboardService) RunHistoryChart(ctx context.Context, runID string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "RunHistoryChart")
	defer span.End()

	view, err := s.loadRunHistory(ctx, runID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return GenerateRunHistoryChart(view, DefaultChartPalette, s.now())
}

// GenerateRunHistoryChart produces a PNG step chart of a run's point value.
// Open intervals extend to now.
func GenerateRunHistoryChart(view RunHistoryView, palette ChartPalette, now time.Time) ([]byte, error) {
	if len(view.Entries) == 0 {
		return renderNoDataPlaceholder(palette)
	}

	// Two points per interval draw the value as a flat step.
	var (
		xValues []time.Time
		yValues []float64
		top     int
	)
	for _, e := range view.Entries {
		end := now
		if e.EndDate != nil {
			end = *e.EndDate
		}
		if !end.After(e.StartDate) {
			end = e.StartDate.Add(time.Hour)
		}
		xValues = append(xValues, e.StartDate, end)
		yValues = append(yValues, float64(e.Points), float64(e.Points))
		top = max(top, e.Points)
	}

	mainSeries := chart.TimeSeries{
		Name:    "Points",
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: palette.PrimaryLine,
			StrokeWidth: 2,
			DotWidth:    3,
			DotColor:    palette.AccentLine,
		},
	}

	title := fmt.Sprintf("[%s] %s %s", view.Label, view.Subcategory, leaderboarddomain.FormatTime(view.Time))
	graph := chart.Chart{
		Title:  title,
		Width:  800,
		Height: 400,
		TitleStyle: chart.Style{
			FontColor: palette.TextColor,
		},
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Style: chart.Style{
				FontColor: palette.TextColor,
			},
		},
		// A fixed range keeps a single flat interval drawable.
		YAxis: chart.YAxis{
			Name:  "Points",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(top)*1.1 + 1},
			Style: chart.Style{
				FontColor: palette.TextColor,
			},
		},
		Series: []chart.Series{mainSeries},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func renderNoDataPlaceholder(palette ChartPalette) ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "No run history found"
	)

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.XAxis{Style: chart.Style{Hidden: true}},
		YAxis: chart.YAxis{Style: chart.Style{Hidden: true}},
		// Render refuses a chart without a visible series, so this one is
		// drawn in a transparent color.
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style:   chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1},
				XValues: []float64{0, 1},
				YValues: []float64{0, 1},
			},
		},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, chartDefaults chart.Style) {
				r.SetFontColor(palette.TextColor)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
