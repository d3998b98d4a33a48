package leaderboardservice

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRunHistoryChart(t *testing.T) {
	now := day(20)
	tests := []struct {
		name    string
		entries []HistoryEntryView
	}{
		{name: "no history", entries: nil},
		{
			name:    "single open interval",
			entries: []HistoryEntryView{{ID: 1, StartDate: day(1), Points: 1000}},
		},
		{
			name: "interval opened right now",
			entries: []HistoryEntryView{{ID: 1, StartDate: now, Points: 750}},
		},
		{
			name: "record lost then recalculated",
			entries: []HistoryEntryView{
				{ID: 1, StartDate: day(1), EndDate: ptr(day(5)), EndReason: "lost_wr", Points: 1000},
				{ID: 2, StartDate: day(5), EndDate: ptr(day(9)), EndReason: "recalculation", Points: 640},
				{ID: 3, StartDate: day(9), Points: 512},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := RunHistoryView{RunID: "R1", Label: "THPS1", Subcategory: "Any%", Time: 95.2, Entries: tt.entries}
			png, err := GenerateRunHistoryChart(view, DefaultChartPalette, now)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
		})
	}
}

func TestGenerateRunHistoryChart_Deterministic(t *testing.T) {
	view := RunHistoryView{
		RunID:   "R1",
		Entries: []HistoryEntryView{{ID: 1, StartDate: day(1), Points: 1000}},
	}
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	a, err := GenerateRunHistoryChart(view, DefaultChartPalette, now)
	require.NoError(t, err)
	b, err := GenerateRunHistoryChart(view, DefaultChartPalette, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderNoDataPlaceholder(t *testing.T) {
	palettes := map[string]ChartPalette{
		"default": DefaultChartPalette,
		"zero":    {},
	}
	for name, palette := range palettes {
		t.Run(name, func(t *testing.T) {
			png, err := renderNoDataPlaceholder(palette)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
		})
	}
}
