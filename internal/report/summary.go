package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/MrWong99/takesplit/internal/align"
)

// Summary renders a table of alignment outcomes and lookup activity to w.
// runID, when non-empty, is shown as the table title.
func Summary(w io.Writer, runID string, clips []Clip, stats align.Stats, d Diagnostics) error {
	var matched, retakes int
	lines := make(map[string]bool)
	for _, c := range clips {
		if c.Assignment.Kind != align.KindMatch {
			continue
		}
		matched++
		if c.Assignment.Take > 1 {
			retakes++
		}
		lines[c.Assignment.LineID] = true
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if runID != "" {
		tw.SetTitle("run " + runID)
	}
	tw.AppendHeader(table.Row{"Outcome", "Count"})
	tw.AppendRows([]table.Row{
		{"clips", len(clips)},
		{"matched", matched},
		{"  distinct ids", len(lines)},
		{"  retakes", retakes},
		{align.KindUnknown.String(), stats.Unknown},
		{align.KindUnidentified.String(), stats.Unidentified},
		{"unfound ids", len(d.Unfound)},
		{"filtered lines", len(d.Filtered)},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"next-line matches", stats.NextLineHits},
		{"multi-segment folds", stats.Folds},
		{"backtrack steps", stats.Backtracks},
		{"forwardtrack steps", stats.Forwardtracks},
		{"script wraps", stats.Wraps},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}
