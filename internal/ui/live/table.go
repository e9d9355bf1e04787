package live

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"llmlab/internal/client"
)

// defaultColumns lays out the per-position prediction table.
func defaultColumns() []table.Column {
	return []table.Column{
		{Title: "Pos", Width: 4},
		{Title: "Input", Width: 8},
		{Title: "Target", Width: 8},
		{Title: "Top-1", Width: 16},
		{Title: "Top-2", Width: 16},
		{Title: "Top-3", Width: 16},
	}
}

// tableStyles returns table styles, flattened when color is off.
func tableStyles(noColor bool) table.Styles {
	styles := table.DefaultStyles()
	if noColor {
		return styles
	}
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// rowsForFrame converts the visible frame's token summaries into rows.
func rowsForFrame(state client.ViewState) []table.Row {
	frame, ok := client.CurrentFrame(state)
	if !ok {
		return nil
	}
	rows := make([]table.Row, 0, len(frame.TokenSummaries))
	for _, summary := range frame.TokenSummaries {
		row := table.Row{
			fmtInt(summary.Position),
			displayToken(summary.InputToken),
			displayToken(summary.TargetToken),
		}
		for k := 0; k < 3; k++ {
			if k < len(summary.TopK) {
				entry := summary.TopK[k]
				row = append(row, displayToken(entry.Token)+" "+fmtProb(entry.Prob))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return rows
}
