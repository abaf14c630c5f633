package executor

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	conclusionColors = map[Conclusion]lipgloss.Color{
		ConclusionSuccess:   lipgloss.Color("42"),
		ConclusionFailure:   lipgloss.Color("196"),
		ConclusionSkipped:   lipgloss.Color("245"),
		ConclusionCancelled: lipgloss.Color("214"),
	}
)

// RenderSummary writes a table of step conclusions.
func RenderSummary(w io.Writer, res *Result) error {
	rows := make([][]string, 0, len(res.Steps))
	for _, s := range res.Steps {
		duration := "-"
		if s.Conclusion == ConclusionSuccess || s.Conclusion == ConclusionFailure {
			duration = s.Duration.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{s.Name, s.Runner, string(s.Conclusion), duration})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STEP", "RUNNER", "CONCLUSION", "DURATION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(rows) {
				return cellStyle.Foreground(conclusionColors[Conclusion(rows[row][2])])
			}
			return cellStyle
		})

	_, err := fmt.Fprintf(w, "%s (%s): %s\n%s\n", res.Workflow, res.RunID, res.Conclusion(), t.Render())
	return err
}
