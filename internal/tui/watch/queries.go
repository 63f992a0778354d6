package watch

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/gitshelf/internal/journal"
)

func newQueryTable() table.Model {
	t := table.New(
		table.WithColumns(queryColumns(80)),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// queryColumns gives the path column whatever width the fixed columns leave.
func queryColumns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Outcome", Width: 19},
		{Title: "Workspace", Width: 14},
		{Title: "Revision", Width: 12},
		{Title: "Commit", Width: 8},
		{Title: "ms", Width: 6},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	pathWidth := width - used - 2
	if pathWidth < 10 {
		pathWidth = 10
	}
	return append(cols, table.Column{Title: "Path", Width: pathWidth})
}

// queryRows renders entries newest first, as the journal returns them.
// Cells stay unstyled so the table can truncate them by width.
func queryRows(entries []journal.Entry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		commit := e.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		path := e.Path
		if path == "" {
			path = "/"
		}
		rows = append(rows, table.Row{
			e.CreatedAt.Local().Format("15:04:05"),
			e.Outcome,
			e.Workspace,
			e.Revision,
			commit,
			fmt.Sprintf("%d", e.DurationMS),
			path,
		})
	}
	return rows
}

// outcomeSummary counts entries per outcome class for the table title.
func outcomeSummary(entries []journal.Entry, theme Theme) string {
	var ok, missing, failed int
	for _, e := range entries {
		switch classifyOutcome(e.Outcome) {
		case classOK:
			ok++
		case classMissing:
			missing++
		default:
			failed++
		}
	}
	return fmt.Sprintf("%s %s %s",
		theme.OutcomeOK.Render(fmt.Sprintf("%d ok", ok)),
		theme.OutcomeMissing.Render(fmt.Sprintf("%d not found", missing)),
		theme.OutcomeFailed.Render(fmt.Sprintf("%d failed", failed)),
	)
}

func renderQueries(t table.Model, entries []journal.Entry, theme Theme, width int) string {
	title := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.Title.Render("RECENT QUERIES"),
		" ",
		outcomeSummary(entries, theme),
	)

	body := t.View()
	if len(entries) == 0 {
		body = theme.Dim.Render("  Waiting for queries...")
	}
	return theme.Border.Width(width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}
