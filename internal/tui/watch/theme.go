// Package watch implements the gitshelf watch TUI: server health plus a live
// table of recent queries from the journal.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI.
type Theme struct {
	// Outcome colors
	OutcomeOK      lipgloss.Style
	OutcomeMissing lipgloss.Style
	OutcomeFailed  lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	// Indicators
	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		OutcomeOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		OutcomeMissing: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		OutcomeFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

type outcomeClass int

const (
	classOK outcomeClass = iota
	classMissing
	classFailed
)

// classifyOutcome groups journal outcomes: results, lookups that found nothing,
// and everything else.
func classifyOutcome(outcome string) outcomeClass {
	switch outcome {
	case "file", "directory":
		return classOK
	case "workspace_not_found", "revision_not_found", "path_not_found", "empty_workspace":
		return classMissing
	default:
		return classFailed
	}
}

// OutcomeStyle colors a journal outcome.
func (t Theme) OutcomeStyle(outcome string) lipgloss.Style {
	switch classifyOutcome(outcome) {
	case classOK:
		return t.OutcomeOK
	case classMissing:
		return t.OutcomeMissing
	default:
		return t.OutcomeFailed
	}
}
