package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks server health from /healthz polling.
type HealthState struct {
	Status               string
	UptimeSeconds        int64
	ActiveQueries        int64
	MaxConcurrentQueries int
	JournalEnabled       bool
	Connected            bool
	LastCheck            time.Time
}

func renderHeader(health HealthState, ticker Ticker, spinner Spinner, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.OutcomeOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.OutcomeFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.OutcomeFailed.Render("DEGRADED")
	}

	uptimeStr := formatDuration(time.Duration(health.UptimeSeconds) * time.Second)

	lastQueryStr := "never"
	if !spinner.LastActivity().IsZero() {
		lastQueryStr = fmt.Sprintf("%s ago", now.Sub(spinner.LastActivity()).Round(time.Second))
	}

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(now.Format("15:04:05"))
	titleText := fmt.Sprintf(" GITSHELF WATCH %s", tickerStr)

	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	journal := "on"
	if !health.JournalEnabled {
		journal = theme.Dim.Render("off")
	}
	statsLine := fmt.Sprintf(" %s  up %s  Active: %d/%d  Journal: %s",
		statusText,
		uptimeStr,
		health.ActiveQueries,
		health.MaxConcurrentQueries,
		journal,
	)

	activityLine := fmt.Sprintf(" Last query: %s %s", lastQueryStr, spinner.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
