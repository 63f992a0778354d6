package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/gitshelf/internal/journal"
)

const (
	queryLimit   = 50
	pollInterval = 2 * time.Second
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string

	width  int
	height int

	health  HealthState
	queries []journal.Entry
	newest  string
	table   table.Model

	ticker  Ticker
	spinner Spinner
	theme   Theme
	now     func() time.Time

	journalDisabled bool
	lastError       string
}

// New creates a new watch TUI model.
func New(apiURL string) *Model {
	return &Model{
		apiURL: apiURL,
		table:  newQueryTable(),
		ticker: NewTicker(),
		theme:  NewDefaultTheme(),
		now:    time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return fetchHealth(m.apiURL) },
		func() tea.Msg { return fetchQueries(m.apiURL, queryLimit) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(queryColumns(m.width - 8))
		m.table.SetWidth(m.width - 8)
		if h := m.height - 16; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay(m.now())
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case healthMsg:
		m.health = HealthState{
			Status:               msg.Status,
			UptimeSeconds:        msg.UptimeSeconds,
			ActiveQueries:        msg.ActiveQueries,
			MaxConcurrentQueries: msg.MaxConcurrentQueries,
			JournalEnabled:       msg.JournalEnabled,
			Connected:            true,
			LastCheck:            m.now(),
		}
		m.lastError = ""
		return m, tea.Tick(pollInterval, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case queriesMsg:
		m.queries = msg.Queries
		if len(m.queries) > 0 && m.queries[0].ID != m.newest {
			if m.newest != "" {
				m.spinner.OnActivity(m.now())
			}
			m.newest = m.queries[0].ID
		}
		m.table.SetRows(queryRows(m.queries))
		return m, tea.Tick(pollInterval, func(t time.Time) tea.Msg {
			return fetchQueries(m.apiURL, queryLimit)
		})

	case journalDisabledMsg:
		m.journalDisabled = true
		return m, nil

	case errMsg:
		m.health.Connected = false
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing gitshelf watch..."
	}

	parts := []string{renderHeader(m.health, m.ticker, m.spinner, m.theme, m.width, m.now())}

	if m.journalDisabled {
		parts = append(parts, m.theme.Border.Width(m.width-4).Render(
			m.theme.Dim.Render(" Query journal is disabled on this server."),
		))
	} else {
		parts = append(parts, renderQueries(m.table, m.queries, m.theme, m.width))
		if detail := m.selectedDetail(); detail != "" {
			parts = append(parts, detail)
		}
	}

	if m.lastError != "" {
		parts = append(parts, m.theme.OutcomeFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Navigate Queries")
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// selectedDetail shows the full, untruncated fields of the highlighted row.
func (m Model) selectedDetail() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.queries) {
		return ""
	}
	e := m.queries[i]
	commit := e.Commit
	if commit == "" {
		commit = "-"
	}
	return fmt.Sprintf(" %s %s@%s:/%s %s",
		m.theme.OutcomeStyle(e.Outcome).Render(e.Outcome),
		e.Workspace, e.Revision, e.Path,
		m.theme.Dim.Render(commit),
	)
}
