package watch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gitshelf/internal/journal"
)

func newTestModel() Model {
	m := *New("http://127.0.0.1:0")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func sampleEntries() []journal.Entry {
	at := time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)
	return []journal.Entry{
		{ID: "q2", Workspace: "docs", Revision: "nope", Outcome: "revision_not_found", DurationMS: 3, CreatedAt: at},
		{ID: "q1", Workspace: "docs", Revision: "v1", Path: "guide/intro.md", Outcome: "file",
			Commit: "0123456789abcdef", DurationMS: 12, CreatedAt: at},
	}
}

func TestModelHealthAndQueries(t *testing.T) {
	m := newTestModel()
	assert.Equal(t, "Initializing gitshelf watch...", m.View())

	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, healthMsg{Status: "ok", UptimeSeconds: 90, ActiveQueries: 1, MaxConcurrentQueries: 16, JournalEnabled: true})
	assert.True(t, m.health.Connected)
	assert.EqualValues(t, 1, m.health.ActiveQueries)

	m = update(t, m, queriesMsg{Queries: sampleEntries()})
	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "revision_not_found", rows[0][1])
	assert.Equal(t, "/", rows[0][6])
	assert.Equal(t, "01234567", rows[1][4])
	assert.Equal(t, "guide/intro.md", rows[1][6])
	assert.True(t, m.spinner.LastActivity().IsZero(), "first load is not new activity")

	view := m.View()
	for _, want := range []string{"GITSHELF WATCH", "HEALTHY", "1m 30s", "Active: 1/16", "RECENT QUERIES", "1 ok", "1 not found"} {
		assert.Contains(t, view, want)
	}
}

func TestModelSpinnerOnNewQueries(t *testing.T) {
	m := newTestModel()
	m = update(t, m, queriesMsg{Queries: sampleEntries()[1:]})
	assert.True(t, m.spinner.LastActivity().IsZero())

	m = update(t, m, queriesMsg{Queries: sampleEntries()})
	assert.Equal(t, m.now(), m.spinner.LastActivity())
	assert.Equal(t, "q2", m.newest)

	later := m.now().Add(11 * time.Second)
	m.spinner.Decay(later)
	assert.NotContains(t, m.spinner.Render(m.theme), "●")
}

func TestModelErrorsAndJournalDisabled(t *testing.T) {
	m := newTestModel()
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = update(t, m, errMsg(errors.New("connection refused")))
	assert.False(t, m.health.Connected)
	assert.Contains(t, m.View(), "connection refused")
	assert.Contains(t, m.View(), "CONNECTING")

	m = update(t, m, journalDisabledMsg{})
	assert.Contains(t, m.View(), "Query journal is disabled")
}

func TestModelQuit(t *testing.T) {
	m := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestQueryColumnsFillWidth(t *testing.T) {
	cols := queryColumns(120)
	total := 0
	for _, c := range cols {
		total += c.Width + 2
	}
	assert.Equal(t, 120, total)
	assert.Equal(t, "Path", cols[len(cols)-1].Title)

	narrow := queryColumns(20)
	assert.Equal(t, 10, narrow[len(narrow)-1].Width)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "3h 1m", formatDuration(3*time.Hour+time.Minute))
}

func TestFetchers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "active_queries": 2, "journal_enabled": true})
	})
	mux.HandleFunc("/queries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{"queries": sampleEntries()})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	h, ok := fetchHealth(ts.URL).(healthMsg)
	require.True(t, ok)
	assert.EqualValues(t, 2, h.ActiveQueries)
	assert.True(t, h.JournalEnabled)

	q, ok := fetchQueries(ts.URL, 5).(queriesMsg)
	require.True(t, ok)
	require.Len(t, q.Queries, 2)
	assert.Equal(t, "q2", q.Queries[0].ID)
}

func TestFetchQueriesJournalDisabled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"query journal is disabled"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	_, ok := fetchQueries(ts.URL, 5).(journalDisabledMsg)
	assert.True(t, ok)

	_, isErr := fetchHealth(ts.URL).(errMsg)
	assert.True(t, isErr)
}

func TestFetchUnreachable(t *testing.T) {
	msg := fetchHealth("http://127.0.0.1:1")
	err, ok := msg.(errMsg)
	require.True(t, ok)
	assert.True(t, strings.Contains(err.Error(), "127.0.0.1:1"))
}
