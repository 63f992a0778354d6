package watch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/gitshelf/internal/journal"
)

// --- Message types ---

type healthMsg struct {
	Status               string `json:"status"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
	ActiveQueries        int64  `json:"active_queries"`
	MaxConcurrentQueries int    `json:"max_concurrent_queries"`
	JournalEnabled       bool   `json:"journal_enabled"`
}

type queriesMsg struct {
	Queries []journal.Entry `json:"queries"`
}

type tickMsg time.Time

type errMsg error

// journalDisabledMsg is sent when the server answers /queries with 404.
type journalDisabledMsg struct{}

var httpClient = &http.Client{Timeout: 2 * time.Second}

// --- Commands ---

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL string) tea.Msg {
	resp, err := httpClient.Get(apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errMsg(fmt.Errorf("healthz: %s", resp.Status))
	}

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchQueries lists the most recent journal entries.
func fetchQueries(apiURL string, limit int) tea.Msg {
	resp, err := httpClient.Get(apiURL + "/queries?limit=" + strconv.Itoa(limit))
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return journalDisabledMsg{}
	default:
		return errMsg(fmt.Errorf("queries: %s", resp.Status))
	}

	var q queriesMsg
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return errMsg(err)
	}
	return q
}
