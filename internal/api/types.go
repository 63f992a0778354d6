package api

import (
	"github.com/mattjoyce/gitshelf/internal/journal"
)

// ResultHeader is shared by file and directory responses.
type ResultHeader struct {
	Kind      string `json:"kind"`
	Workspace string `json:"workspace"`
	Revision  string `json:"revision"`
	Commit    string `json:"commit"`
	Path      string `json:"path"`
}

// FileResponse is returned by GET /workspaces/{name} for a file.
type FileResponse struct {
	ResultHeader
	Size int `json:"size"`
	// Contents is base64 encoded by encoding/json.
	Contents []byte `json:"contents"`
	// Text repeats Contents when it is valid UTF-8.
	Text   *string `json:"text,omitempty"`
	BLAKE3 string  `json:"blake3"`
}

// DirectoryResponse is returned by GET /workspaces/{name} for a directory.
type DirectoryResponse struct {
	ResultHeader
	Entries []string `json:"entries"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Workspace string `json:"workspace,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Path      string `json:"path,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status               string `json:"status"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
	ActiveQueries        int64  `json:"active_queries"`
	MaxConcurrentQueries int    `json:"max_concurrent_queries"`
	JournalEnabled       bool   `json:"journal_enabled"`
}

// QueriesResponse is returned by GET /queries.
type QueriesResponse struct {
	Queries []journal.Entry `json:"queries"`
}
