// Package journal records the outcome of every workspace query in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded query. Outcome is the result kind ("file",
// "directory") or the error kind the query failed with.
type Entry struct {
	ID         string    `json:"id"`
	Workspace  string    `json:"workspace"`
	Revision   string    `json:"revision"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	Commit     string    `json:"commit,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record appends e and returns its generated id.
func (j *Journal) Record(ctx context.Context, e Entry) (string, error) {
	if e.Outcome == "" {
		return "", fmt.Errorf("outcome is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}

	var commit any
	if e.Commit != "" {
		commit = e.Commit
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO query_journal(id, workspace, revision, path, outcome, commit_id, duration_ms, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.Workspace, e.Revision, e.Path, e.Outcome, commit, e.DurationMS, e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert journal entry: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to limit entries, newest first. Out-of-range limits are
// clamped to [1, MaxLimit], with 0 meaning DefaultLimit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, workspace, revision, path, outcome, commit_id, duration_ms, created_at
FROM query_journal
ORDER BY created_at DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			commit    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Workspace, &e.Revision, &e.Path, &e.Outcome, &commit, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Commit = commit.String
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than retention. A zero retention keeps
// everything.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-retention).UTC().Format(timeLayout)

	res, err := j.db.ExecContext(ctx, `DELETE FROM query_journal WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return n, nil
}
