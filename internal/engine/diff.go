package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mattjoyce/gitshelf/internal/diff"
	"github.com/mattjoyce/gitshelf/internal/query"
)

// DiffRequest compares one file between two revisions of a workspace.
type DiffRequest struct {
	Workspace string
	From      string
	To        string
	Path      string
	// MaxLines bounds the combined size of both versions; 0 uses
	// diff.MaxLines.
	MaxLines int
}

// DiffResult is the line diff of a file between two commits.
type DiffResult struct {
	Workspace  string      `json:"workspace"`
	Path       string      `json:"path"`
	From       string      `json:"from"`
	To         string      `json:"to"`
	FromCommit string      `json:"from_commit"`
	ToCommit   string      `json:"to_commit"`
	Changed    bool        `json:"changed"`
	Truncated  bool        `json:"truncated"`
	Lines      []diff.Line `json:"lines,omitempty"`
}

var errNotText = errors.New("file is not valid UTF-8 text")

// Diff runs one query per revision and diffs the two file results. Both
// sides must be text files.
func (e *Engine) Diff(ctx context.Context, req DiffRequest) (*DiffResult, error) {
	before, err := e.Query(ctx, Request{Workspace: req.Workspace, Revision: req.From, Path: req.Path})
	if err != nil {
		return nil, err
	}
	after, err := e.Query(ctx, Request{Workspace: req.Workspace, Revision: req.To, Path: req.Path})
	if err != nil {
		return nil, err
	}

	for _, side := range []*query.Result{before, after} {
		if !side.IsFile() {
			return nil, &query.Error{
				Kind:      query.KindBadRequest,
				Workspace: side.Workspace,
				Revision:  side.Revision,
				Path:      side.Path,
				Err:       fmt.Errorf("%q is a directory at revision %q", side.Path, side.Revision),
			}
		}
		if !utf8.Valid(side.Contents) {
			return nil, &query.Error{
				Kind:      query.KindBadRequest,
				Workspace: side.Workspace,
				Revision:  side.Revision,
				Path:      side.Path,
				Err:       errNotText,
			}
		}
	}

	lines, truncated := diff.Lines(string(before.Contents), string(after.Contents), req.MaxLines)
	changed := diff.Changed(lines)
	if truncated {
		changed = !bytes.Equal(before.Contents, after.Contents)
	}
	return &DiffResult{
		Workspace:  after.Workspace,
		Path:       after.Path,
		From:       before.Revision,
		To:         after.Revision,
		FromCommit: before.Commit,
		ToCommit:   after.Commit,
		Changed:    changed,
		Truncated:  truncated,
		Lines:      lines,
	}, nil
}
