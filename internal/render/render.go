// Package render prints query results for terminals.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/gitshelf/internal/diff"
	"github.com/mattjoyce/gitshelf/internal/engine"
	"github.com/mattjoyce/gitshelf/internal/query"
)

// Printer renders with colors suited to its writer; plain text when the
// writer is not a terminal.
type Printer struct {
	w      io.Writer
	header lipgloss.Style
	dim    lipgloss.Style
	dir    lipgloss.Style
	added  lipgloss.Style
	remove lipgloss.Style
	failed lipgloss.Style
}

func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		header: r.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1),
		dim:    r.NewStyle().Foreground(lipgloss.Color("#888888")),
		dir:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		added:  r.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		remove: r.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		failed: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
	}
}

// Result prints a header naming the snapshot and then the file contents or
// the directory listing.
func (p *Printer) Result(res *query.Result) error {
	path := "/" + res.Path
	title := fmt.Sprintf("%s@%s:%s", res.Workspace, res.Revision, path)
	sub := p.dim.Render(fmt.Sprintf("%s  %s", res.Kind, shortCommit(res.Commit)))
	if _, err := fmt.Fprintln(p.w, p.header.Render(title+"\n"+sub)); err != nil {
		return err
	}

	if res.IsFile() {
		return p.file(res.Contents)
	}
	return p.listing(res.Entries)
}

func (p *Printer) file(contents []byte) error {
	if !utf8.Valid(contents) {
		_, err := fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("binary file, %d bytes", len(contents))))
		return err
	}
	text := string(contents)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(p.w, text)
	return err
}

// listing indents each entry by depth and highlights entries that have
// children. Empty directories cannot be told apart from files.
func (p *Printer) listing(entries []string) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(p.w, p.dim.Render("(empty directory)"))
		return err
	}

	parents := make(map[string]bool, len(entries))
	for _, e := range entries {
		for i := strings.IndexByte(e, '/'); i >= 0; i = nextSlash(e, i) {
			parents[e[:i]] = true
		}
	}

	for _, e := range entries {
		depth := strings.Count(e, "/")
		name := e[strings.LastIndexByte(e, '/')+1:]
		line := name
		if parents[e] {
			line = p.dir.Render(name + "/")
		}
		if _, err := fmt.Fprintln(p.w, strings.Repeat("  ", depth)+line); err != nil {
			return err
		}
	}
	return nil
}

func nextSlash(s string, i int) int {
	j := strings.IndexByte(s[i+1:], '/')
	if j < 0 {
		return -1
	}
	return i + 1 + j
}

// Diff prints a unified-style diff of one file between two revisions.
func (p *Printer) Diff(res *engine.DiffResult) error {
	title := fmt.Sprintf("%s:/%s  %s..%s", res.Workspace, res.Path, res.From, res.To)
	sub := p.dim.Render(fmt.Sprintf("%s..%s", shortCommit(res.FromCommit), shortCommit(res.ToCommit)))
	if _, err := fmt.Fprintln(p.w, p.header.Render(title+"\n"+sub)); err != nil {
		return err
	}

	switch {
	case !res.Changed:
		_, err := fmt.Fprintln(p.w, p.dim.Render("no changes"))
		return err
	case res.Truncated:
		_, err := fmt.Fprintln(p.w, p.dim.Render("files too large to diff"))
		return err
	}

	for _, l := range res.Lines {
		var line string
		switch l.Type {
		case diff.LineAdded:
			line = p.added.Render("+" + l.Text)
		case diff.LineRemoved:
			line = p.remove.Render("-" + l.Text)
		default:
			line = " " + l.Text
		}
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

// Error prints err with its kind. Internal causes are left out.
func (p *Printer) Error(err error) error {
	var qe *query.Error
	if errors.As(err, &qe) {
		_, werr := fmt.Fprintf(p.w, "%s %s\n", p.failed.Render(string(qe.Kind)), qe.Message())
		return werr
	}
	_, werr := fmt.Fprintf(p.w, "%s %v\n", p.failed.Render("error"), err)
	return werr
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
