package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gitshelf/internal/diff"
	"github.com/mattjoyce/gitshelf/internal/engine"
	"github.com/mattjoyce/gitshelf/internal/query"
)

func TestResultFile(t *testing.T) {
	var buf bytes.Buffer
	res := query.NewFile("guide/intro.md", []byte("# Intro"))
	res.Workspace, res.Revision, res.Commit = "docs", "v1", "0123456789abcdef0123"

	require.NoError(t, New(&buf).Result(res))
	out := buf.String()
	assert.Contains(t, out, "docs@v1:/guide/intro.md")
	assert.Contains(t, out, "file  0123456789ab")
	assert.NotContains(t, out, "\x1b[", "plain output for non-terminals")
	assert.True(t, strings.HasSuffix(out, "# Intro\n"))
}

func TestResultBinaryFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Result(query.NewFile("logo.png", []byte{0xff, 0xfe, 0x00})))
	assert.Contains(t, buf.String(), "binary file, 3 bytes")
}

func TestResultDirectory(t *testing.T) {
	var buf bytes.Buffer
	res := query.NewDirectory("", []string{"guide", "guide/intro.md", "guide/setup.md", "hello.txt"})
	res.Workspace, res.Revision = "docs", "main"

	require.NoError(t, New(&buf).Result(res))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{"guide/", "  intro.md", "  setup.md", "hello.txt"}, lines[len(lines)-4:])
	assert.Contains(t, buf.String(), "docs@main:/")
}

func TestResultEmptyDirectory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Result(query.NewDirectory("empty", nil)))
	assert.Contains(t, buf.String(), "(empty directory)")
}

func TestDiff(t *testing.T) {
	var buf bytes.Buffer
	res := &engine.DiffResult{
		Workspace: "docs", Path: "a.txt", From: "v1", To: "main", Changed: true,
		Lines: []diff.Line{
			{Type: diff.LineContext, Text: "same"},
			{Type: diff.LineRemoved, Text: "old"},
			{Type: diff.LineAdded, Text: "new"},
		},
	}
	require.NoError(t, New(&buf).Diff(res))
	out := buf.String()
	assert.Contains(t, out, "docs:/a.txt  v1..main")
	assert.Contains(t, out, " same\n-old\n+new\n")

	buf.Reset()
	require.NoError(t, New(&buf).Diff(&engine.DiffResult{Workspace: "docs", Path: "a.txt"}))
	assert.Contains(t, buf.String(), "no changes")

	buf.Reset()
	require.NoError(t, New(&buf).Diff(&engine.DiffResult{Changed: true, Truncated: true}))
	assert.Contains(t, buf.String(), "too large to diff")
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	require.NoError(t, p.Error(&query.Error{Kind: query.KindRevisionNotFound, Workspace: "docs", Revision: "v9"}))
	assert.Equal(t, "revision_not_found revision \"v9\" does not exist in workspace \"docs\"\n", buf.String())

	buf.Reset()
	require.NoError(t, p.Error(&query.Error{Kind: query.KindInternal, Workspace: "docs", Err: errors.New("disk on fire")}))
	assert.NotContains(t, buf.String(), "disk on fire")

	buf.Reset()
	require.NoError(t, p.Error(errors.New("plain")))
	assert.Equal(t, "error plain\n", buf.String())
}
