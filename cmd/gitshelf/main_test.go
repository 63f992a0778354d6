package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gitshelf/internal/doctor"
	"github.com/mattjoyce/gitshelf/internal/gittest"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	stderrR, stderrW, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = stdoutW
	os.Stderr = stderrW

	outCh := make(chan []byte, 1)
	errCh := make(chan []byte, 1)
	go func() { b, _ := io.ReadAll(stdoutR); outCh <- b }()
	go func() { b, _ := io.ReadAll(stderrR); errCh <- b }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout := <-outCh
	stderr := <-errCh
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdout), string(stderr)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

// writeFixture builds a workspaces root holding one repository "docs" and a
// config file pointing at it.
func writeFixture(t *testing.T) (configPath string, first, second string) {
	t.Helper()
	gittest.RequireGit(t)

	base := t.TempDir()
	root := filepath.Join(base, "workspaces")
	repo := gittest.Init(t, filepath.Join(root, "docs"))
	repo.WriteFile("README.md", "hello\n")
	repo.WriteFile("guide/intro.md", "intro v1\n")
	first = repo.Commit("first")
	repo.WriteFile("guide/intro.md", "intro v2\n")
	second = repo.Commit("second")

	configPath = filepath.Join(base, "config.yaml")
	content := "service:\n  log_level: error\n" +
		"workspaces:\n  root: " + root + "\n" +
		"scratch:\n  root: " + filepath.Join(base, "scratch") + "\n" +
		"journal:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, first, second
}

func TestRunVersion(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-01-02T03:04:05.123Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int { return runCLI([]string{"version"}) })
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "gitshelf 1.2.3")
	assert.Contains(t, stdout, "commit: 0123456789ab")
	assert.Contains(t, stdout, "built_at: 2026-01-02T03:04:05Z")

	code, stdout, _ = captureOutputWithExitCode(t, func() int { return runCLI([]string{"version", "--json"}) })
	require.Equal(t, 0, code)
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "0123456789ab", info.Commit)
}

func TestRunVersionRejectsArgs(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return runCLI([]string{"version", "extra"}) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: gitshelf version")
}

func TestRunCLIUnknownAndHelp(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return runCLI([]string{"bogus"}) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: bogus")

	code, stdout, _ := captureOutputWithExitCode(t, func() int { return runCLI([]string{"help"}) })
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "query <name>")

	code, _, _ = captureOutputWithExitCode(t, func() int { return runCLI(nil) })
	assert.Equal(t, 1, code)
}

func TestRunQueryFile(t *testing.T) {
	cfgPath, first, _ := writeFixture(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"query", "docs", "--config", cfgPath, "--path", "guide/intro.md", "--version", first})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "docs@"+first)
	assert.Contains(t, stdout, "intro v1")
}

func TestRunQueryRaw(t *testing.T) {
	cfgPath, _, _ := writeFixture(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"query", "--config", cfgPath, "--raw", "--path=guide/intro.md", "docs"})
	})
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "intro v2\n", stdout)
}

func TestRunQueryDirectory(t *testing.T) {
	cfgPath, _, _ := writeFixture(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"query", "docs", "--config", cfgPath})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "README.md")
	assert.Contains(t, stdout, "guide/intro.md")
}

func TestRunQueryErrors(t *testing.T) {
	cfgPath, _, _ := writeFixture(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing workspace", args: []string{"query", "nope", "--config", cfgPath}, want: "workspace_not_found"},
		{name: "empty name", args: []string{"query", "../..", "--config", cfgPath}, want: "bad_request"},
		{name: "traversal reduced to last element", args: []string{"query", "../etc", "--config", cfgPath}, want: "workspace_not_found"},
		{name: "missing path", args: []string{"query", "docs", "--config", cfgPath, "--path", "absent.md"}, want: "path_not_found"},
		{name: "unknown revision", args: []string{"query", "docs", "--config", cfgPath, "--version", "v9"}, want: "revision_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := captureOutputWithExitCode(t, func() int { return runCLI(tt.args) })
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRunQueryUsage(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return runCLI([]string{"query"}) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: gitshelf query")
}

func TestRunDiff(t *testing.T) {
	cfgPath, first, second := writeFixture(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"diff", "docs", "--config", cfgPath, "--from", first, "--to", second, "--path", "guide/intro.md"})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "-intro v1")
	assert.Contains(t, stdout, "+intro v2")

	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"diff", "docs", "--config", cfgPath})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: gitshelf diff")
}

func TestRunConfigGet(t *testing.T) {
	cfgPath, _, _ := writeFixture(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "get", "api.listen", "--config", cfgPath})
	})
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "127.0.0.1:3030\n", stdout)

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "get", "--config", cfgPath, "scratch"})
	})
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "max_age:")

	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "get", "api.nope", "--config", cfgPath})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestRunConfigCheckJSON(t *testing.T) {
	cfgPath, _, _ := writeFixture(t)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", cfgPath, "--json"})
	})
	var result doctor.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result), stdout)
	assert.Equal(t, result.Valid, code == 0)
}

func TestRunConfigCheckLoadError(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--json"})
	})
	assert.Equal(t, 1, code)
	var result doctor.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "config", result.Errors[0].Category)
}

func TestRunScratchSweep(t *testing.T) {
	cfgPath, _, _ := writeFixture(t)
	scratchRoot := filepath.Join(filepath.Dir(cfgPath), "scratch")

	stale := filepath.Join(scratchRoot, "0b6f5c3e-4a8f-4f7a-9f25-3d3c1b0c9a11")
	fresh := filepath.Join(scratchRoot, "6a1f0d2b-9e2c-4c55-8a7d-2b8e4f1c7d30")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"scratch", "sweep", "--config", cfgPath})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "removed 1 scratch directories")
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
}

func TestSplitFlagsAndPositionals(t *testing.T) {
	flags, positionals := splitFlagsAndPositionals(
		[]string{"docs", "--path", "a.md", "--raw", "--version=v1"},
		map[string]bool{"path": true, "version": true},
	)
	assert.Equal(t, []string{"--path", "a.md", "--raw", "--version=v1"}, flags)
	assert.Equal(t, []string{"docs"}, positionals)
}

func TestNormalizeBuildTimeUTC(t *testing.T) {
	got, ok := normalizeBuildTimeUTC("2026-03-01T10:00:00+02:00")
	require.True(t, ok)
	assert.Equal(t, "2026-03-01T08:00:00Z", got)

	_, ok = normalizeBuildTimeUTC("unknown")
	assert.False(t, ok)
}
