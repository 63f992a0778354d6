// Package doctor validates gitshelf configuration and the host it runs on.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/gitshelf/internal/config"
	"github.com/mattjoyce/gitshelf/internal/storage"
	"github.com/mattjoyce/gitshelf/internal/workspace"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the local environment.
type Doctor struct {
	cfg        *config.Config
	lookPath   func(string) (string, error)
	checkLocal func(string) error
	checkLock  func(string) error
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:        cfg,
		lookPath:   exec.LookPath,
		checkLocal: storage.ValidateLocalFilesystem,
		checkLock:  storage.ValidateLockDir,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validateGitBinary(r)
	d.validateWorkspacesRoot(r)
	d.validateScratchRoot(r)
	d.validateJournal(r)
	d.warnExposedListener(r)
	d.warnUnboundedQueries(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateConfig(r *Result) {
	if err := config.Validate(d.cfg); err != nil {
		d.addError(r, "config", "", err.Error())
	}
}

func (d *Doctor) validateGitBinary(r *Result) {
	binary := d.cfg.Workspaces.GitBinary
	if binary == "" {
		binary = "git"
	}
	if _, err := d.lookPath(binary); err != nil {
		d.addError(r, "git", "workspaces.git_binary",
			fmt.Sprintf("git executable %q not found: %v", binary, err))
	}
}

// validateWorkspacesRoot checks the root exists and warns about entries that
// do not look like repositories.
func (d *Doctor) validateWorkspacesRoot(r *Result) {
	root := d.cfg.Workspaces.Root
	if root == "" {
		return
	}
	info, err := os.Stat(root)
	if err != nil {
		d.addError(r, "workspaces", "workspaces.root", fmt.Sprintf("cannot stat %s: %v", root, err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "workspaces", "workspaces.root", fmt.Sprintf("%s is not a directory", root))
		return
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		d.addError(r, "workspaces", "workspaces.root", fmt.Sprintf("cannot list %s: %v", root, err))
		return
	}
	repos := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := workspace.SanitizeName(e.Name()); err != nil {
			d.addWarning(r, "workspaces", "workspaces.root",
				fmt.Sprintf("directory %q cannot be addressed as a workspace name", e.Name()))
			continue
		}
		if !looksLikeRepository(filepath.Join(root, e.Name())) {
			d.addWarning(r, "workspaces", "workspaces.root",
				fmt.Sprintf("directory %q is not a git repository", e.Name()))
			continue
		}
		repos++
	}
	if repos == 0 {
		d.addWarning(r, "workspaces", "workspaces.root", fmt.Sprintf("no repositories found under %s", root))
	}
}

// looksLikeRepository accepts a worktree with .git or a bare repository.
func looksLikeRepository(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	_, headErr := os.Stat(filepath.Join(dir, "HEAD"))
	objects, objErr := os.Stat(filepath.Join(dir, "objects"))
	return headErr == nil && objErr == nil && objects.IsDir()
}

func (d *Doctor) validateScratchRoot(r *Result) {
	root := d.cfg.Scratch.Root
	if root == "" {
		return
	}
	if err := d.checkLock(root); err != nil {
		d.addError(r, "scratch", "scratch.root", err.Error())
		return
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		d.addError(r, "scratch", "scratch.root", fmt.Sprintf("cannot create %s: %v", root, err))
		return
	}
	f, err := os.CreateTemp(root, ".doctor-*")
	if err != nil {
		d.addError(r, "scratch", "scratch.root", fmt.Sprintf("%s is not writable: %v", root, err))
		return
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	if workspace.Within(d.cfg.Workspaces.Root, root) {
		d.addWarning(r, "scratch", "scratch.root", "scratch.root is inside workspaces.root")
	}
}

func (d *Doctor) validateJournal(r *Result) {
	if !d.cfg.Journal.Enabled {
		return
	}
	if err := d.checkLocal(d.cfg.Journal.Path); err != nil {
		d.addError(r, "journal", "journal.path", err.Error())
	}
}

// warnExposedListener flags a listener reachable from other hosts; the API
// has no authentication.
func (d *Doctor) warnExposedListener(r *Result) {
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		return
	}
	if host == "localhost" {
		return
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return
	}
	d.addWarning(r, "api", "api.listen",
		fmt.Sprintf("API listens on %q without authentication", d.cfg.API.Listen))
}

func (d *Doctor) warnUnboundedQueries(r *Result) {
	if d.cfg.Query.MaxFileBytes == 0 {
		d.addWarning(r, "query", "query.max_file_bytes", "file size is unlimited")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
