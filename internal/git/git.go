// Package git provides read-only access to workspace repositories through
// the git CLI. Every command targets one repository directory via "-C" and
// runs with repository discovery fenced at that directory, so a missing
// repository is never silently replaced by an enclosing one.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrRepositoryNotFound means no repository exists at the directory or it
	// cannot be opened.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrEmptyRepository means the repository has no commits yet.
	ErrEmptyRepository = errors.New("repository has no commits")

	// ErrRevisionNotFound means the revision matches neither a reference nor a
	// unique commit id prefix.
	ErrRevisionNotFound = errors.New("revision not found")
)

// Options configure how the git binary is invoked.
type Options struct {
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string
	// TrustAll passes safe.directory=* so repositories owned by another user
	// can be read.
	TrustAll bool
}

// Repository is an opened workspace repository. It holds no process or file
// descriptor between calls, so dropping it releases nothing.
type Repository struct {
	dir  string
	opts Options
	env  []string
}

// Open verifies that dir holds a git repository (bare or with a worktree)
// and returns a handle for it.
func Open(ctx context.Context, dir string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, abs)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrRepositoryNotFound, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRepositoryNotFound, abs)
	}

	repo := &Repository{
		dir:  abs,
		opts: opts,
		env:  commandEnv(filepath.Dir(abs)),
	}

	if _, err := repo.Run(ctx, "rev-parse", "--git-dir"); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	}
	return repo, nil
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command against this repository and returns stdout.
// Stderr is captured separately and included in the error on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := r.Command(ctx, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", &CommandError{
			Args:   args,
			Dir:    r.dir,
			Err:    err,
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return stdout.String(), nil
}

// Command returns an *exec.Cmd for a git command without running it. The
// caller owns Stdin, Stdout and Stderr.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := []string{"-C", r.dir}
	if r.opts.TrustAll {
		fullArgs = append(fullArgs, "-c", "safe.directory=*")
	}
	fullArgs = append(fullArgs, args...)

	command := exec.CommandContext(ctx, r.binary(), fullArgs...)
	command.Env = r.env
	return command
}

func (r *Repository) binary() string {
	if r.opts.Binary != "" {
		return r.opts.Binary
	}
	return "git"
}

// CommandError describes a failed git invocation.
type CommandError struct {
	Args   []string
	Dir    string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s in %s: %v (stderr: %s)",
		strings.Join(e.Args, " "), e.Dir, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode returns the process exit status, or -1 when the process did not
// run to completion.
func (e *CommandError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// exitCode extracts the exit status of a failed Run, or -1.
func exitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode()
	}
	return -1
}

// commandEnv strips inherited GIT_* variables that would redirect the
// command to another repository, and fences discovery at ceiling.
func commandEnv(ceiling string) []string {
	env := make([]string, 0, len(os.Environ())+4)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "GIT_") || strings.HasPrefix(kv, "LC_ALL=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		"GIT_CEILING_DIRECTORIES="+ceiling,
		"GIT_TERMINAL_PROMPT=0",
		"GIT_OPTIONAL_LOCKS=0",
		"LC_ALL=C",
	)
}
