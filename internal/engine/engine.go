// Package engine runs workspace queries: sanitize the request, open the
// workspace repository, resolve the revision, materialize the snapshot into
// a private scratch directory and classify the requested path.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mattjoyce/gitshelf/internal/checkout"
	"github.com/mattjoyce/gitshelf/internal/classify"
	"github.com/mattjoyce/gitshelf/internal/git"
	"github.com/mattjoyce/gitshelf/internal/query"
	"github.com/mattjoyce/gitshelf/internal/scratch"
	"github.com/mattjoyce/gitshelf/internal/workspace"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/mattjoyce/gitshelf/internal/engine Opener,Repository
//go:generate mockgen -destination=mocks/mock_scratch.go -package=mocks github.com/mattjoyce/gitshelf/internal/scratch Allocator

// DefaultLatestAlias is the revision token meaning "tip of the primary
// branch".
const DefaultLatestAlias = "latest"

// Repository is what a query needs from an opened workspace.
type Repository interface {
	Resolve(ctx context.Context, rev git.Revision) (git.Snapshot, error)
	Latest(ctx context.Context) (git.Snapshot, error)
	checkout.TreeSource
}

// Opener opens the repository for a sanitized workspace name.
type Opener interface {
	Open(ctx context.Context, name workspace.Name) (Repository, error)
}

// Request is a raw, untrusted query.
type Request struct {
	Workspace string
	Revision  string
	Path      string
}

// Config tunes an Engine.
type Config struct {
	// LatestAlias is resolved as the primary branch tip. Empty means
	// DefaultLatestAlias.
	LatestAlias string
	// MaxFileBytes caps file reads; 0 means unlimited.
	MaxFileBytes int64
}

// Engine is safe for concurrent use; a query never mutates it.
type Engine struct {
	opener  Opener
	scratch scratch.Allocator
	cfg     Config
	logger  *slog.Logger

	materialize func(ctx context.Context, src checkout.TreeSource, snap git.Snapshot, dir scratch.Dir) error
}

// New creates an Engine.
func New(opener Opener, alloc scratch.Allocator, cfg Config, logger *slog.Logger) *Engine {
	if cfg.LatestAlias == "" {
		cfg.LatestAlias = DefaultLatestAlias
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opener:      opener,
		scratch:     alloc,
		cfg:         cfg,
		logger:      logger,
		materialize: checkout.Materialize,
	}
}

// Query answers req with exactly one of a result or a *query.Error. The
// scratch directory used for the checkout is removed before Query returns,
// whatever the outcome.
func (e *Engine) Query(ctx context.Context, req Request) (*query.Result, error) {
	start := time.Now()
	qerr := &query.Error{Workspace: req.Workspace, Revision: req.Revision, Path: req.Path}

	name, err := workspace.SanitizeName(req.Workspace)
	if err != nil {
		return nil, e.fail(qerr, query.KindBadRequest, err)
	}
	if err := workspace.ValidatePath(req.Path); err != nil {
		return nil, e.fail(qerr, query.KindBadRequest, err)
	}
	path := workspace.SanitizePath(req.Path)
	rev := git.ParseRevision(req.Revision)
	if rev == "" {
		rev = git.Revision(e.cfg.LatestAlias)
	}

	qerr.Workspace = name.String()
	qerr.Revision = rev.String()
	qerr.Path = path.String()
	logger := e.logger.With("workspace", qerr.Workspace, "revision", qerr.Revision, "path", qerr.Path)

	repo, err := e.opener.Open(ctx, name)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotFound) {
			return nil, e.fail(qerr, query.KindWorkspaceNotFound, err)
		}
		return nil, e.fail(qerr, query.KindInternal, err)
	}

	var snap git.Snapshot
	if rev.String() == e.cfg.LatestAlias {
		snap, err = repo.Latest(ctx)
	} else {
		snap, err = repo.Resolve(ctx, rev)
	}
	if err != nil {
		return nil, e.fail(qerr, resolveKind(err), err)
	}
	logger.Debug("revision resolved", "commit", snap.Commit)

	dir, err := e.scratch.Create(ctx)
	if err != nil {
		return nil, e.fail(qerr, query.KindInternal, err)
	}
	defer func() {
		if err := e.scratch.Release(dir); err != nil {
			logger.Warn("failed to release scratch directory", "scratch", dir.Path, "error", err)
		}
	}()

	if err := e.materialize(ctx, repo, snap, dir); err != nil {
		return nil, e.fail(qerr, query.KindInternal, err)
	}

	res, err := classify.Classify(dir, path, classify.Options{MaxFileBytes: e.cfg.MaxFileBytes})
	if err != nil {
		return nil, e.fail(qerr, classifyKind(err), err)
	}

	res.Workspace = qerr.Workspace
	res.Revision = qerr.Revision
	res.Commit = snap.Commit
	logger.Debug("query answered", "kind", res.Kind, "commit", snap.Commit, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (e *Engine) fail(qerr *query.Error, kind query.ErrorKind, cause error) *query.Error {
	qerr.Kind = kind
	qerr.Err = cause
	if kind == query.KindInternal {
		e.logger.Error("workspace query failed",
			"workspace", qerr.Workspace,
			"revision", qerr.Revision,
			"path", qerr.Path,
			"error", cause,
		)
	}
	return qerr
}

func resolveKind(err error) query.ErrorKind {
	switch {
	case errors.Is(err, git.ErrEmptyRepository):
		return query.KindEmptyWorkspace
	case errors.Is(err, git.ErrRevisionNotFound):
		return query.KindRevisionNotFound
	default:
		return query.KindInternal
	}
}

func classifyKind(err error) query.ErrorKind {
	switch {
	case errors.Is(err, classify.ErrNotFound):
		return query.KindPathNotFound
	case errors.Is(err, classify.ErrTooLarge):
		return query.KindFileTooLarge
	default:
		return query.KindInternal
	}
}

// GitOpener opens workspaces as git repositories below Root.
type GitOpener struct {
	Root    workspace.Root
	Options git.Options
}

var _ Opener = GitOpener{}

// Open implements Opener.
func (o GitOpener) Open(ctx context.Context, name workspace.Name) (Repository, error) {
	dir, err := o.Root.Join(name)
	if err != nil {
		return nil, errors.Join(git.ErrRepositoryNotFound, err)
	}
	repo, err := git.Open(ctx, dir, o.Options)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
