// Package classify inspects a materialized checkout and turns a query path
// into a file or directory result.
package classify

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattjoyce/gitshelf/internal/query"
	"github.com/mattjoyce/gitshelf/internal/scratch"
	"github.com/mattjoyce/gitshelf/internal/workspace"
)

var (
	// ErrNotFound means the path does not exist in the checkout, or resolves
	// outside it through a symlink.
	ErrNotFound = errors.New("path not found")

	// ErrTooLarge means a file exceeds the configured read limit.
	ErrTooLarge = errors.New("file too large")
)

// Options bound what Classify reads.
type Options struct {
	// MaxFileBytes caps file reads; 0 means unlimited.
	MaxFileBytes int64
}

// Classify reads path inside dir. Files come back as raw bytes; directories
// as every descendant, depth-first with each level in lexical order, written
// as slash paths relative to the tree root. Symlinks are resolved only when
// they are the queried path itself and stay inside dir; inside a listing they
// are reported but not followed.
func Classify(dir scratch.Dir, path workspace.Path, opts Options) (*query.Result, error) {
	root, err := filepath.EvalSymlinks(dir.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve checkout root: %w", err)
	}

	// The checkout is private and freshly written, so a failed lookup is a
	// property of the tree: a missing component, a file used as a directory,
	// or a symlink loop.
	resolved, err := filepath.EvalSymlinks(path.In(root))
	if err != nil {
		return nil, ErrNotFound
	}
	if !workspace.Within(root, resolved) {
		return nil, ErrNotFound
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", path.String(), err)
	}

	switch {
	case info.Mode().IsRegular():
		contents, err := readFile(resolved, info.Size(), opts.MaxFileBytes)
		if err != nil {
			return nil, err
		}
		return query.NewFile(path.String(), contents), nil
	case info.IsDir():
		entries, err := listTree(resolved, path.String())
		if err != nil {
			return nil, err
		}
		return query.NewDirectory(path.String(), entries), nil
	default:
		return nil, ErrNotFound
	}
}

func readFile(name string, size, limit int64) ([]byte, error) {
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, size, limit)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if limit > 0 && int64(len(contents)) > limit {
		return nil, fmt.Errorf("%w: exceeds limit of %d bytes", ErrTooLarge, limit)
	}
	return contents, nil
}

func listTree(dir, prefix string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(dir, func(p string, _ fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" {
			rel = prefix + "/" + rel
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	return entries, nil
}
