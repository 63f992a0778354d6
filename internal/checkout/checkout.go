// Package checkout projects a resolved snapshot's tree onto a scratch
// directory. It only reads from the repository and only writes below the
// scratch directory.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/gitshelf/internal/git"
	"github.com/mattjoyce/gitshelf/internal/scratch"
)

// maxSymlinkTarget bounds how much of a symlink blob is read.
const maxSymlinkTarget = 4096

// TreeSource is the part of a repository the materializer reads from.
type TreeSource interface {
	ListTree(ctx context.Context, treeish string) ([]git.TreeEntry, error)
	CatBlobs(ctx context.Context, oids []string, fn git.BlobFunc) error
}

var _ TreeSource = (*git.Repository)(nil)

// Materialize writes every directory, file and symlink of snap's tree into
// dir. Submodules become empty directories. dir must be empty.
func Materialize(ctx context.Context, src TreeSource, snap git.Snapshot, dir scratch.Dir) error {
	entries, err := src.ListTree(ctx, snap.Tree)
	if err != nil {
		return err
	}

	root := filepath.Clean(dir.Path)
	var blobs []git.TreeEntry

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validateEntryPath(entry.Path); err != nil {
			return err
		}

		switch entry.Type {
		case git.EntryDir, git.EntrySubmodule:
			if err := ensureDir(root, entry.Path); err != nil {
				return err
			}
		default:
			blobs = append(blobs, entry)
		}
	}

	oids := make([]string, len(blobs))
	for i, b := range blobs {
		oids[i] = b.OID
	}

	next := 0
	return src.CatBlobs(ctx, oids, func(oid string, size int64, body io.Reader) error {
		if next >= len(blobs) {
			return fmt.Errorf("unexpected object %s", oid)
		}
		entry := blobs[next]
		next++
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeEntry(root, entry, body)
	})
}

func writeEntry(root string, entry git.TreeEntry, body io.Reader) error {
	parent := filepath.Dir(filepath.FromSlash(entry.Path))
	if parent != "." {
		if err := ensureDir(root, filepath.ToSlash(parent)); err != nil {
			return err
		}
	}
	target := filepath.Join(root, filepath.FromSlash(entry.Path))

	if entry.Type == git.EntrySymlink {
		link, err := io.ReadAll(io.LimitReader(body, maxSymlinkTarget+1))
		if err != nil {
			return fmt.Errorf("read symlink %q: %w", entry.Path, err)
		}
		if len(link) > maxSymlinkTarget {
			return fmt.Errorf("symlink %q target exceeds %d bytes", entry.Path, maxSymlinkTarget)
		}
		if err := os.Symlink(string(link), target); err != nil {
			return fmt.Errorf("create symlink %q: %w", entry.Path, err)
		}
		return nil
	}

	mode := os.FileMode(0o644)
	if entry.Type == git.EntryExecutable {
		mode = 0o755
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("create file %q: %w", entry.Path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write file %q: %w", entry.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file %q: %w", entry.Path, err)
	}
	return nil
}

// ensureDir creates rel below root one segment at a time, refusing to pass
// through anything that is not a real directory.
func ensureDir(root, rel string) error {
	current := root
	for _, segment := range strings.Split(rel, "/") {
		current = filepath.Join(current, segment)

		info, err := os.Lstat(current)
		switch {
		case err == nil:
			if !info.IsDir() {
				return fmt.Errorf("checkout path %q is blocked by a non-directory", rel)
			}
		case errors.Is(err, os.ErrNotExist):
			if err := os.Mkdir(current, 0o755); err != nil {
				return fmt.Errorf("create directory %q: %w", rel, err)
			}
		default:
			return fmt.Errorf("stat %q: %w", rel, err)
		}
	}
	return nil
}

func validateEntryPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") {
		return fmt.Errorf("refusing tree entry %q", p)
	}
	if filepath.Separator != '/' && strings.ContainsRune(p, filepath.Separator) {
		return fmt.Errorf("refusing tree entry %q", p)
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("refusing tree entry %q", p)
		}
	}
	return nil
}
