// Package scratch allocates the temporary directories queries check out into.
package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager manages scratch directories on local disk. Directory names are
// random v4 UUIDs, so concurrent queries never collide.
type Manager struct {
	baseDir string
	now     func() time.Time
}

var (
	_ Allocator = (*Manager)(nil)
	_ Sweeper   = (*Manager)(nil)
)

// NewManager creates a scratch manager rooted at baseDir.
func NewManager(baseDir string) (*Manager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("scratch base directory is empty")
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch base directory: %w", err)
	}

	return &Manager{
		baseDir: abs,
		now:     time.Now,
	}, nil
}

// BaseDir returns the directory scratch directories are created in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Create allocates a fresh scratch directory readable only by this process's
// user.
func (m *Manager) Create(ctx context.Context) (Dir, error) {
	if err := ctx.Err(); err != nil {
		return Dir{}, err
	}

	if err := os.MkdirAll(m.baseDir, 0o700); err != nil {
		return Dir{}, fmt.Errorf("create scratch base directory: %w", err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return Dir{}, fmt.Errorf("generate scratch id: %w", err)
	}

	path := filepath.Join(m.baseDir, id.String())
	if err := os.Mkdir(path, 0o700); err != nil {
		return Dir{}, fmt.Errorf("create scratch directory %q: %w", id.String(), err)
	}

	return Dir{ID: id.String(), Path: path}, nil
}

// Release removes dir. Releasing an already removed directory is not an
// error.
func (m *Manager) Release(dir Dir) error {
	path, err := m.scratchPath(dir.ID)
	if err != nil {
		return err
	}
	if filepath.Clean(dir.Path) != path {
		return fmt.Errorf("scratch directory %q is not managed by %s", dir.Path, m.baseDir)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove scratch directory %q: %w", dir.ID, err)
	}
	return nil
}

// Cleanup removes scratch directories older than olderThan based on directory
// modification time. Entries whose names are not scratch ids are left alone.
func (m *Manager) Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return CleanupReport{}, err
	}
	if olderThan <= 0 {
		return CleanupReport{}, fmt.Errorf("olderThan must be positive")
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return CleanupReport{}, nil
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("read scratch base directory: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	report := CleanupReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		info, err := entry.Info()
		if os.IsNotExist(err) {
			// Released concurrently.
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read scratch entry info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return report, fmt.Errorf("remove scratch directory %q: %w", entry.Name(), err)
		}
		report.DeletedDirs++
	}

	return report, nil
}

func (m *Manager) scratchPath(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(m.baseDir, id), nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("scratch id is empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("scratch id %q is invalid: %w", id, err)
	}
	if strings.ContainsAny(id, `/\`) || filepath.Clean(id) != id {
		return fmt.Errorf("scratch id %q is invalid", id)
	}
	return nil
}
