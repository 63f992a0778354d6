package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// ErrNetworkFilesystem marks a path that lives on a network mount.
var ErrNetworkFilesystem = errors.New("network filesystem")

// ValidateLocalFilesystem ensures the DB path is on a local filesystem.
// Paths that do not exist yet are judged by their nearest existing parent.
func ValidateLocalFilesystem(path string) error {
	return validateFilesystemWithDetector(path, detectFilesystemType)
}

// ValidateLockDir ensures dir, which is guarded with flock, is on a local
// filesystem. Network mounts do not honour flock reliably, so two servers
// could sweep each other's scratch directories.
func ValidateLockDir(dir string) error {
	return validateLockDirWithDetector(dir, detectFilesystemType)
}

func validateFilesystemWithDetector(path string, detector func(string) (string, error)) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	fsType, err := filesystemOf(path, detector)
	if err != nil {
		return err
	}
	if isNetworkFilesystem(fsType) {
		return fmt.Errorf(
			"%w: database path %q is on %q; SQLite requires a local filesystem for reliable locking. Set journal.path to local disk or disable the journal",
			ErrNetworkFilesystem,
			path,
			fsType,
		)
	}
	return nil
}

func validateLockDirWithDetector(dir string, detector func(string) (string, error)) error {
	if dir == "" {
		return fmt.Errorf("lock directory is empty")
	}

	fsType, err := filesystemOf(dir, detector)
	if err != nil {
		return err
	}
	if isNetworkFilesystem(fsType) {
		return fmt.Errorf(
			"%w: scratch root %q is on %q; flock is not reliable there. Set scratch.root to local disk",
			ErrNetworkFilesystem,
			dir,
			fsType,
		)
	}
	return nil
}

func filesystemOf(path string, detector func(string) (string, error)) (string, error) {
	inspectPath, err := nearestExistingPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}

	fsType, err := detector(inspectPath)
	if err != nil {
		return "", fmt.Errorf("detect filesystem for %q: %w", inspectPath, err)
	}
	return fsType, nil
}

func nearestExistingPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	candidate := absPath
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", absPath)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	normalized := strings.TrimSpace(strings.ToLower(fsType))
	_, found := networkFilesystems[normalized]
	return found
}
