// Package workspace turns untrusted workspace names and in-repository paths
// into forms that can be joined onto a root directory without escaping it.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned when a raw workspace name has no safe reading.
var ErrInvalidName = errors.New("invalid workspace name")

// Name identifies one repository under the workspaces root. A Name never
// contains separators or parent references.
type Name string

func (n Name) String() string { return string(n) }

// SanitizeName reduces raw to its final path element. "a/b" becomes "b" and
// "../../etc" becomes "etc". Names that are empty after reduction, or that
// carry NUL or control characters, are rejected.
func SanitizeName(raw string) (Name, error) {
	if hasControl(raw) {
		return "", fmt.Errorf("%w: contains control characters", ErrInvalidName)
	}

	segments := splitSegments(raw)
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %q is empty after sanitization", ErrInvalidName, raw)
	}
	return Name(segments[len(segments)-1]), nil
}

// Root is the directory that holds one repository per workspace name.
type Root string

// Join returns the repository directory for name. The result always stays
// inside the root.
func (r Root) Join(name Name) (string, error) {
	base := filepath.Clean(string(r))
	if name == "" || strings.ContainsAny(string(name), `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, string(name))
	}

	joined := filepath.Join(base, string(name))
	if !Within(base, joined) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidName, string(name), base)
	}
	return joined, nil
}

// Within reports whether target is root or lies below it, by lexical
// comparison of cleaned paths.
func Within(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+string(filepath.Separator))
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
