package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Path is a location relative to the root of a snapshot tree. The zero value
// is the tree root.
type Path struct {
	segments []string
}

// SanitizePath never fails: "." and ".." segments, empty segments and leading
// separators are dropped, so the result cannot leave whatever root it is
// joined onto. Both "/" and "\" separate segments.
func SanitizePath(raw string) Path {
	return Path{segments: splitSegments(raw)}
}

// ValidatePath reports raw paths that carry NUL or control characters. It is
// stricter than SanitizePath and optional for callers.
func ValidatePath(raw string) error {
	if hasControl(raw) {
		return fmt.Errorf("path %q contains control characters", raw)
	}
	return nil
}

// IsRoot reports whether p denotes the tree root.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// String renders p with forward slashes; the root renders as "".
func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// In joins p onto dir using the host separator.
func (p Path) In(dir string) string {
	return filepath.Join(append([]string{dir}, p.segments...)...)
}

func splitSegments(raw string) []string {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == '/' || r == '\\'
	})

	segments := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || f == "." || f == ".." {
			continue
		}
		segments = append(segments, f)
	}
	return segments
}
