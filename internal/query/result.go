// Package query defines what a workspace query produces: exactly one of a
// file result, a directory result, or an *Error.
package query

// ResultKind tags which variant a Result holds.
type ResultKind string

const (
	KindFile      ResultKind = "file"
	KindDirectory ResultKind = "directory"
)

// Result is a successful query outcome. Contents is set only for files and
// Entries only for directories.
type Result struct {
	Kind ResultKind `json:"kind"`
	// Path is the sanitized query path, "" for the tree root.
	Path string `json:"path"`
	// Contents holds the file bytes verbatim; no text encoding is assumed.
	Contents []byte `json:"contents,omitempty"`
	// Entries lists every descendant of a directory as slash-separated paths
	// relative to the tree root, depth-first and lexicographic per level.
	Entries []string `json:"entries,omitempty"`

	Workspace string `json:"workspace"`
	Revision  string `json:"revision"`
	Commit    string `json:"commit"`
}

// NewFile returns a file result.
func NewFile(path string, contents []byte) *Result {
	return &Result{Kind: KindFile, Path: path, Contents: contents}
}

// NewDirectory returns a directory result. A nil entries slice is stored as
// empty so an empty directory still reads as a directory.
func NewDirectory(path string, entries []string) *Result {
	if entries == nil {
		entries = []string{}
	}
	return &Result{Kind: KindDirectory, Path: path, Entries: entries}
}

// IsFile reports whether r is a file result.
func (r *Result) IsFile() bool { return r != nil && r.Kind == KindFile }

// IsDirectory reports whether r is a directory result.
func (r *Result) IsDirectory() bool { return r != nil && r.Kind == KindDirectory }
