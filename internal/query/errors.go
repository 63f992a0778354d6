package query

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the failure classes callers can act on.
type ErrorKind string

const (
	KindBadRequest        ErrorKind = "bad_request"
	KindWorkspaceNotFound ErrorKind = "workspace_not_found"
	KindEmptyWorkspace    ErrorKind = "empty_workspace"
	KindRevisionNotFound  ErrorKind = "revision_not_found"
	KindPathNotFound      ErrorKind = "path_not_found"
	KindFileTooLarge      ErrorKind = "file_too_large"
	KindInternal          ErrorKind = "internal"
)

// Error is a failed query. It carries the sanitized request so callers can
// build a precise message without parsing strings.
type Error struct {
	Kind      ErrorKind
	Workspace string
	Revision  string
	Path      string
	// Err is the underlying cause. For KindInternal it may describe storage
	// internals and should not be shown to end users.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message()
	if e.Kind == KindInternal && e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Message is safe to show to the caller: internal failures are reduced to a
// generic sentence.
func (e *Error) Message() string {
	switch e.Kind {
	case KindBadRequest:
		if e.Err != nil {
			return fmt.Sprintf("bad request: %v", e.Err)
		}
		return "bad request"
	case KindWorkspaceNotFound:
		return fmt.Sprintf("workspace %q does not exist", e.Workspace)
	case KindEmptyWorkspace:
		return fmt.Sprintf("workspace %q has no commits yet", e.Workspace)
	case KindRevisionNotFound:
		return fmt.Sprintf("revision %q does not exist in workspace %q", e.Revision, e.Workspace)
	case KindPathNotFound:
		return fmt.Sprintf("path %q does not exist in workspace %q at revision %q", e.Path, e.Workspace, e.Revision)
	case KindFileTooLarge:
		return fmt.Sprintf("file %q in workspace %q at revision %q is too large", e.Path, e.Workspace, e.Revision)
	default:
		return fmt.Sprintf("internal error querying workspace %q", e.Workspace)
	}
}

// KindOf returns the kind of err, KindInternal for errors that are not an
// *Error, and "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindInternal
}

// IsExpected reports whether err is one of the user-actionable kinds rather
// than an internal failure.
func IsExpected(err error) bool {
	kind := KindOf(err)
	return kind != "" && kind != KindInternal
}
