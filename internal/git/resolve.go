package git

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Revision is a caller-supplied revision token: a branch or tag short name,
// or a prefix of a commit id.
type Revision string

// ParseRevision trims surrounding whitespace and nothing else.
func ParseRevision(raw string) Revision {
	return Revision(strings.TrimSpace(raw))
}

func (r Revision) String() string { return string(r) }

// Snapshot is a resolved, immutable commit and the tree it roots.
type Snapshot struct {
	Commit string
	Tree   string
}

const (
	minPrefixLen = 4
	maxPrefixLen = 64
)

var (
	hexPrefix  = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	pseudoHead = regexp.MustCompile(`^[A-Z_]*HEAD$`)
)

// shortNameRules are tried in order; the first reference that exists and
// peels to a commit wins.
var shortNameRules = []string{
	"%s",
	"refs/%s",
	"refs/tags/%s",
	"refs/heads/%s",
	"refs/remotes/%s",
	"refs/remotes/%s/HEAD",
}

// Resolve maps rev to a snapshot. Short reference names are tried before
// commit id prefixes, so a branch whose name also looks like a hash prefix
// resolves as the branch. A repository without commits yields
// ErrEmptyRepository regardless of rev.
func (r *Repository) Resolve(ctx context.Context, rev Revision) (Snapshot, error) {
	empty, err := r.IsEmpty(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if empty {
		return Snapshot{}, ErrEmptyRepository
	}

	name := string(rev)
	if !plausibleRevision(name) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrRevisionNotFound, name)
	}

	commit, err := r.resolveShortName(ctx, name)
	if err != nil {
		return Snapshot{}, err
	}
	if commit == "" {
		commit, err = r.resolvePrefix(ctx, name)
		if err != nil {
			return Snapshot{}, err
		}
	}
	if commit == "" {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrRevisionNotFound, name)
	}
	return r.snapshot(ctx, commit)
}

// Latest resolves the commit HEAD points at, the tip of the repository's
// primary branch.
func (r *Repository) Latest(ctx context.Context) (Snapshot, error) {
	empty, err := r.IsEmpty(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if empty {
		return Snapshot{}, ErrEmptyRepository
	}

	commit, err := r.peelCommit(ctx, "HEAD")
	if err != nil {
		return Snapshot{}, err
	}
	if commit == "" {
		return Snapshot{}, fmt.Errorf("%w: HEAD does not point at a commit", ErrRevisionNotFound)
	}
	return r.snapshot(ctx, commit)
}

// IsEmpty reports whether the repository has no commits: HEAD is unborn and
// no reference exists.
func (r *Repository) IsEmpty(ctx context.Context) (bool, error) {
	head, err := r.peelCommit(ctx, "HEAD")
	if err != nil {
		return false, err
	}
	if head != "" {
		return false, nil
	}

	out, err := r.Run(ctx, "for-each-ref", "--count=1", "--format=%(objectname)")
	if err != nil {
		return false, fmt.Errorf("list references: %w", err)
	}
	return strings.TrimSpace(out) == "", nil
}

func (r *Repository) resolveShortName(ctx context.Context, name string) (string, error) {
	for _, rule := range shortNameRules {
		candidate := fmt.Sprintf(rule, name)

		var oid string
		var err error
		if rule == "%s" {
			// Bare names only count as references when they are HEAD-like
			// pseudo refs or fully qualified; otherwise rev-parse would fall
			// back to hash lookup here.
			if !pseudoHead.MatchString(candidate) && !strings.HasPrefix(candidate, "refs/") {
				continue
			}
			if pseudoHead.MatchString(candidate) {
				oid, err = r.peelCommit(ctx, candidate)
			} else {
				oid, err = r.peelRef(ctx, candidate)
			}
		} else {
			oid, err = r.peelRef(ctx, candidate)
		}
		if err != nil {
			return "", err
		}
		if oid != "" {
			return oid, nil
		}
	}
	return "", nil
}

// peelRef returns the commit an exact, fully qualified reference peels to,
// or "" when the reference is absent or dangling.
func (r *Repository) peelRef(ctx context.Context, ref string) (string, error) {
	out, err := r.Run(ctx, "show-ref", "--verify", "--", ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", nil
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", nil
	}
	return r.peelCommit(ctx, fields[0])
}

// peelCommit resolves an object name to the commit it peels to. A name that
// does not resolve yields "".
func (r *Repository) peelCommit(ctx context.Context, name string) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "--verify", "--quiet", name+"^{commit}")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", fmt.Errorf("peel %s: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

// resolvePrefix returns the single commit whose id starts with prefix, or ""
// when none or several commits match.
func (r *Repository) resolvePrefix(ctx context.Context, prefix string) (string, error) {
	if len(prefix) < minPrefixLen || len(prefix) > maxPrefixLen || !hexPrefix.MatchString(prefix) {
		return "", nil
	}
	prefix = strings.ToLower(prefix)

	out, err := r.Run(ctx, "rev-parse", "--disambiguate="+prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", nil
	}

	candidates := strings.Fields(out)
	if len(candidates) == 0 {
		return "", nil
	}

	types, err := r.objectTypes(ctx, candidates)
	if err != nil {
		return "", err
	}

	var match string
	for _, oid := range candidates {
		if types[oid] != "commit" {
			continue
		}
		if match != "" {
			return "", nil
		}
		match = oid
	}
	return match, nil
}

func (r *Repository) objectTypes(ctx context.Context, oids []string) (map[string]string, error) {
	command := r.Command(ctx, "cat-file", "--batch-check")
	command.Stdin = strings.NewReader(strings.Join(oids, "\n") + "\n")

	out, err := command.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("git cat-file --batch-check in %s: %w", r.dir, err)
	}

	types := make(map[string]string, len(oids))
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 {
			types[fields[0]] = fields[1]
		}
	}
	return types, scanner.Err()
}

func (r *Repository) snapshot(ctx context.Context, commit string) (Snapshot, error) {
	out, err := r.Run(ctx, "rev-parse", "--verify", commit+"^{tree}")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Snapshot{}, ctxErr
		}
		return Snapshot{}, fmt.Errorf("read tree of %s: %w", commit, err)
	}
	return Snapshot{Commit: commit, Tree: strings.TrimSpace(out)}, nil
}

// plausibleRevision rejects tokens that can be neither a reference short
// name nor a hex prefix, so revision expressions never reach git.
func plausibleRevision(name string) bool {
	if name == "" || strings.HasPrefix(name, "-") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "@{") || strings.Contains(name, "//") || name == "@" {
		return false
	}
	for _, c := range name {
		if c <= ' ' || c == 0x7f {
			return false
		}
		switch c {
		case '~', '^', ':', '?', '*', '[', '\\':
			return false
		}
	}
	return true
}
