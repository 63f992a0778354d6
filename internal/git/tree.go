package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// EntryType classifies a tree entry by its git mode.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryExecutable
	EntrySymlink
	EntryDir
	EntrySubmodule
)

// TreeEntry is one path in a recursively listed tree.
type TreeEntry struct {
	Path string
	OID  string
	Type EntryType
}

// ListTree lists every entry reachable from treeish, directories included,
// with slash-separated paths relative to the tree root.
func (r *Repository) ListTree(ctx context.Context, treeish string) ([]TreeEntry, error) {
	out, err := r.Run(ctx, "ls-tree", "-r", "-t", "-z", "--full-tree", treeish)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("list tree %s: %w", treeish, err)
	}

	var entries []TreeEntry
	for _, record := range strings.Split(out, "\x00") {
		if record == "" {
			continue
		}
		entry, err := parseTreeRecord(record)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseTreeRecord parses "<mode> SP <type> SP <oid> TAB <path>".
func parseTreeRecord(record string) (TreeEntry, error) {
	meta, path, ok := strings.Cut(record, "\t")
	if !ok {
		return TreeEntry{}, fmt.Errorf("malformed ls-tree record %q", record)
	}
	fields := strings.Fields(meta)
	if len(fields) != 3 {
		return TreeEntry{}, fmt.Errorf("malformed ls-tree record %q", record)
	}

	entry := TreeEntry{Path: path, OID: fields[2]}
	switch fields[0] {
	case "040000":
		entry.Type = EntryDir
	case "100644", "100664":
		entry.Type = EntryFile
	case "100755":
		entry.Type = EntryExecutable
	case "120000":
		entry.Type = EntrySymlink
	case "160000":
		entry.Type = EntrySubmodule
	default:
		return TreeEntry{}, fmt.Errorf("unsupported tree mode %s for %q", fields[0], path)
	}
	return entry, nil
}

// BlobFunc receives one blob's content. body must be fully consumed or
// abandoned; CatBlobs discards any unread remainder.
type BlobFunc func(oid string, size int64, body io.Reader) error

// CatBlobs streams the contents of oids, in order, through a single
// "git cat-file --batch" process.
func (r *Repository) CatBlobs(ctx context.Context, oids []string, fn BlobFunc) error {
	if len(oids) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stderr bytes.Buffer
	command := r.Command(ctx, "cat-file", "--batch")
	command.Stdin = strings.NewReader(strings.Join(oids, "\n") + "\n")
	command.Stderr = &stderr

	stdout, err := command.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cat-file stdout: %w", err)
	}
	if err := command.Start(); err != nil {
		return fmt.Errorf("start cat-file: %w", err)
	}

	readErr := readBatch(bufio.NewReader(stdout), oids, fn)
	if readErr != nil {
		cancel()
	}
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := command.Wait()

	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("git cat-file --batch in %s: %w (stderr: %s)",
			r.dir, waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func readBatch(out *bufio.Reader, oids []string, fn BlobFunc) error {
	for _, want := range oids {
		header, err := out.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read cat-file header for %s: %w", want, err)
		}
		fields := strings.Fields(header)
		if len(fields) == 2 && fields[1] == "missing" {
			return fmt.Errorf("object %s is missing", want)
		}
		if len(fields) != 3 {
			return fmt.Errorf("malformed cat-file header %q", strings.TrimSpace(header))
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed cat-file size %q: %w", fields[2], err)
		}

		body := io.LimitReader(out, size)
		if err := fn(fields[0], size, body); err != nil {
			return err
		}
		if _, err := io.Copy(io.Discard, body); err != nil {
			return fmt.Errorf("drain object %s: %w", fields[0], err)
		}
		// Each object is followed by a newline.
		if b, err := out.ReadByte(); err != nil || b != '\n' {
			if err == nil {
				err = errors.New("missing object terminator")
			}
			return fmt.Errorf("read object %s: %w", fields[0], err)
		}
	}
	return nil
}
