package checkout

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gitshelf/internal/git"
	"github.com/mattjoyce/gitshelf/internal/gittest"
	"github.com/mattjoyce/gitshelf/internal/scratch"
)

func newScratch(t *testing.T) scratch.Dir {
	t.Helper()
	mgr, err := scratch.NewManager(t.TempDir())
	require.NoError(t, err)
	dir, err := mgr.Create(context.Background())
	require.NoError(t, err)
	return dir
}

func TestMaterialize_FromRepository(t *testing.T) {
	r := gittest.Init(t, t.TempDir())
	r.WriteFile("hello.txt", "hi")
	r.WriteFile("guide/intro.md", "# intro\n")
	r.WriteFile("guide/deep/nested.txt", "nested")
	r.WriteFile("bin/run.sh", "#!/bin/sh\n")
	require.NoError(t, os.Chmod(filepath.Join(r.Dir, "bin", "run.sh"), 0o755))
	r.Symlink("../hello.txt", "guide/link")
	r.Commit("tree")

	// Make the worktree differ from HEAD; materialization must ignore it.
	r.WriteFile("hello.txt", "uncommitted")

	repo, err := git.Open(context.Background(), r.Dir, git.Options{})
	require.NoError(t, err)
	snap, err := repo.Resolve(context.Background(), "main")
	require.NoError(t, err)

	dir := newScratch(t)
	require.NoError(t, Materialize(context.Background(), repo, snap, dir))

	got, err := os.ReadFile(filepath.Join(dir.Path, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	got, err = os.ReadFile(filepath.Join(dir.Path, "guide", "deep", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(got))

	info, err := os.Stat(filepath.Join(dir.Path, "bin", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm()&0o755)

	target, err := os.Readlink(filepath.Join(dir.Path, "guide", "link"))
	require.NoError(t, err)
	assert.Equal(t, "../hello.txt", target)

	// The source worktree is untouched.
	got, err = os.ReadFile(filepath.Join(r.Dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "uncommitted", string(got))
}

func TestMaterialize_HistoricalRevision(t *testing.T) {
	r := gittest.Init(t, t.TempDir())
	r.WriteFile("a.txt", "v1")
	first := r.Commit("first")
	r.WriteFile("a.txt", "v2")
	r.WriteFile("b.txt", "new")
	r.Commit("second")

	repo, err := git.Open(context.Background(), r.Dir, git.Options{})
	require.NoError(t, err)
	snap, err := repo.Resolve(context.Background(), git.Revision(first[:10]))
	require.NoError(t, err)

	dir := newScratch(t)
	require.NoError(t, Materialize(context.Background(), repo, snap, dir))

	got, err := os.ReadFile(filepath.Join(dir.Path, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
	_, err = os.Stat(filepath.Join(dir.Path, "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

// fakeSource serves a fixed tree with blob contents keyed by oid.
type fakeSource struct {
	entries []git.TreeEntry
	blobs   map[string]string
}

func (f *fakeSource) ListTree(context.Context, string) ([]git.TreeEntry, error) {
	return f.entries, nil
}

func (f *fakeSource) CatBlobs(_ context.Context, oids []string, fn git.BlobFunc) error {
	for _, oid := range oids {
		body := f.blobs[oid]
		if err := fn(oid, int64(len(body)), strings.NewReader(body)); err != nil {
			return err
		}
	}
	return nil
}

func TestMaterialize_RejectsEscapingEntries(t *testing.T) {
	for _, bad := range []string{"../escape.txt", "/abs.txt", "a/../../escape.txt", "a//b", "./x"} {
		t.Run(bad, func(t *testing.T) {
			parent := t.TempDir()
			mgr, err := scratch.NewManager(filepath.Join(parent, "scratch"))
			require.NoError(t, err)
			dir, err := mgr.Create(context.Background())
			require.NoError(t, err)

			src := &fakeSource{
				entries: []git.TreeEntry{{Path: bad, OID: "1", Type: git.EntryFile}},
				blobs:   map[string]string{"1": "pwned"},
			}
			err = Materialize(context.Background(), src, git.Snapshot{Tree: "t"}, dir)
			require.Error(t, err)

			_, statErr := os.Stat(filepath.Join(parent, "escape.txt"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestMaterialize_RefusesWritingThroughSymlink(t *testing.T) {
	outside := t.TempDir()
	dir := newScratch(t)

	src := &fakeSource{
		entries: []git.TreeEntry{
			{Path: "a", OID: "1", Type: git.EntrySymlink},
			{Path: "a/passwd", OID: "2", Type: git.EntryFile},
		},
		blobs: map[string]string{"1": outside, "2": "pwned"},
	}
	err := Materialize(context.Background(), src, git.Snapshot{Tree: "t"}, dir)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(outside, "passwd"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMaterialize_SubmoduleBecomesEmptyDir(t *testing.T) {
	dir := newScratch(t)
	src := &fakeSource{
		entries: []git.TreeEntry{{Path: "vendor/lib", OID: "c0ffee", Type: git.EntrySubmodule}},
	}
	require.NoError(t, Materialize(context.Background(), src, git.Snapshot{Tree: "t"}, dir))

	entries, err := os.ReadDir(filepath.Join(dir.Path, "vendor", "lib"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMaterialize_CanceledContext(t *testing.T) {
	dir := newScratch(t)
	src := &fakeSource{
		entries: []git.TreeEntry{{Path: "a.txt", OID: "1", Type: git.EntryFile}},
		blobs:   map[string]string{"1": "a"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Materialize(ctx, src, git.Snapshot{Tree: "t"}, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
