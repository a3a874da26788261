package scan

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard, "", 0)

func mkfile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func paths(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestWalkYieldsRegularFilesRecursively(t *testing.T) {
	root := t.TempDir()
	a := mkfile(t, filepath.Join(root, "a.txt"), "hello")
	b := mkfile(t, filepath.Join(root, "sub", "b.txt"), "hello!")
	c := mkfile(t, filepath.Join(root, "sub", "deeper", "c.txt"), "")

	s := NewScanner(quiet, Options{})
	entries, err := s.Collect(root)
	require.NoError(t, err)

	assert.Equal(t, []string{a, b, c}, paths(entries))
	assert.Equal(t, int64(5), entries[0].Size)
	assert.Equal(t, int64(6), entries[1].Size)
	assert.Equal(t, 3, s.Stats().Files)
}

func TestEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))

	entries, err := NewScanner(quiet, Options{}).Collect(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSymlinkPolicy(t *testing.T) {
	root := t.TempDir()
	target := mkfile(t, filepath.Join(root, "real.txt"), "data")
	link := filepath.Join(root, "zlink.txt")
	require.NoError(t, os.Symlink(target, link))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

	t.Run("ignored by default", func(t *testing.T) {
		s := NewScanner(quiet, Options{})
		entries, err := s.Collect(root)
		require.NoError(t, err)
		assert.Equal(t, []string{target}, paths(entries))
		assert.Equal(t, 3, s.Stats().Symlinks)
	})

	t.Run("followed when enabled", func(t *testing.T) {
		s := NewScanner(quiet, Options{FollowSymlinks: true})
		entries, err := s.Collect(root)
		require.NoError(t, err)
		assert.Equal(t, []string{target, link}, paths(entries))
		assert.Equal(t, 1, s.Stats().TraversalErrors, "dangling link is a traversal error")
	})
}

func TestExcludePatterns(t *testing.T) {
	root := t.TempDir()
	keep := mkfile(t, filepath.Join(root, "keep.txt"), "x")
	mkfile(t, filepath.Join(root, "skip.tmp"), "x")
	mkfile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x")
	nested := mkfile(t, filepath.Join(root, "src", "main.go"), "x")

	s := NewScanner(quiet, Options{Exclude: []string{"*.tmp", "node_modules/"}})
	entries, err := s.Collect(root)
	require.NoError(t, err)

	assert.Equal(t, []string{keep, nested}, paths(entries))
	assert.Equal(t, 2, s.Stats().Excluded)
}

func TestUnreadableSubdirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	ok := mkfile(t, filepath.Join(root, "ok.txt"), "x")
	locked := filepath.Join(root, "locked")
	mkfile(t, filepath.Join(locked, "hidden.txt"), "x")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	s := NewScanner(quiet, Options{})
	entries, err := s.Collect(root)
	require.NoError(t, err)
	assert.Equal(t, []string{ok}, paths(entries))
	assert.Equal(t, 1, s.Stats().TraversalErrors)
}

func TestInvalidRoot(t *testing.T) {
	s := NewScanner(quiet, Options{})

	_, err := s.Collect(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.ErrorIs(t, err, ErrRootInvalid)
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := mkfile(t, filepath.Join(t.TempDir(), "file.txt"), "x")
	_, err = s.Collect(file)
	assert.ErrorIs(t, err, ErrRootInvalid)
}

func TestCallbackErrorStopsWalk(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "a"), "1")
	mkfile(t, filepath.Join(root, "b"), "2")

	stop := errors.New("stop")
	calls := 0
	err := NewScanner(quiet, Options{}).Walk(root, func(Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestTraversalErrorUnwraps(t *testing.T) {
	err := &TraversalError{Path: "/x", Err: os.ErrPermission}
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "/x")
}
