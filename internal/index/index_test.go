package index

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupesweep/internal/digest"
	"dupesweep/internal/scan"
)

var quiet = log.New(io.Discard, "", 0)

// fakeDigester serves digests from a table, failing for paths in fail.
type fakeDigester struct {
	sums  map[string]digest.Digest
	fail  map[string]error
	calls []string
}

func (f *fakeDigester) File(path string) (digest.Digest, error) {
	f.calls = append(f.calls, path)
	if err, ok := f.fail[path]; ok {
		return 0, err
	}
	return f.sums[path], nil
}

type countingThrottle struct{ n int }

func (c *countingThrottle) Throttle() { c.n++ }

func entries(paths ...string) []scan.Entry {
	out := make([]scan.Entry, 0, len(paths))
	for i, p := range paths {
		out = append(out, scan.Entry{Path: p, Size: int64(10 * (i + 1))})
	}
	return out
}

func TestGroupsPreserveEnumerationOrder(t *testing.T) {
	d := &fakeDigester{sums: map[string]digest.Digest{
		"/r/x1": 2, "/r/a1": 1, "/r/x2": 2, "/r/solo": 3, "/r/a2": 1, "/r/x3": 2,
	}}
	idx := Build(entries("/r/x1", "/r/a1", "/r/x2", "/r/solo", "/r/a2", "/r/x3"), d, quiet)

	groups := idx.Groups()
	require.Len(t, groups, 2)

	// Digest 2 was seen first, so its group comes first.
	assert.Equal(t, digest.Digest(2), groups[0].Digest)
	assert.Equal(t, []string{"/r/x1", "/r/x2", "/r/x3"}, groups[0].Paths)
	assert.Equal(t, []int64{10, 30, 60}, groups[0].Sizes)
	assert.Equal(t, int64(90), groups[0].RedundantBytes())

	assert.Equal(t, digest.Digest(1), groups[1].Digest)
	assert.Equal(t, []string{"/r/a1", "/r/a2"}, groups[1].Paths)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 6, idx.Files())
}

func TestSingletonGroupsAreNeverReported(t *testing.T) {
	d := &fakeDigester{sums: map[string]digest.Digest{"/a": 1, "/b": 2, "/c": 3}}
	idx := Build(entries("/a", "/b", "/c"), d, quiet)

	assert.Empty(t, idx.Groups())
	g, ok := idx.Lookup(2)
	require.True(t, ok)
	assert.False(t, g.IsDuplicate())
	assert.Equal(t, 1, g.Len())

	_, ok = idx.Lookup(99)
	assert.False(t, ok)
}

func TestEmptyBuild(t *testing.T) {
	idx := Build(nil, &fakeDigester{}, quiet)
	assert.Empty(t, idx.Groups())
	assert.Zero(t, idx.Len())
	assert.Zero(t, idx.Files())
}

func TestDigestFailureIsIsolated(t *testing.T) {
	denied := &digest.AccessError{Path: "/b", Op: "open", Err: os.ErrPermission}
	d := &fakeDigester{
		sums: map[string]digest.Digest{"/a": 7, "/c": 7},
		fail: map[string]error{"/b": denied},
	}

	b := NewBuilder(d, quiet)
	for _, e := range entries("/a", "/b", "/c") {
		require.NoError(t, b.Add(e))
	}
	idx := b.Index()

	assert.Equal(t, []string{"/a", "/b", "/c"}, d.calls, "every path is attempted")
	groups := idx.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"/a", "/c"}, groups[0].Paths)

	failures := b.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "/b", failures[0].Path)
	assert.True(t, errors.Is(failures[0].Err, os.ErrPermission))
}

func TestSealedBuilderRejectsAdds(t *testing.T) {
	b := NewBuilder(&fakeDigester{}, quiet)
	first := b.Index()
	assert.ErrorIs(t, b.Add(scan.Entry{Path: "/late"}), ErrSealed)
	assert.Same(t, first, b.Index())
	assert.Zero(t, first.Files())
}

func TestGroupsAreCopies(t *testing.T) {
	d := &fakeDigester{sums: map[string]digest.Digest{"/a": 1, "/b": 1}}
	idx := Build(entries("/a", "/b"), d, quiet)

	g := idx.Groups()[0]
	g.Paths[0] = "/mutated"
	assert.Equal(t, "/a", idx.Groups()[0].Paths[0])
}

func TestThrottleCalledPerFile(t *testing.T) {
	d := &fakeDigester{
		sums: map[string]digest.Digest{"/a": 1},
		fail: map[string]error{"/b": errors.New("gone")},
	}
	th := &countingThrottle{}
	b := NewBuilder(d, quiet)
	b.SetThrottle(th)
	for _, e := range entries("/a", "/b") {
		require.NoError(t, b.Add(e))
	}
	assert.Equal(t, 2, th.n)
}

// TestCollisionIsGroupedAsDuplicate pins the documented limitation: equal
// digests are treated as equal content, even when the bytes differ.
func TestCollisionIsGroupedAsDuplicate(t *testing.T) {
	d := &fakeDigester{sums: map[string]digest.Digest{"/hello": 42, "/world": 42}}
	idx := Build(entries("/hello", "/world"), d, quiet)

	groups := idx.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"/hello", "/world"}, groups[0].Paths)
}

func TestRealFilesScenario(t *testing.T) {
	root := t.TempDir()
	for name, body := range map[string]string{"a.txt": "hello", "b.txt": "hello", "c.txt": "world"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}

	found, err := scan.NewScanner(quiet, scan.Options{}).Collect(root)
	require.NoError(t, err)
	idx := Build(found, digest.New(0), quiet)

	groups := idx.Groups()
	require.Len(t, groups, 1)
	assert.ElementsMatch(t,
		[]string{filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")},
		groups[0].Paths)
	assert.Equal(t, digest.Bytes([]byte("hello")), groups[0].Digest)
}
