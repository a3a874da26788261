// Package index groups scanned files by content digest.
//
// A Builder owns the digest→paths registry for exactly one scan. Paths are
// appended in the order they are added, and groups are reported in the order
// their digest was first seen, so group membership order (and with it the
// keeper) follows the enumeration order of the walk.
package index

import (
	"errors"
	"log"

	"dupesweep/internal/digest"
	"dupesweep/internal/logging"
	"dupesweep/internal/metrics"
	"dupesweep/internal/scan"
)

// ErrSealed is returned by Add once Index has been called.
var ErrSealed = errors.New("index already built")

// Digester computes the digest of one file.
type Digester interface {
	File(path string) (digest.Digest, error)
}

// Throttler is invoked between files; see limiter.CPULimiter.
type Throttler interface {
	Throttle()
}

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// Group is every indexed path that produced one digest, in enumeration order.
type Group struct {
	Digest digest.Digest
	Paths  []string
	Sizes  []int64
}

// Len returns the number of members.
func (g Group) Len() int {
	return len(g.Paths)
}

// IsDuplicate reports whether the group is actionable (two or more members).
func (g Group) IsDuplicate() bool {
	return len(g.Paths) >= 2
}

// RedundantBytes is the total size of every member except the first.
func (g Group) RedundantBytes() int64 {
	var n int64
	for i := 1; i < len(g.Sizes); i++ {
		n += g.Sizes[i]
	}
	return n
}

func (g Group) clone() Group {
	return Group{
		Digest: g.Digest,
		Paths:  append([]string(nil), g.Paths...),
		Sizes:  append([]int64(nil), g.Sizes...),
	}
}

// Failure records a file that was left out of the index.
type Failure struct {
	Path string
	Err  error
}

// Index is the read-only result of one build phase.
type Index struct {
	groups map[digest.Digest]*Group
	order  []digest.Digest
	files  int
}

// Groups returns the duplicate groups (two or more members) in the order
// their digest was first seen. The returned groups are copies.
func (x *Index) Groups() []Group {
	var out []Group
	for _, d := range x.order {
		if g := x.groups[d]; g.IsDuplicate() {
			out = append(out, g.clone())
		}
	}
	return out
}

// Lookup returns the group for d, including single-member groups.
func (x *Index) Lookup(d digest.Digest) (Group, bool) {
	g, ok := x.groups[d]
	if !ok {
		return Group{}, false
	}
	return g.clone(), true
}

// Len returns the number of distinct digests.
func (x *Index) Len() int {
	return len(x.order)
}

// Files returns the number of indexed paths.
func (x *Index) Files() int {
	return x.files
}

// Builder accumulates one scan's digests.
type Builder struct {
	digester Digester
	logger   Logger
	throttle Throttler
	index    *Index
	failures []Failure
	sealed   bool
}

// NewBuilder creates a builder digesting with d
func NewBuilder(d Digester, logger *log.Logger) *Builder {
	return &Builder{
		digester: d,
		logger:   logging.NewLeveled(logger),
		index:    &Index{groups: make(map[digest.Digest]*Group)},
	}
}

// SetThrottle installs a throttle called after every file.
func (b *Builder) SetThrottle(t Throttler) {
	b.throttle = t
}

// Add digests e and appends it to its group. A file that cannot be digested
// is logged, remembered in Failures, and left out; Add still returns nil so
// one unreadable file never stops the scan.
func (b *Builder) Add(e scan.Entry) error {
	if b.sealed {
		return ErrSealed
	}
	if b.throttle != nil {
		defer b.throttle.Throttle()
	}

	d, err := b.digester.File(e.Path)
	if err != nil {
		b.failures = append(b.failures, Failure{Path: e.Path, Err: err})
		metrics.DigestErrorsTotal.Inc()
		b.logger.Warn("Error hashing file", "path", e.Path, "error", err)
		return nil
	}
	metrics.RecordHashed(e.Size)

	g, ok := b.index.groups[d]
	if !ok {
		g = &Group{Digest: d}
		b.index.groups[d] = g
		b.index.order = append(b.index.order, d)
	}
	g.Paths = append(g.Paths, e.Path)
	g.Sizes = append(g.Sizes, e.Size)
	b.index.files++
	return nil
}

// Failures returns the files left out of the index so far.
func (b *Builder) Failures() []Failure {
	return append([]Failure(nil), b.failures...)
}

// Index seals the builder and returns the finished index.
func (b *Builder) Index() *Index {
	if !b.sealed {
		b.sealed = true
		b.logger.Info("Index built",
			"files", b.index.files,
			"digests", len(b.index.order),
			"failures", len(b.failures),
		)
	}
	return b.index
}

// Build digests entries in order and returns the sealed index.
func Build(entries []scan.Entry, d Digester, logger *log.Logger) *Index {
	b := NewBuilder(d, logger)
	for _, e := range entries {
		// Add only fails once sealed, which cannot happen here.
		_ = b.Add(e)
	}
	return b.Index()
}
