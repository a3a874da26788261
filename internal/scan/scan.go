package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"dupesweep/internal/logging"
	"dupesweep/internal/metrics"
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Entry is a regular file discovered by the walk.
type Entry struct {
	Path string
	Size int64
}

// TraversalError reports a directory entry that could not be resolved.
type TraversalError struct {
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("traverse %s: %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}

// ErrRootInvalid is returned when the scan root is missing, unreadable, or not a directory.
var ErrRootInvalid = errors.New("invalid scan root")

// Options controls which entries the walk yields.
type Options struct {
	// FollowSymlinks yields symlinks that resolve to regular files under their
	// link path. Symlinked directories are never descended into.
	FollowSymlinks bool
	// Exclude holds gitignore-style patterns matched against root-relative paths.
	Exclude []string
}

// Stats summarises one walk.
type Stats struct {
	Files           int
	Excluded        int
	Symlinks        int
	Irregular       int
	TraversalErrors int
}

// Scanner enumerates the regular files below a root directory
type Scanner struct {
	logger         Logger
	followSymlinks bool
	exclude        *ignore.GitIgnore
	stats          Stats
}

// NewScanner creates a new Scanner with the given logger
func NewScanner(logger *log.Logger, opts Options) *Scanner {
	s := &Scanner{
		logger:         logging.NewLeveled(logger),
		followSymlinks: opts.FollowSymlinks,
	}
	if len(opts.Exclude) > 0 {
		s.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return s
}

// Stats returns the counters of the most recent Walk.
func (s *Scanner) Stats() Stats {
	return s.stats
}

// Walk calls fn for every regular file below root, in lexical order within each
// directory. Unreadable entries are logged and skipped; only a bad root or an
// error returned by fn stops the walk.
func (s *Scanner) Walk(root string, fn func(Entry) error) error {
	s.stats = Stats{}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRootInvalid, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootInvalid, root)
	}

	s.logger.Info("Starting directory walk", "root", root, "follow_symlinks", s.followSymlinks)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %w", ErrRootInvalid, err)
			}
			s.traversalError(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path != root && s.excluded(root, path, d.IsDir()) {
			s.stats.Excluded++
			metrics.FilesExcludedTotal.Inc()
			s.logger.Debug("Excluded by pattern", "path", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.IsDir():
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			return s.visitSymlink(path, fn)
		case !d.Type().IsRegular():
			s.stats.Irregular++
			s.logger.Debug("Skipping non-regular entry", "path", path, "mode", d.Type().String())
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			s.traversalError(path, err)
			return nil
		}
		return s.emit(Entry{Path: path, Size: fi.Size()}, fn)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Directory walk complete",
		"root", root,
		"files", s.stats.Files,
		"excluded", s.stats.Excluded,
		"traversal_errors", s.stats.TraversalErrors,
	)
	return nil
}

// Collect walks root and returns every entry in walk order.
func (s *Scanner) Collect(root string) ([]Entry, error) {
	var entries []Entry
	err := s.Walk(root, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (s *Scanner) visitSymlink(path string, fn func(Entry) error) error {
	s.stats.Symlinks++
	if !s.followSymlinks {
		s.logger.Debug("Skipping symlink", "path", path)
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		s.traversalError(path, err)
		return nil
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	return s.emit(Entry{Path: path, Size: fi.Size()}, fn)
}

func (s *Scanner) emit(e Entry, fn func(Entry) error) error {
	s.stats.Files++
	metrics.FilesScannedTotal.Inc()
	return fn(e)
}

func (s *Scanner) excluded(root, path string, isDir bool) bool {
	if s.exclude == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return s.exclude.MatchesPath(rel)
}

func (s *Scanner) traversalError(path string, err error) {
	s.stats.TraversalErrors++
	metrics.TraversalErrorsTotal.Inc()
	terr := &TraversalError{Path: path, Err: err}
	if os.IsPermission(err) {
		s.logger.Warn("Permission denied", "path", path)
		return
	}
	s.logger.Warn("Skipping unreadable entry", "path", path, "error", terr)
}
