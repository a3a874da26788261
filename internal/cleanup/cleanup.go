package cleanup

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"dupesweep/internal/database"
	"dupesweep/internal/digest"
	"dupesweep/internal/disk"
	"dupesweep/internal/fsops"
	"dupesweep/internal/index"
	"dupesweep/internal/logging"
	"dupesweep/internal/metrics"
	"dupesweep/internal/safety"
)

// Outcome actions, also written to the history database
const (
	ActionDelete = "DELETE"
	ActionDryRun = "DRY_RUN"
	ActionSkip   = "SKIP"
	ActionError  = "ERROR"
)

// Skip reasons
const (
	ReasonUnsafePath      = "unsafe_path"
	ReasonProtectedPath   = "protected_path"
	ReasonSymlinkEscape   = "symlink_escape"
	ReasonNotRegular      = "not_regular"
	ReasonKeeper          = "keeper"
	ReasonContentMismatch = "content_mismatch"
	ReasonAlreadyGone     = "already_gone"
	ReasonNFSStale        = "nfs_stale"
)

// CleanupLogger interface for structured logging in cleanup
type CleanupLogger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// HistoryRecorder persists one outcome; *database.DeletionDB satisfies it
type HistoryRecorder interface {
	RecordDeletion(rec database.DeletionRecord) error
}

// Plan is the removal plan for one duplicate group
type Plan struct {
	Digest   digest.Digest
	Keeper   string
	Removals []string
	Sizes    []int64 // parallel to Removals
}

// PlanGroup keeps the first member of g and schedules every other member for
// removal. Which member comes first depends on enumeration order.
func PlanGroup(g index.Group) Plan {
	p := Plan{Digest: g.Digest}
	if len(g.Paths) == 0 {
		return p
	}
	p.Keeper = g.Paths[0]
	p.Removals = append([]string(nil), g.Paths[1:]...)
	if len(g.Sizes) == len(g.Paths) {
		p.Sizes = append([]int64(nil), g.Sizes[1:]...)
	}
	return p
}

func (p Plan) size(i int) int64 {
	if i < len(p.Sizes) {
		return p.Sizes[i]
	}
	return 0
}

// Result is the outcome for one removal candidate
type Result struct {
	Path   string
	Keeper string
	Digest digest.Digest
	Size   int64
	Action string
	Reason string
	Err    error
}

// Summary aggregates the results of ExecuteAll
type Summary struct {
	Deleted     int
	DryRun      int
	Skipped     int
	Errors      int
	BytesFreed  int64
	DryRunBytes int64
	Results     []Result
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Action {
	case ActionDelete:
		s.Deleted++
		s.BytesFreed += r.Size
	case ActionDryRun:
		s.DryRun++
		s.DryRunBytes += r.Size
	case ActionSkip:
		s.Skipped++
	case ActionError:
		s.Errors++
	}
}

// Cleaner performs removals with structured logging
type Cleaner struct {
	logger    CleanupLogger
	actionLog io.Writer // Optional sink for structured action lines
	deleter   fsops.Deleter
	validator *safety.Validator
	compare   func(a, b string) (bool, error)
	stale     func(path string, timeout time.Duration) bool
	staleWait time.Duration
	history   HistoryRecorder
	runID     string
	dryRun    bool
	verify    bool
}

// Option configures a Cleaner
type Option func(*Cleaner)

// WithDryRun reports what would be removed without calling the deleter
func WithDryRun(on bool) Option {
	return func(c *Cleaner) { c.dryRun = on }
}

// WithVerify byte-compares every candidate against its keeper before removal
func WithVerify(on bool) Option {
	return func(c *Cleaner) { c.verify = on }
}

// WithStaleCheck skips targets whose mount does not answer a stat within timeout
func WithStaleCheck(timeout time.Duration) Option {
	return func(c *Cleaner) { c.staleWait = timeout }
}

// WithHistory records every outcome under runID
func WithHistory(h HistoryRecorder, runID string) Option {
	return func(c *Cleaner) {
		c.history = h
		c.runID = runID
	}
}

// WithActionLog mirrors structured action lines to w
func WithActionLog(w io.Writer) Option {
	return func(c *Cleaner) { c.actionLog = w }
}

// NewCleaner creates a Cleaner deleting through the OS. Until SetValidator is
// called no root is allowed, so every removal is skipped.
func NewCleaner(logger *log.Logger, opts ...Option) *Cleaner {
	c := &Cleaner{
		logger:    logging.NewLeveled(logger),
		deleter:   fsops.OSDeleter{},
		validator: safety.NewValidator(nil, nil),
		compare:   fsops.SameContent,
		stale:     disk.IsNFSStale,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDeleter replaces the deleter (tests use fsops.FakeDeleter)
func (c *Cleaner) SetDeleter(d fsops.Deleter) {
	c.deleter = d
}

// SetValidator replaces the safety validator
func (c *Cleaner) SetValidator(v *safety.Validator) {
	c.validator = v
}

// DryRun reports whether the cleaner is in dry-run mode
func (c *Cleaner) DryRun() bool {
	return c.dryRun
}

// Execute attempts every removal in plan independently. A failure on one
// path never stops the others and nothing is rolled back.
func (c *Cleaner) Execute(plan Plan) []Result {
	results := make([]Result, 0, len(plan.Removals))
	for i, path := range plan.Removals {
		r := c.remove(plan, path, plan.size(i))
		c.record(r)
		results = append(results, r)
	}
	return results
}

// ExecuteAll runs Execute for each plan and totals the outcomes
func (c *Cleaner) ExecuteAll(plans []Plan) Summary {
	total := 0
	for _, p := range plans {
		total += len(p.Removals)
	}
	c.logger.Info("Starting cleanup", "total_candidates", total, "dry_run", c.dryRun, "verify", c.verify)

	start := time.Now()
	var s Summary
	for _, p := range plans {
		for _, r := range c.Execute(p) {
			s.add(r)
		}
	}
	metrics.DeletionDuration.Observe(time.Since(start).Seconds())

	c.logger.Info("Cleanup complete",
		"deleted", s.Deleted,
		"dry_run", s.DryRun,
		"skipped", s.Skipped,
		"errors", s.Errors,
		"space_freed_bytes", s.BytesFreed,
		"space_freed_mb", s.BytesFreed/1024/1024,
	)
	return s
}

func (c *Cleaner) remove(plan Plan, path string, size int64) Result {
	r := Result{Path: path, Keeper: plan.Keeper, Digest: plan.Digest, Size: size}

	if err := c.validator.ValidateDeleteTarget(path); err != nil {
		return c.refuse(r, err)
	}
	if err := c.validator.ValidateAgainstKeeper(path, plan.Keeper); err != nil {
		return c.refuse(r, err)
	}

	if c.staleWait > 0 && c.stale(path, c.staleWait) {
		r.Action = ActionSkip
		r.Reason = ReasonNFSStale
		return r
	}

	if c.verify {
		same, err := c.compare(plan.Keeper, path)
		if err != nil {
			r.Action = ActionError
			r.Err = fmt.Errorf("verify against keeper: %w", err)
			return r
		}
		if !same {
			r.Action = ActionSkip
			r.Reason = ReasonContentMismatch
			return r
		}
	}

	if c.dryRun {
		r.Action = ActionDryRun
		return r
	}

	if err := c.deleter.Remove(path); err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("File already deleted", "path", path)
			r.Action = ActionSkip
			r.Reason = ReasonAlreadyGone
			return r
		}
		if c.staleWait > 0 && c.stale(path, c.staleWait) {
			r.Action = ActionSkip
			r.Reason = ReasonNFSStale
			r.Err = err
			return r
		}
		r.Action = ActionError
		r.Err = err
		return r
	}
	r.Action = ActionDelete
	return r
}

// refuse turns a validator error into a SKIP, or an ERROR when validation
// itself could not complete
func (c *Cleaner) refuse(r Result, err error) Result {
	r.Err = err
	switch {
	case errors.Is(err, safety.ErrKeeperTarget),
		errors.Is(err, safety.ErrKeeperMissing),
		errors.Is(err, safety.ErrKeeperLinked):
		r.Action, r.Reason = ActionSkip, ReasonKeeper
	case errors.Is(err, safety.ErrProtectedPath):
		r.Action, r.Reason = ActionSkip, ReasonProtectedPath
	case errors.Is(err, safety.ErrSymlinkEscape):
		r.Action, r.Reason = ActionSkip, ReasonSymlinkEscape
	case errors.Is(err, safety.ErrNotRegular):
		r.Action, r.Reason = ActionSkip, ReasonNotRegular
	case errors.Is(err, safety.ErrOutsideAllowed),
		errors.Is(err, safety.ErrTraversal),
		errors.Is(err, safety.ErrInvalidPath):
		r.Action, r.Reason = ActionSkip, ReasonUnsafePath
	default:
		r.Action = ActionError
	}
	return r
}

func (c *Cleaner) record(r Result) {
	switch r.Action {
	case ActionDelete:
		metrics.RecordDeletion(r.Size)
	case ActionSkip:
		metrics.RecordSkip(r.Reason)
		if r.Err != nil {
			c.logger.Warn("Refusing to delete", "path", r.Path, "reason", r.Reason, "error", r.Err)
		}
	case ActionError:
		metrics.DeletionErrorsTotal.Inc()
		c.logger.Error("Failed to delete", "path", r.Path, "error", r.Err)
	}

	c.logStructured(r)

	if c.history == nil {
		return
	}
	rec := database.DeletionRecord{
		RunID:  c.runID,
		Action: r.Action,
		Path:   r.Path,
		Keeper: r.Keeper,
		Digest: r.Digest.String(),
		Size:   r.Size,
		Reason: r.Reason,
	}
	if r.Err != nil {
		rec.ErrorMessage = r.Err.Error()
	}
	if err := c.history.RecordDeletion(rec); err != nil {
		// Don't fail cleanup if DB write fails
		c.logger.Error("Failed to record to database", "path", r.Path, "error", err)
	}
}

// logStructured logs: timestamp, action, path, keeper, digest, size and reason
func (c *Cleaner) logStructured(r Result) {
	entry := fmt.Sprintf("[%s] %s path=%s keeper=%s digest=%s size=%d",
		time.Now().UTC().Format(time.RFC3339),
		r.Action,
		r.Path,
		r.Keeper,
		r.Digest,
		r.Size,
	)
	if r.Reason != "" {
		entry += " reason=" + r.Reason
	}
	if r.Action == ActionError && r.Err != nil {
		entry += fmt.Sprintf(` error="%s"`, strings.ReplaceAll(r.Err.Error(), `"`, `\"`))
	}

	if c.actionLog != nil {
		io.WriteString(c.actionLog, entry+"\n")
	}
	c.logger.Info(entry)
}
