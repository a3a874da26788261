// Package sweep runs one scan-report-confirm-delete cycle.
//
// A run moves through a fixed set of states:
//
//	START → ENUMERATING → INDEX_BUILT
//	INDEX_BUILT → REPORT_NONE → DONE                      (no duplicates)
//	INDEX_BUILT → AWAITING_CONFIRMATION
//	AWAITING_CONFIRMATION → DELETING → REPORT_RESULTS → DONE (confirmed)
//	AWAITING_CONFIRMATION → REPORT_SKIPPED → DONE            (declined)
//
// The confirmation gate is consulted exactly once, and only when at least one
// duplicate group exists. Only an unusable root aborts a run.
package sweep

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"dupesweep/internal/cleanup"
	"dupesweep/internal/config"
	"dupesweep/internal/confirm"
	"dupesweep/internal/database"
	"dupesweep/internal/digest"
	"dupesweep/internal/disk"
	"dupesweep/internal/fsops"
	"dupesweep/internal/index"
	"dupesweep/internal/limiter"
	"dupesweep/internal/logging"
	"dupesweep/internal/metrics"
	"dupesweep/internal/report"
	"dupesweep/internal/safety"
	"dupesweep/internal/scan"
)

// State is one step of a run
type State string

const (
	StateStart                State = "START"
	StateEnumerating          State = "ENUMERATING"
	StateIndexBuilt           State = "INDEX_BUILT"
	StateReportNone           State = "REPORT_NONE"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateDeleting             State = "DELETING"
	StateReportResults        State = "REPORT_RESULTS"
	StateReportSkipped        State = "REPORT_SKIPPED"
	StateDone                 State = "DONE"

	// StateFailed is recorded in metrics and history when the root is unusable
	StateFailed State = "FAILED"
)

// History stores runs and their outcomes; *database.DeletionDB satisfies it
type History interface {
	cleanup.HistoryRecorder
	StartRun(root string, dryRun, verifyContent bool) (string, error)
	FinishRun(runID string, s database.RunSummary) error
}

// Outcome describes a finished run
type Outcome struct {
	Root      string
	RunID     string
	States    []State
	Scan      scan.Stats
	Files     int
	Groups    []index.Group
	Failures  []index.Failure
	Confirmed bool
	Summary   cleanup.Summary
}

// State returns the last state reached
func (o *Outcome) State() State {
	if len(o.States) == 0 {
		return ""
	}
	return o.States[len(o.States)-1]
}

// Sweeper wires the scan, index, report, confirmation and cleanup stages
type Sweeper struct {
	cfg       *config.Config
	logger    *log.Logger
	leveled   *logging.Leveled
	reporter  report.Reporter
	gate      confirm.Gate
	digester  index.Digester
	deleter   fsops.Deleter
	history   History
	actionLog io.Writer
	throttle  *limiter.CPULimiter
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithReporter sets where the report goes (default: text on stdout)
func WithReporter(r report.Reporter) Option {
	return func(s *Sweeper) { s.reporter = r }
}

// WithGate sets the confirmation gate (default: always decline)
func WithGate(g confirm.Gate) Option {
	return func(s *Sweeper) { s.gate = g }
}

// WithHistory records the run and every outcome in h
func WithHistory(h History) Option {
	return func(s *Sweeper) { s.history = h }
}

// WithDeleter replaces the OS deleter
func WithDeleter(d fsops.Deleter) Option {
	return func(s *Sweeper) { s.deleter = d }
}

// WithDigester replaces the file digester
func WithDigester(d index.Digester) Option {
	return func(s *Sweeper) { s.digester = d }
}

// WithActionLog mirrors structured deletion lines to w
func WithActionLog(w io.Writer) Option {
	return func(s *Sweeper) { s.actionLog = w }
}

// New creates a Sweeper; a nil cfg selects config.Default()
func New(cfg *config.Config, logger *log.Logger, opts ...Option) *Sweeper {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Sweeper{
		cfg:      cfg,
		logger:   logger,
		leveled:  logging.NewLeveled(logger),
		reporter: report.NewText(os.Stdout),
		gate:     confirm.Always(false),
		digester: digest.New(cfg.Digest.BufferSize),
		throttle: limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one full cycle rooted at root. A relative root is resolved
// against the working directory first, so every reported and deleted path is
// absolute. The returned error is non-nil only when root cannot be scanned
// (scan.ErrRootInvalid) or the report cannot be written.
func (s *Sweeper) Run(root string) (*Outcome, error) {
	out := &Outcome{Root: root}
	s.enter(out, StateStart)

	abs, err := filepath.Abs(root)
	if err != nil {
		s.leveled.Error("Cannot resolve root", "root", root, "error", err)
		s.finish(out, StateFailed)
		return out, fmt.Errorf("%w: %s: %v", scan.ErrRootInvalid, root, err)
	}
	root = abs
	out.Root = root
	s.startHistory(out)

	s.enter(out, StateEnumerating)
	scanner := scan.NewScanner(s.logger, scan.Options{
		FollowSymlinks: s.cfg.FollowSymlinks,
		Exclude:        s.cfg.Exclude,
	})
	builder := index.NewBuilder(s.digester, s.logger)
	if s.throttle.Enabled() {
		builder.SetThrottle(s.throttle)
	}

	start := time.Now()
	err = scanner.Walk(root, builder.Add)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	out.Scan = scanner.Stats()
	if err != nil {
		s.leveled.Error("Scan aborted", "root", root, "error", err)
		s.finish(out, StateFailed)
		return out, err
	}

	idx := builder.Index()
	out.Files = idx.Files()
	out.Failures = builder.Failures()
	out.Groups = idx.Groups()
	s.enter(out, StateIndexBuilt)

	totals := report.Summarize(out.Groups)
	metrics.SetDuplicates(totals.Groups, totals.RedundantFiles, totals.RedundantBytes)
	s.leveled.Info("Duplicate scan complete",
		"files", out.Files,
		"groups", totals.Groups,
		"redundant_files", totals.RedundantFiles,
		"redundant_bytes", totals.RedundantBytes,
		"unreadable", len(out.Failures),
	)
	s.reporter.Groups(out.Groups)

	var final State
	if len(out.Groups) == 0 {
		final = StateReportNone
		s.enter(out, final)
	} else {
		s.enter(out, StateAwaitingConfirmation)
		out.Confirmed = s.gate.Confirm()
		if out.Confirmed {
			s.enter(out, StateDeleting)
			before := s.freeSpace(root, "before")
			out.Summary = s.newCleaner(root, out.RunID).ExecuteAll(plansFor(out.Groups))
			if after := s.freeSpace(root, "after"); before >= 0 && after >= 0 {
				s.leveled.Info("Filesystem space reclaimed", "root", root, "delta_bytes", after-before)
			}
			final = StateReportResults
			s.enter(out, final)
			s.reporter.Results(out.Summary)
		} else {
			s.leveled.Info("Deletion declined by operator")
			final = StateReportSkipped
			s.enter(out, final)
			s.reporter.Skipped()
		}
	}

	flushErr := s.reporter.Flush()
	s.enter(out, StateDone)
	s.finish(out, final)
	if flushErr != nil {
		return out, fmt.Errorf("write report: %w", flushErr)
	}
	return out, nil
}

func (s *Sweeper) newCleaner(root, runID string) *cleanup.Cleaner {
	opts := []cleanup.Option{
		cleanup.WithDryRun(s.cfg.DryRun),
		cleanup.WithVerify(s.cfg.VerifyContent),
	}
	if s.history != nil && runID != "" {
		opts = append(opts, cleanup.WithHistory(s.history, runID))
	}
	if s.actionLog != nil {
		opts = append(opts, cleanup.WithActionLog(s.actionLog))
	}
	if s.cfg.NFSTimeout > 0 {
		opts = append(opts, cleanup.WithStaleCheck(time.Duration(s.cfg.NFSTimeout)*time.Second))
	}

	c := cleanup.NewCleaner(s.logger, opts...)
	c.SetValidator(safety.NewValidator([]string{root}, s.cfg.ProtectedPaths))
	if s.deleter != nil {
		c.SetDeleter(s.deleter)
	}
	return c
}

func plansFor(groups []index.Group) []cleanup.Plan {
	plans := make([]cleanup.Plan, 0, len(groups))
	for _, g := range groups {
		plans = append(plans, cleanup.PlanGroup(g))
	}
	return plans
}

func (s *Sweeper) enter(out *Outcome, st State) {
	out.States = append(out.States, st)
	s.leveled.Debug("Run state", "state", st)
}

func (s *Sweeper) startHistory(out *Outcome) {
	if s.history == nil {
		return
	}
	runID, err := s.history.StartRun(out.Root, s.cfg.DryRun, s.cfg.VerifyContent)
	if err != nil {
		// History is an audit trail; the run proceeds without it
		s.leveled.Error("Failed to record run start", "error", err)
		return
	}
	out.RunID = runID
}

// freeSpace logs and publishes the free bytes of root's filesystem, returning
// -1 when it cannot be measured
func (s *Sweeper) freeSpace(root, when string) int64 {
	u, err := disk.GetUsage(root)
	if err != nil {
		s.leveled.Warn("Cannot read filesystem usage", "root", root, "error", err)
		return -1
	}
	metrics.FilesystemFreeBytes.Set(float64(u.FreeBytes))
	s.leveled.Info("Filesystem usage", "when", when, "free_bytes", u.FreeBytes, "used_percent", fmt.Sprintf("%.1f", u.UsedPercent))
	return u.FreeBytes
}

// finish publishes the terminal state of a run
func (s *Sweeper) finish(out *Outcome, final State) {
	metrics.SetRunState(string(final))
	metrics.RecordRun()

	if s.history == nil || out.RunID == "" {
		return
	}
	err := s.history.FinishRun(out.RunID, database.RunSummary{
		State:      string(final),
		Groups:     len(out.Groups),
		Deleted:    out.Summary.Deleted,
		Errors:     out.Summary.Errors,
		BytesFreed: out.Summary.BytesFreed,
	})
	if err != nil {
		s.leveled.Error("Failed to record run finish", "run_id", out.RunID, "error", err)
	}
}
