package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"dupesweep/internal/database"
	"dupesweep/internal/digest"
	"dupesweep/internal/exitcodes"
)

const examples = `
Examples:
  dupesweep-history -recent 10                 # Show 10 most recent outcomes
  dupesweep-history -runs 5                    # Show the last 5 runs
  dupesweep-history -run <id>                  # Show one run
  dupesweep-history -action ERROR              # Show failed deletions
  dupesweep-history -digest 26c7827d889f6da3   # Show one duplicate group
  dupesweep-history -stats -days 7             # Show weekly statistics
  dupesweep-history -prune -days 90            # Drop records older than 90 days
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// query renders history lookups to out, as tables or JSON
type query struct {
	db     *database.DeletionDB
	out    io.Writer
	asJSON bool
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dupesweep-history", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Parse command-line flags
	dbPath := fs.String("db", "/var/lib/dupesweep/history.db", "Path to deletion history database")
	recent := fs.Int("recent", 0, "Show N most recent outcomes")
	runs := fs.Int("runs", 0, "Show N most recent runs")
	runID := fs.String("run", "", "Show every outcome of one run")
	action := fs.String("action", "", "Filter by action (DELETE, DRY_RUN, SKIP, ERROR)")
	digestHex := fs.String("digest", "", "Show outcomes for one duplicate group (16 hex digits)")
	stats := fs.Bool("stats", false, "Show deletion statistics")
	days := fs.Int("days", 30, "Number of days for statistics and pruning")
	prune := fs.Bool("prune", false, "Delete records older than -days and compact the database")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitcodes.Success
		}
		return exitcodes.Usage
	}

	if !*stats && !*prune && *recent <= 0 && *runs <= 0 && *runID == "" && *action == "" && *digestHex == "" {
		fs.Usage()
		fmt.Fprint(stderr, examples)
		return exitcodes.Usage
	}

	var group digest.Digest
	if *digestHex != "" {
		d, err := digest.Parse(*digestHex)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return exitcodes.Usage
		}
		group = d
	}

	// Open database
	db, err := database.NewDeletionDB(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: Failed to open database %s: %v\n", *dbPath, err)
		return exitcodes.RuntimeError
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "ERROR: Failed to close database: %v\n", err)
		}
	}()

	q := &query{db: db, out: stdout, asJSON: *jsonOutput}

	// Handle different query modes
	switch {
	case *stats:
		err = q.stats(*days)
	case *prune:
		err = q.prune(*days)
	case *recent > 0:
		records, qerr := db.GetRecentDeletions(*recent)
		err = q.records("", records, qerr)
	case *runs > 0:
		err = q.runs(*runs)
	case *runID != "":
		records, qerr := db.GetDeletionsByRun(*runID)
		err = q.records(fmt.Sprintf("Outcomes of run %s", *runID), records, qerr)
	case *action != "":
		records, qerr := db.GetDeletionsByAction(*action)
		err = q.records(fmt.Sprintf("Records with action: %s", *action), records, qerr)
	default:
		records, qerr := db.GetDeletionsByDigest(group.String())
		err = q.records(fmt.Sprintf("Group %s (%s)", group, group.Decimal()), records, qerr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitcodes.RuntimeError
	}
	return exitcodes.Success
}

func (q *query) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(q.out, string(data))
	return err
}

func (q *query) stats(days int) error {
	stats, err := q.db.GetDeletionStats(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}

	if q.asJSON {
		return q.printJSON(stats)
	}

	fmt.Fprintf(q.out, "Deletion Statistics (Last %d days)\n", days)
	fmt.Fprintf(q.out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(q.out, "Runs:             %d\n", stats.TotalRuns)
	fmt.Fprintf(q.out, "Total Deletions:  %d\n", stats.TotalDeletions)
	fmt.Fprintf(q.out, "Total Skipped:    %d\n", stats.TotalSkipped)
	fmt.Fprintf(q.out, "Total Errors:     %d\n", stats.TotalErrors)
	fmt.Fprintf(q.out, "Space Freed:      %s\n\n", formatBytes(stats.TotalSpaceFreed))

	if len(stats.ByAction) > 0 {
		actions := make([]string, 0, len(stats.ByAction))
		for a := range stats.ByAction {
			actions = append(actions, a)
		}
		sort.Strings(actions)

		fmt.Fprintln(q.out, "By Action (all time):")
		for _, a := range actions {
			fmt.Fprintf(q.out, "  %-15s %d\n", a, stats.ByAction[a])
		}
	}
	return nil
}

func (q *query) prune(days int) error {
	n, err := q.db.DeleteOldRecords(days)
	if err != nil {
		return fmt.Errorf("prune records: %w", err)
	}
	if err := q.db.Vacuum(); err != nil {
		return fmt.Errorf("vacuum database: %w", err)
	}
	fmt.Fprintf(q.out, "Removed %d records older than %d days\n", n, days)
	return nil
}

func (q *query) runs(limit int) error {
	runs, err := q.db.GetRecentRuns(limit)
	if err != nil {
		return fmt.Errorf("get runs: %w", err)
	}

	if q.asJSON {
		return q.printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(q.out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(q.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Run\tStarted\tState\tDryRun\tGroups\tDeleted\tErrors\tFreed\tRoot")
	_, _ = fmt.Fprintln(w, "---\t-------\t-----\t------\t------\t-------\t------\t-----\t----")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%d\t%d\t%s\t%s\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.State, r.DryRun,
			r.Groups, r.Deleted, r.Errors, formatBytes(r.BytesFreed), r.Root)
	}
	return w.Flush()
}

func (q *query) records(title string, records []database.DeletionRecord, err error) error {
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if q.asJSON {
		// An empty result is still a JSON array
		if records == nil {
			records = []database.DeletionRecord{}
		}
		return q.printJSON(records)
	}

	if title != "" {
		fmt.Fprintf(q.out, "%s\n\n", title)
	}
	if len(records) == 0 {
		fmt.Fprintln(q.out, "No records found")
		return nil
	}

	w := tabwriter.NewWriter(q.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tReason\tSize\tDigest\tPath\tKeeper")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t----\t------\t----\t------")

	for _, r := range records {
		reason := r.Reason
		if r.ErrorMessage != "" {
			reason = r.ErrorMessage
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, reason,
			formatBytes(r.Size), r.Digest, r.Path, r.Keeper)
	}
	return w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
