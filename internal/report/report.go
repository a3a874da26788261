// Package report renders scan and deletion outcomes for the operator.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"dupesweep/internal/cleanup"
	"dupesweep/internal/index"
)

// Reporter receives each phase of a run. Flush must be called once at the end.
type Reporter interface {
	Groups(groups []index.Group)
	Skipped()
	Results(s cleanup.Summary)
	Flush() error
}

// New returns a JSON reporter when asJSON is set, text otherwise
func New(w io.Writer, asJSON bool) Reporter {
	if asJSON {
		return NewJSON(w)
	}
	return NewText(w)
}

// Totals describes the redundant share of a set of groups
type Totals struct {
	Groups         int   `json:"groups"`
	RedundantFiles int   `json:"redundant_files"`
	RedundantBytes int64 `json:"redundant_bytes"`
}

// Summarize counts everything except each group's keeper
func Summarize(groups []index.Group) Totals {
	t := Totals{Groups: len(groups)}
	for _, g := range groups {
		t.RedundantFiles += g.Len() - 1
		t.RedundantBytes += g.RedundantBytes()
	}
	return t
}

// Text writes the human-readable report
type Text struct {
	w   io.Writer
	err error
}

// NewText creates a text reporter writing to w
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (t *Text) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

// Groups prints every group, the summary line and the redundant paths
func (t *Text) Groups(groups []index.Group) {
	if len(groups) == 0 {
		t.printf("No duplicate files found.\n")
		return
	}
	for _, g := range groups {
		t.printf("Files with hash %s (%s):\n", g.Digest.Decimal(), g.Digest)
		for i, p := range g.Paths {
			if i == 0 {
				t.printf("    %s (keep)\n", p)
				continue
			}
			t.printf("    %s\n", p)
		}
	}

	sum := Summarize(groups)
	t.printf("\nFound %d duplicate groups (%d redundant files, %d bytes).\n",
		sum.Groups, sum.RedundantFiles, sum.RedundantBytes)
	t.printf("Duplicate files found:\n")
	for _, g := range groups {
		for _, p := range g.Paths[1:] {
			t.printf("%s\n", p)
		}
	}
}

// Skipped notes that the operator declined
func (t *Text) Skipped() {
	t.printf("Deletion skipped.\n")
}

// Results prints one line per outcome and a totals line
func (t *Text) Results(s cleanup.Summary) {
	for _, r := range s.Results {
		switch r.Action {
		case cleanup.ActionDelete:
			t.printf("Deleted %s\n", r.Path)
		case cleanup.ActionDryRun:
			t.printf("Would delete %s\n", r.Path)
		case cleanup.ActionSkip:
			t.printf("Skipped %s (%s)\n", r.Path, r.Reason)
		case cleanup.ActionError:
			t.printf("Failed to delete %s: %v\n", r.Path, r.Err)
		}
	}
	if s.DryRun > 0 {
		t.printf("Dry run: %d files would be deleted (%d bytes).\n", s.DryRun, s.DryRunBytes)
	}
	t.printf("Deleted %d files (%d bytes freed), %d skipped, %d failed.\n",
		s.Deleted, s.BytesFreed, s.Skipped, s.Errors)
}

// Flush returns the first write error
func (t *Text) Flush() error {
	return t.err
}

// Document is the JSON form of one run
type Document struct {
	Summary   Totals       `json:"summary"`
	Groups    []GroupDoc   `json:"groups"`
	Confirmed *bool        `json:"deletion_confirmed,omitempty"`
	Results   []ResultDoc  `json:"results,omitempty"`
	Totals    *DeletionDoc `json:"totals,omitempty"`
}

// GroupDoc is one duplicate group
type GroupDoc struct {
	Digest     string   `json:"digest"`
	Decimal    string   `json:"digest_decimal"`
	Keeper     string   `json:"keeper"`
	Duplicates []string `json:"duplicates"`
	Bytes      int64    `json:"redundant_bytes"`
}

// ResultDoc is one removal outcome
type ResultDoc struct {
	Path   string `json:"path"`
	Keeper string `json:"keeper"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DeletionDoc totals the removal outcomes
type DeletionDoc struct {
	Deleted     int   `json:"deleted"`
	DryRun      int   `json:"dry_run"`
	Skipped     int   `json:"skipped"`
	Errors      int   `json:"errors"`
	BytesFreed  int64 `json:"bytes_freed"`
	DryRunBytes int64 `json:"dry_run_bytes"`
}

// JSON collects the run and writes a single document on Flush
type JSON struct {
	w   io.Writer
	doc Document
}

// NewJSON creates a JSON reporter writing to w
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w, doc: Document{Groups: []GroupDoc{}}}
}

func (j *JSON) Groups(groups []index.Group) {
	j.doc.Summary = Summarize(groups)
	for _, g := range groups {
		j.doc.Groups = append(j.doc.Groups, GroupDoc{
			Digest:     g.Digest.String(),
			Decimal:    g.Digest.Decimal(),
			Keeper:     g.Paths[0],
			Duplicates: append([]string(nil), g.Paths[1:]...),
			Bytes:      g.RedundantBytes(),
		})
	}
}

func (j *JSON) Skipped() {
	confirmed := false
	j.doc.Confirmed = &confirmed
}

func (j *JSON) Results(s cleanup.Summary) {
	confirmed := true
	j.doc.Confirmed = &confirmed
	for _, r := range s.Results {
		rd := ResultDoc{
			Path:   r.Path,
			Keeper: r.Keeper,
			Digest: r.Digest.String(),
			Size:   r.Size,
			Action: r.Action,
			Reason: r.Reason,
		}
		if r.Err != nil {
			rd.Error = r.Err.Error()
		}
		j.doc.Results = append(j.doc.Results, rd)
	}
	j.doc.Totals = &DeletionDoc{
		Deleted:     s.Deleted,
		DryRun:      s.DryRun,
		Skipped:     s.Skipped,
		Errors:      s.Errors,
		BytesFreed:  s.BytesFreed,
		DryRunBytes: s.DryRunBytes,
	}
}

func (j *JSON) Flush() error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.doc)
}
