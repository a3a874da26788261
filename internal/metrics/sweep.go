package metrics

import (
	"sync"
	"time"
)

var stateMutex sync.Mutex

// Scan phase metrics
var (
	// FilesScannedTotal counts regular files produced by the enumerator
	FilesScannedTotal = NewCounter(
		"dupesweep_files_scanned_total",
		"Total number of regular files discovered by the directory walk.",
	)

	// FilesExcludedTotal counts entries skipped by exclude patterns
	FilesExcludedTotal = NewCounter(
		"dupesweep_files_excluded_total",
		"Total number of entries skipped by exclude patterns.",
	)

	// TraversalErrorsTotal counts directory entries that could not be resolved
	TraversalErrorsTotal = NewCounter(
		"dupesweep_traversal_errors_total",
		"Total number of directory entries skipped because they could not be read.",
	)

	// FilesHashedTotal counts files successfully digested
	FilesHashedTotal = NewCounter(
		"dupesweep_files_hashed_total",
		"Total number of files successfully digested.",
	)

	// BytesHashedTotal counts bytes fed into the digester
	BytesHashedTotal = NewCounter(
		"dupesweep_bytes_hashed_total",
		"Total bytes of file content digested.",
	)

	// DigestErrorsTotal counts files excluded because they could not be read
	DigestErrorsTotal = NewCounter(
		"dupesweep_digest_errors_total",
		"Total number of files that could not be opened or read while digesting.",
	)

	// HashedFileBytes tracks the size distribution of digested files
	HashedFileBytes = NewBytesHistogram(
		"dupesweep_hashed_file_bytes",
		"Size distribution of digested files in bytes.",
	)
)

// Deletion phase metrics
var (
	// FilesDeletedTotal counts duplicates removed from disk
	FilesDeletedTotal = NewCounter(
		"dupesweep_files_deleted_total",
		"Total number of duplicate files deleted.",
	)

	// BytesFreedTotal counts bytes reclaimed by deletions
	BytesFreedTotal = NewCounter(
		"dupesweep_bytes_freed_total",
		"Total bytes freed by deleting duplicates.",
	)

	// DeletionErrorsTotal counts removal attempts that failed
	DeletionErrorsTotal = NewCounter(
		"dupesweep_deletion_errors_total",
		"Total number of duplicate files that could not be deleted.",
	)

	// DeletionsSkippedTotal counts removal candidates left in place, by reason
	DeletionsSkippedTotal = NewCounterVec(
		"dupesweep_deletions_skipped_total",
		"Total number of removal candidates skipped, by reason.",
		[]string{"reason"},
	)
)

// Run level metrics
var (
	// DuplicateGroups is the number of duplicate groups found by the last scan
	DuplicateGroups = NewGauge(
		"dupesweep_duplicate_groups",
		"Number of duplicate groups found by the last scan.",
	)

	// RedundantFiles is the number of non-keeper files in the last scan's groups
	RedundantFiles = NewGauge(
		"dupesweep_redundant_files",
		"Number of redundant (non-keeper) files found by the last scan.",
	)

	// RedundantBytes is the size of the non-keeper files in the last scan's groups
	RedundantBytes = NewGauge(
		"dupesweep_redundant_bytes",
		"Bytes held by redundant (non-keeper) files found by the last scan.",
	)

	// ScanDuration tracks how long the enumerate-and-digest phase takes
	ScanDuration = NewDurationHistogram(
		"dupesweep_scan_duration_seconds",
		"Duration of the build phase (walk and digest) in seconds.",
	)

	// DeletionDuration tracks how long the deletion phase takes
	DeletionDuration = NewDurationHistogram(
		"dupesweep_deletion_duration_seconds",
		"Duration of the deletion phase in seconds.",
	)

	// FilesystemFreeBytes is the free space of the filesystem holding the scan root
	FilesystemFreeBytes = NewGauge(
		"dupesweep_filesystem_free_bytes",
		"Free bytes on the filesystem holding the scan root, measured at the end of the last run.",
	)

	// LastRunTimestamp records the Unix timestamp of the last completed run
	LastRunTimestamp = NewGauge(
		"dupesweep_last_run_timestamp",
		"Timestamp of the last completed run (Unix epoch seconds).",
	)

	// LastRunState records the terminal report state of the last run
	LastRunState = NewGaugeVec(
		"dupesweep_last_run_state",
		"Terminal report state of the last run (1 for the active state).",
		[]string{"state"},
	)
)

func registerScanMetrics() {
	registry.MustRegister(FilesScannedTotal)
	registry.MustRegister(FilesExcludedTotal)
	registry.MustRegister(TraversalErrorsTotal)
	registry.MustRegister(FilesHashedTotal)
	registry.MustRegister(BytesHashedTotal)
	registry.MustRegister(DigestErrorsTotal)
	registry.MustRegister(HashedFileBytes)
}

func registerDeletionMetrics() {
	registry.MustRegister(FilesDeletedTotal)
	registry.MustRegister(BytesFreedTotal)
	registry.MustRegister(DeletionErrorsTotal)
	registry.MustRegister(DeletionsSkippedTotal)
}

func registerRunMetrics() {
	registry.MustRegister(DuplicateGroups)
	registry.MustRegister(RedundantFiles)
	registry.MustRegister(RedundantBytes)
	registry.MustRegister(ScanDuration)
	registry.MustRegister(DeletionDuration)
	registry.MustRegister(FilesystemFreeBytes)
	registry.MustRegister(LastRunTimestamp)
	registry.MustRegister(LastRunState)
}

// RecordHashed records one successfully digested file
func RecordHashed(size int64) {
	FilesHashedTotal.Inc()
	BytesHashedTotal.Add(float64(size))
	HashedFileBytes.Observe(float64(size))
}

// RecordDeletion records one removed duplicate
func RecordDeletion(size int64) {
	FilesDeletedTotal.Inc()
	BytesFreedTotal.Add(float64(size))
}

// RecordSkip records a removal candidate left in place
func RecordSkip(reason string) {
	DeletionsSkippedTotal.WithLabelValues(reason).Inc()
}

// SetDuplicates publishes the size of the last scan's duplicate set
func SetDuplicates(groups, redundantFiles int, redundantBytes int64) {
	DuplicateGroups.Set(float64(groups))
	RedundantFiles.Set(float64(redundantFiles))
	RedundantBytes.Set(float64(redundantBytes))
}

// SetRunState resets all state gauges to 0, then sets the given state to 1
func SetRunState(state string) {
	stateMutex.Lock()
	defer stateMutex.Unlock()

	LastRunState.Reset()
	LastRunState.WithLabelValues(state).Set(1)
}

// RecordRun updates the last run timestamp to the current time
func RecordRun() {
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

