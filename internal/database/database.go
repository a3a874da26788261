package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DeletionDB manages the SQLite database for deletion history. It records what
// each run removed; it is never consulted to skip digesting on later runs.
type DeletionDB struct {
	db *sql.DB
}

// DeletionRecord represents the outcome for one removal candidate
type DeletionRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Action       string // DELETE, DRY_RUN, SKIP or ERROR
	Path         string
	FileName     string
	Keeper       string
	Digest       string // 16 hex digits
	Size         int64
	Reason       string // Why a SKIP happened, empty otherwise
	ErrorMessage string
	CreatedAt    time.Time
}

// RunRecord summarises one invocation
type RunRecord struct {
	RunID         string
	Root          string
	StartedAt     time.Time
	FinishedAt    *time.Time
	State         string
	DryRun        bool
	VerifyContent bool
	Groups        int
	Deleted       int
	Errors        int
	BytesFreed    int64
}

// RunSummary carries the totals written when a run finishes
type RunSummary struct {
	State      string
	Groups     int
	Deleted    int
	Errors     int
	BytesFreed int64
}

// NewDeletionDB creates a new database connection and initializes schema
func NewDeletionDB(dbPath string) (*DeletionDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Force file creation now rather than on first write
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	ddb := &DeletionDB{db: db}
	if err = ddb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return ddb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *DeletionDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		state TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		verify_content INTEGER NOT NULL DEFAULT 0,
		groups_found INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		bytes_freed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		keeper TEXT NOT NULL,
		digest TEXT NOT NULL,
		size INTEGER NOT NULL,
		reason TEXT,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_run_id ON deletions(run_id);
	CREATE INDEX IF NOT EXISTS idx_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_path ON deletions(path);
	CREATE INDEX IF NOT EXISTS idx_digest ON deletions(digest);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// StartRun opens a run row and returns its generated id
func (d *DeletionDB) StartRun(root string, dryRun, verifyContent bool) (string, error) {
	runID := uuid.NewString()
	_, err := d.db.Exec(`
		INSERT INTO runs (run_id, root, started_at, state, dry_run, verify_content)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, root, time.Now(), "START", dryRun, verifyContent)
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return runID, nil
}

// FinishRun stores the terminal state and totals of a run
func (d *DeletionDB) FinishRun(runID string, s RunSummary) error {
	res, err := d.db.Exec(`
		UPDATE runs
		SET finished_at = ?, state = ?, groups_found = ?, deleted = ?, errors = ?, bytes_freed = ?
		WHERE run_id = ?
	`, time.Now(), s.State, s.Groups, s.Deleted, s.Errors, s.BytesFreed, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

// RecordDeletion inserts one removal outcome into the database
func (d *DeletionDB) RecordDeletion(rec DeletionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.FileName == "" {
		rec.FileName = filepath.Base(rec.Path)
	}

	_, err := d.db.Exec(`
	INSERT INTO deletions (
		run_id, timestamp, action, path, file_name, keeper, digest, size, reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.Timestamp,
		rec.Action,
		rec.Path,
		rec.FileName,
		rec.Keeper,
		rec.Digest,
		rec.Size,
		nullString(rec.Reason),
		nullString(rec.ErrorMessage),
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the database connection
func (d *DeletionDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *DeletionDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}
