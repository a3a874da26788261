package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dupesweep/internal/database"
	"dupesweep/internal/exitcodes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedHistory writes one finished run with a deletion and a skip
func seedHistory(t *testing.T) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := database.NewDeletionDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	runID, err := db.StartRun("/data", false, false)
	require.NoError(t, err)
	require.NoError(t, db.RecordDeletion(database.DeletionRecord{
		RunID: runID, Action: "DELETE", Path: "/data/b.txt", Keeper: "/data/a.txt",
		Digest: "26c7827d889f6da3", Size: 2048,
	}))
	require.NoError(t, db.RecordDeletion(database.DeletionRecord{
		RunID: runID, Action: "SKIP", Path: "/data/c.txt", Keeper: "/data/a.txt",
		Digest: "26c7827d889f6da3", Size: 2048, Reason: "content_mismatch",
	}))
	require.NoError(t, db.FinishRun(runID, database.RunSummary{State: "REPORT_RESULTS", Groups: 1, Deleted: 1, BytesFreed: 2048}))
	return dbPath, runID
}

func runHistory(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestNoQueryPrintsUsage(t *testing.T) {
	code, stdout, stderr := runHistory("-db", filepath.Join(t.TempDir(), "h.db"))
	assert.Equal(t, exitcodes.Usage, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Examples:")
}

func TestRunQueryTable(t *testing.T) {
	dbPath, runID := seedHistory(t)

	code, stdout, stderr := runHistory("-db", dbPath, "-run", runID)
	require.Equal(t, exitcodes.Success, code, stderr)
	assert.Contains(t, stdout, "Outcomes of run "+runID)
	assert.Contains(t, stdout, "/data/b.txt")
	assert.Contains(t, stdout, "2.0 KB")
	assert.Contains(t, stdout, "content_mismatch")
}

func TestActionQueryJSON(t *testing.T) {
	dbPath, runID := seedHistory(t)

	code, stdout, stderr := runHistory("-db", dbPath, "-action", "DELETE", "-json")
	require.Equal(t, exitcodes.Success, code, stderr)

	var recs []database.DeletionRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &recs), "stdout is not JSON:\n%s", stdout)
	require.Len(t, recs, 1)
	assert.Equal(t, runID, recs[0].RunID)
	assert.Equal(t, "/data/b.txt", recs[0].Path)
	assert.Equal(t, "b.txt", recs[0].FileName)
}

func TestDigestQuery(t *testing.T) {
	dbPath, _ := seedHistory(t)

	code, stdout, _ := runHistory("-db", dbPath, "-digest", "26c7827d889f6da3", "-json")
	require.Equal(t, exitcodes.Success, code)
	var recs []database.DeletionRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &recs))
	assert.Len(t, recs, 2)

	code, stdout, _ = runHistory("-db", dbPath, "-digest", "00000000000000ff", "-json")
	require.Equal(t, exitcodes.Success, code)
	assert.Equal(t, "[]\n", stdout)

	code, _, stderr := runHistory("-db", dbPath, "-digest", "not-hex")
	assert.Equal(t, exitcodes.Usage, code)
	assert.Contains(t, stderr, "ERROR:")
}

func TestRunsAndStats(t *testing.T) {
	dbPath, runID := seedHistory(t)

	code, stdout, _ := runHistory("-db", dbPath, "-runs", "5")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, runID)
	assert.Contains(t, stdout, "REPORT_RESULTS")

	code, stdout, _ = runHistory("-db", dbPath, "-stats", "-json")
	require.Equal(t, exitcodes.Success, code)
	var stats database.DeletionStats
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 1, stats.TotalDeletions)
	assert.Equal(t, 1, stats.TotalSkipped)
	assert.Equal(t, int64(2048), stats.TotalSpaceFreed)
}

func TestOpenFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	code, _, stderr := runHistory("-db", filepath.Join(blocker, "h.db"), "-recent", "1")
	assert.Equal(t, exitcodes.RuntimeError, code)
	assert.Contains(t, stderr, "Failed to open database")
}
