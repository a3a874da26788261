package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dupesweep/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeveledFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := NewLeveled(log.New(&buf, "", 0))

	l.Warn("Failed to hash file", "path", "/tmp/x", "error", "permission denied")
	l.Info("odd", "dangling")

	got := buf.String()
	assert.Contains(t, got, "[WARN] Failed to hash file path=/tmp/x error=permission denied\n")
	assert.Contains(t, got, "[INFO] odd dangling\n")
}

func TestLogFileReceivesOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "dupesweep.log")
	cfg := &config.Config{Logging: config.LoggingCfg{File: logPath, RotationDays: 7}}

	var console bytes.Buffer
	logger := NewWithOutput(&console, cfg)
	logger.Println("hello")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, console.String(), "hello")
}

func TestRotationRenamesStaleLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "dupesweep.log")
	require.NoError(t, os.WriteFile(logPath, []byte("old\n"), 0o644))
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(logPath, old, old))

	rotateLogsIfNeeded(logPath, 3)

	assert.NoFileExists(t, logPath, "stale log should be renamed away")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// The rotated file keeps its old mtime, so the cleanup pass removes it too.
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "dupesweep.log."),
			"rotated log older than retention should be removed, found %s", e.Name())
	}
}

func TestDebugGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLeveled(log.New(&buf, "", 0))

	l.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug output should be suppressed")

	SetDebug(true)
	defer SetDebug(false)
	l.Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), "[DEBUG] shown k=1")
}
