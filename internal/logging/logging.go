package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"dupesweep/internal/config"
)

const defaultRotationDays = 30

var debugEnabled atomic.Bool

// SetDebug turns [DEBUG] output on or off for every Leveled logger
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// New creates a logger writing to stderr only
func New() *log.Logger {
	return NewWithConfig(nil)
}

// NewWithConfig creates a logger writing to stderr and, when cfg names a log
// file, appending to that file as well (rotated by age)
func NewWithConfig(cfg *config.Config) *log.Logger {
	return newLogger(os.Stderr, cfg)
}

// NewWithOutput is NewWithConfig with console output sent to w instead of stderr
func NewWithOutput(w io.Writer, cfg *config.Config) *log.Logger {
	return newLogger(w, cfg)
}

func newLogger(console io.Writer, cfg *config.Config) *log.Logger {
	const flags = log.LstdFlags | log.Lmicroseconds
	if cfg == nil || cfg.Logging.File == "" {
		return log.New(console, "", flags)
	}

	filePath := cfg.Logging.File
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", filepath.Dir(filePath), err)
	}

	rotateDays := defaultRotationDays
	if cfg.Logging.RotationDays > 0 {
		rotateDays = cfg.Logging.RotationDays
	}
	rotateLogsIfNeeded(filePath, rotateDays)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(console, "", flags)
	}

	return log.New(io.MultiWriter(console, f), "", flags)
}

// Leveled adds [LEVEL] prefixes and key/value formatting on top of a *log.Logger
type Leveled struct {
	*log.Logger
}

// NewLeveled wraps logger; nil selects log.Default()
func NewLeveled(logger *log.Logger) *Leveled {
	if logger == nil {
		logger = log.Default()
	}
	return &Leveled{Logger: logger}
}

func (l *Leveled) Debug(msg string, args ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	l.logWithLevel("DEBUG", msg, args...)
}

func (l *Leveled) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *Leveled) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *Leveled) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *Leveled) logWithLevel(level, msg string, args ...interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	l.Logger.Println(b.String())
}

// rotateLogsIfNeeded rotates the log file once it is older than rotationDays
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
		if err := os.Rename(logPath, rotatedPath); err != nil {
			log.Printf("failed to rotate log file: %v", err)
			return
		}
		cleanupOldLogs(logPath, rotationDays)
	}
}

// cleanupOldLogs removes rotated log files older than rotationDays
func cleanupOldLogs(logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}
