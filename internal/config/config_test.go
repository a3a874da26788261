package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// TestDefaults verifies that an absent config file yields usable defaults
func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8192, cfg.Digest.BufferSize)
	assert.Equal(t, 30, cfg.Logging.RotationDays)
	assert.False(t, cfg.VerifyContent)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.FollowSymlinks)
	assert.Empty(t, cfg.DatabasePath, "deletion history is disabled by default")
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, `
dry_run: true
verify_content: true
exclude:
  - "*.tmp"
  - "  "
  - node_modules/
protected_paths:
  - /srv/keep/
digest:
  buffer_size: 65536
database_path: /var/lib/dupesweep/../dupesweep/history.db
metrics:
  textfile_path: /var/lib/node_exporter/dupesweep.prom
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.VerifyContent)
	assert.Equal(t, []string{"*.tmp", "node_modules/"}, cfg.Exclude)
	assert.Equal(t, []string{"/srv/keep"}, cfg.ProtectedPaths)
	assert.Equal(t, 65536, cfg.Digest.BufferSize)
	assert.Equal(t, "/var/lib/dupesweep/history.db", cfg.DatabasePath)
	assert.NotEmpty(t, cfg.Metrics.TextfilePath)
}

func TestEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.Digest.BufferSize)
}

func TestEnvironmentOverrides(t *testing.T) {
	p := writeConfig(t, "dry_run: false\ndigest:\n  buffer_size: 1024\n")
	t.Setenv("DUPESWEEP_DRY_RUN", "true")
	t.Setenv("DUPESWEEP_DIGEST_BUFFER_SIZE", "4096")
	t.Setenv("DUPESWEEP_EXCLUDE", "*.bak,*.swp")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.True(t, cfg.DryRun, "DUPESWEEP_DRY_RUN overrides the file")
	assert.Equal(t, 4096, cfg.Digest.BufferSize)
	assert.Len(t, cfg.Exclude, 2)
}

func TestInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative buffer", "digest:\n  buffer_size: -1\n"},
		{"cpu over 100", "resource_limits:\n  max_cpu_percent: 150\n"},
		{"negative nfs timeout", "nfs_timeout_seconds: -5\n"},
		{"relative protected path", "protected_paths:\n  - relative/dir\n"},
		{"unknown field", "scan_paths:\n  - /tmp\n"},
		{"malformed yaml", "dry_run: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
