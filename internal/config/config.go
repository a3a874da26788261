package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. DUPESWEEP_DRY_RUN=true.
const EnvPrefix = "DUPESWEEP"

type DigestCfg struct {
	BufferSize int `yaml:"buffer_size" json:"buffer_size" envconfig:"BUFFER_SIZE"` // Read chunk in bytes (default: 8192)
}

type LoggingCfg struct {
	Debug        bool   `yaml:"debug" json:"debug" envconfig:"DEBUG"`                         // Emit [DEBUG] lines
	File         string `yaml:"file" json:"file" envconfig:"FILE"`                            // Optional log file in addition to stderr
	RotationDays int    `yaml:"rotation_days" json:"rotation_days" envconfig:"ROTATION_DAYS"` // Days to keep logs before rotation
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent" envconfig:"MAX_CPU_PERCENT"` // 0 disables throttling
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path" envconfig:"TEXTFILE_PATH"` // node_exporter textfile target
}

type Config struct {
	DryRun         bool           `yaml:"dry_run" json:"dry_run" envconfig:"DRY_RUN"`
	VerifyContent  bool           `yaml:"verify_content" json:"verify_content" envconfig:"VERIFY_CONTENT"` // Byte-compare against the keeper before deleting
	FollowSymlinks bool           `yaml:"follow_symlinks" json:"follow_symlinks" envconfig:"FOLLOW_SYMLINKS"`
	Exclude        []string       `yaml:"exclude" json:"exclude" envconfig:"EXCLUDE"`                         // gitignore-style patterns
	ProtectedPaths []string       `yaml:"protected_paths" json:"protected_paths" envconfig:"PROTECTED_PATHS"` // Never deleted, in addition to the built-in list
	Digest         DigestCfg      `yaml:"digest" json:"digest" envconfig:"DIGEST"`
	Logging        LoggingCfg     `yaml:"logging" json:"logging" envconfig:"LOGGING"`
	ResourceLimits ResourceLimits `yaml:"resource_limits" json:"resource_limits" envconfig:"RESOURCE_LIMITS"`
	Metrics        MetricsCfg     `yaml:"metrics" json:"metrics" envconfig:"METRICS"`
	DatabasePath   string         `yaml:"database_path" json:"database_path" envconfig:"DATABASE_PATH"`                   // SQLite deletion history, empty disables
	NFSTimeout     int            `yaml:"nfs_timeout_seconds" json:"nfs_timeout_seconds" envconfig:"NFS_TIMEOUT_SECONDS"` // Stale-mount check before each delete, 0 disables
}

var (
	errInvalidPath       = errors.New("path must be absolute")
	errNegativeBuffer    = errors.New("digest.buffer_size cannot be negative")
	errInvalidCPUPercent = errors.New("resource_limits.max_cpu_percent must be between 0 and 100")
	errNegativeTimeout   = errors.New("nfs_timeout_seconds cannot be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	// Defaults alone always validate.
	_ = cfg.validateAndDefault()
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// DUPESWEEP_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		cfg, err = decode(f)
		if err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-checks a config after flag overrides have been applied.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if c.Digest.BufferSize < 0 {
		return errNegativeBuffer
	}
	if c.Digest.BufferSize == 0 {
		c.Digest.BufferSize = 8192
	}

	if c.ResourceLimits.MaxCPUPercent < 0 || c.ResourceLimits.MaxCPUPercent > 100 {
		return errInvalidCPUPercent
	}

	if c.NFSTimeout < 0 {
		return errNegativeTimeout
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	patterns := make([]string, 0, len(c.Exclude))
	for _, p := range c.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	c.Exclude = patterns

	protected := make([]string, 0, len(c.ProtectedPaths))
	for _, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths: %w", err)
		}
		protected = append(protected, cp)
	}
	c.ProtectedPaths = protected

	if c.DatabasePath != "" {
		c.DatabasePath = filepath.Clean(c.DatabasePath)
	}
	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}
