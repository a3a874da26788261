package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"dupesweep/internal/config"
	"dupesweep/internal/confirm"
	"dupesweep/internal/database"
	"dupesweep/internal/exitcodes"
	"dupesweep/internal/logging"
	"dupesweep/internal/metrics"
	"dupesweep/internal/report"
	"dupesweep/internal/scan"
	"dupesweep/internal/sweep"
)

// stringList collects a repeatable flag
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dupesweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: dupesweep [flags] <directory>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	// Parse command-line flags
	configPath := fs.String("config", "", "Path to YAML configuration file (optional)")
	dryRun := fs.Bool("dry-run", false, "Report what would be deleted without deleting")
	verify := fs.Bool("verify", false, "Byte-compare each duplicate with its keeper before deleting")
	yes := fs.Bool("yes", false, "Delete without asking for confirmation")
	asJSON := fs.Bool("json", false, "Write the report as JSON")
	followSymlinks := fs.Bool("follow-symlinks", false, "Treat symlinks to regular files as files")
	verbose := fs.Bool("v", false, "Enable debug logging")
	var excludes stringList
	fs.Var(&excludes, "exclude", "gitignore-style pattern to skip (repeatable)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitcodes.Success
		}
		return exitcodes.Usage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitcodes.Usage
	}
	root := fs.Arg(0)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: Failed to load config: %v\n", err)
		return exitcodes.InvalidConfig
	}

	// Flags given on the command line win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dry-run":
			cfg.DryRun = *dryRun
		case "verify":
			cfg.VerifyContent = *verify
		case "follow-symlinks":
			cfg.FollowSymlinks = *followSymlinks
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, excludes...)
		case "v":
			cfg.Logging.Debug = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "ERROR: Invalid configuration: %v\n", err)
		return exitcodes.InvalidConfig
	}

	// Initialize logger
	logger := logging.NewWithOutput(stderr, cfg)
	logging.SetDebug(cfg.Logging.Debug)
	if cfg.DryRun {
		logger.Println("DRY RUN MODE: No files will be deleted")
	}

	metrics.Init()

	// Initialize database for deletion history
	opts := []sweep.Option{sweep.WithReporter(report.New(stdout, *asJSON))}
	if cfg.DatabasePath != "" {
		db, err := database.NewDeletionDB(cfg.DatabasePath)
		if err != nil {
			logger.Printf("ERROR: Failed to open database: %v", err)
			return exitcodes.RuntimeError
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
		opts = append(opts, sweep.WithHistory(db))
	}

	if *yes {
		opts = append(opts, sweep.WithGate(confirm.Always(true)))
	} else {
		// Keep stdout a clean JSON document when -json is set
		promptOut := stdout
		if *asJSON {
			promptOut = stderr
		}
		opts = append(opts, sweep.WithGate(&confirm.Prompt{In: stdin, Out: promptOut}))
	}

	_, err = sweep.New(cfg, logger, opts...).Run(root)

	if cfg.Metrics.TextfilePath != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
			logger.Printf("ERROR: Failed to write metrics textfile: %v", werr)
		}
	}

	if err != nil {
		if errors.Is(err, scan.ErrRootInvalid) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		} else {
			logger.Printf("ERROR: Run failed: %v", err)
		}
		return exitcodes.RuntimeError
	}
	return exitcodes.Success
}
