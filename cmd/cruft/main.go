package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cruft/internal/core/config"
	crufterrors "cruft/internal/core/errors"
	"cruft/internal/data/history"
	"cruft/internal/engine/issues"
	"cruft/internal/engine/resolve"
	"cruft/internal/ui/report"
)

var (
	configPath  = flag.String("config", "", "Path to config file (default ./cruft.toml)")
	cwd         = flag.String("cwd", ".", "Working directory to analyze")
	tsconfig    = flag.String("tsconfig", "", "Path to compiler configuration file")
	production  = flag.Bool("production", false, "Only use production entry points and skip devDependencies")
	strict      = flag.Bool("strict", false, "Each workspace must declare everything it uses")
	noGitignore = flag.Bool("no-gitignore", false, "Do not respect .gitignore files")
	progress    = flag.Bool("progress", false, "Log every analyzed file")
	jsonOutput  = flag.Bool("json", false, "Emit the report as JSON")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.3.0"

const (
	exitIssues = 1
	exitConfig = 2
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("cruft v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	workDir, err := filepath.Abs(*cwd)
	if err != nil {
		slog.Error("failed to resolve working directory", "error", err)
		os.Exit(exitConfig)
	}

	cfg, err := loadConfig(workDir)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(exitConfig)
	}

	opts := config.Options{
		Cwd:          workDir,
		ConfigPath:   *configPath,
		TSConfigPath: *tsconfig,
		Gitignore:    !*noGitignore,
		IsStrict:     *strict,
		IsProduction: *production,
		Progress:     *progress,
	}

	result, err := resolve.Run(cfg, opts)
	if err != nil {
		if crufterrors.IsFatal(err) {
			slog.Error("configuration error", "error", err)
			os.Exit(exitConfig)
		}
		slog.Error("analysis failed", "error", err)
		os.Exit(exitConfig)
	}

	var previous *history.Run
	if cfg.History.Enabled {
		previous = recordHistory(workDir, cfg, result)
	}

	if *jsonOutput {
		if err := report.JSON(os.Stdout, result); err != nil {
			slog.Error("failed to write report", "error", err)
			os.Exit(exitConfig)
		}
	} else {
		if err := report.Text(os.Stdout, result, workDir); err != nil {
			slog.Error("failed to write report", "error", err)
			os.Exit(exitConfig)
		}
		report.Trend(os.Stdout, result, previous)
	}

	if result.TotalIssues() > 0 {
		os.Exit(exitIssues)
	}
}

// loadConfig falls back to defaults when no config file exists; an
// explicitly named file must exist.
func loadConfig(workDir string) (*config.Config, error) {
	path := *configPath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(workDir, config.DefaultFile)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// recordHistory persists the finished run and returns the previous one
// for the trend line. History failures never fail the run.
func recordHistory(workDir string, cfg *config.Config, result *issues.Report) *history.Run {
	path := cfg.History.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("failed to open history store", "path", path, "error", err)
		return nil
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close history store", "error", err)
		}
	}()

	previous, err := store.PreviousRun(result.RunID)
	if err != nil {
		slog.Warn("failed to read previous run", "error", err)
	}
	if err := store.RecordRun(result); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
	return previous
}
