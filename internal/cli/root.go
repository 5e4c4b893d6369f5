// Package cli provides the command-line interface for refcheck.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/refcheck/internal/config"
	"github.com/raphaelgruber/refcheck/internal/db"
	"github.com/raphaelgruber/refcheck/internal/metrics"
	"github.com/raphaelgruber/refcheck/internal/service"
)

// Version is set at build time.
var Version = "0.1.0"

// options holds the flag values of the root command.
type options struct {
	configPath       string
	newDatabaseName  string
	oldDatabaseName  string
	format           string
	output           string
	logLevel         string
	concurrency      int
	progress         bool
	failOnRegression bool
}

// app carries the state shared by all commands of one invocation.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

// NewRootCmd builds the refcheck command tree writing to the given streams.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, closeLog: func() error { return nil }}

	rootCmd := &cobra.Command{
		Use:   "refcheck",
		Short: "Reference database regression checker",
		Long: `Refcheck compares the reference databases of two knowledgebase snapshots.

Every reference database of the previous (old) snapshot is looked up by its
canonical name in the current (new) snapshot and classified as missing,
reduced (fewer referrers than before) or stable.

Connection settings are read from config.properties (see --config) and
REFCHECK_* environment variables.

Examples:
  refcheck -n test_reactome_91 -o test_reactome_90
  refcheck -n gk_current -o gk_previous --format json --output report.json
  refcheck -n gk_current -o gk_previous --fail-on-regression`,
		Version:           Version,
		Args:              cobra.NoArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.withCleanup(a.runCheck),
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.opts.configPath, "config", "", "path to config.properties (default $REFCHECK_CONFIG or ./config.properties)")
	pf.StringVar(&a.opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logLevel)")

	f := rootCmd.Flags()
	f.StringVarP(&a.opts.newDatabaseName, "newDatabaseName", "n", "", "name of the current (new) snapshot")
	f.StringVarP(&a.opts.oldDatabaseName, "oldDatabaseName", "o", "", "name of the previous (old) snapshot")
	f.StringVar(&a.opts.format, "format", formatText, "report format: text, json, yaml")
	f.StringVar(&a.opts.output, "output", "", "write the report to this file instead of stdout")
	f.IntVar(&a.opts.concurrency, "concurrency", 1, "reference databases classified in parallel")
	f.BoolVar(&a.opts.progress, "progress", false, "show a progress bar on stderr when it is a terminal")
	f.BoolVar(&a.opts.failOnRegression, "fail-on-regression", false, "exit non-zero when a reference database is missing or reduced")
	_ = rootCmd.MarkFlagRequired("newDatabaseName")
	_ = rootCmd.MarkFlagRequired("oldDatabaseName")

	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))
	return rootCmd
}

// Execute runs the root command against the process streams.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// setup loads the configuration and the run logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	// Skip config for version and help commands
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}
	// cobra checks required flags only after this hook; a usage error must
	// win over configuration errors and must not leave a log file open.
	if err := cmd.ValidateRequiredFlags(); err != nil {
		return err
	}

	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.opts.logLevel != "" {
		level = config.ParseLogLevel(a.opts.logLevel)
	}
	logger, cleanup := config.SetupLogger(a.stderr, cfg.LogFile, level)
	a.logger = logger.With("run_id", uuid.NewString())
	a.closeLog = cleanup

	a.logger.Debug("configuration loaded", "source", cfg.Source, "log_file", cfg.LogFile, "log_level", level.String())
	return nil
}

// withCleanup closes the log file once fn returns. PersistentPostRun is
// skipped by cobra when RunE fails, so commands wrap themselves instead.
func (a *app) withCleanup(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if err := a.closeLog(); err != nil {
				fmt.Fprintf(a.stderr, "Warning: failed to close log file: %v\n", err)
			}
		}()
		return fn(cmd, args)
	}
}

// runCheck compares the old snapshot against the new one and writes the report.
func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format := strings.ToLower(a.opts.format)
	if !validFormat(format) {
		return &config.ConfigurationError{Source: "--format", Err: fmt.Errorf("unknown report format %q", a.opts.format)}
	}

	previousCfg, err := a.cfg.Snapshot(config.Previous, a.opts.oldDatabaseName)
	if err != nil {
		return err
	}
	currentCfg, err := a.cfg.Snapshot(config.Current, a.opts.newDatabaseName)
	if err != nil {
		return err
	}
	a.logger.Info("snapshots resolved", "previous", previousCfg, "current", currentCfg)

	previous, current, err := db.OpenPair(ctx, previousCfg, currentCfg, a.logger)
	if err != nil {
		return err
	}
	defer a.closeSnapshot(ctx, previous)
	defer a.closeSnapshot(ctx, current)

	collector := metrics.NewCollector()
	compare := func(ctx context.Context, onProgress func(done, total int)) (service.ComparisonResult, error) {
		svc := service.NewComparisonService(previous, current, service.Options{
			Concurrency: a.opts.concurrency,
			OnProgress:  onProgress,
			Metrics:     collector,
			Logger:      a.logger,
		})
		return svc.Run(ctx)
	}

	var result service.ComparisonResult
	if a.opts.progress && isTerminal(a.stderr) {
		result, err = runWithProgress(ctx, a.stderr, compare)
	} else {
		result, err = compare(ctx, nil)
	}
	if err != nil {
		return err
	}

	summary := result.Summary()
	a.logger.Info("comparison finished",
		"total", summary.Total,
		"missing", summary.Missing,
		"reduced", summary.Reduced,
		"stable", summary.Stable)
	a.logger.Debug("query metrics", "metrics", collector.Snapshot())

	if err := a.writeReport(format, result); err != nil {
		return err
	}

	if a.opts.failOnRegression && result.HasRegressions() {
		return &RegressionError{Summary: summary}
	}
	return nil
}

func (a *app) closeSnapshot(ctx context.Context, snap db.Snapshot) {
	if err := snap.Close(ctx); err != nil {
		a.logger.Warn("failed to close snapshot", "snapshot", snap.Name(), "error", err)
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the refcheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "refcheck %s\n", Version)
		},
	}
}
