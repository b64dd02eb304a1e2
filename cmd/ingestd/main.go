// Command ingestd watches a media intake directory and drives new files
// through the external organizing engine in stability-gated batches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmassage/ingestd/internal/check"
	"github.com/backmassage/ingestd/internal/config"
	"github.com/backmassage/ingestd/internal/engine"
	"github.com/backmassage/ingestd/internal/logging"
	"github.com/backmassage/ingestd/internal/metrics"
	"github.com/backmassage/ingestd/internal/watch"
)

// version and commit are set at build time via -ldflags (e.g. Makefile).
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ingestd: %v\n", err)
		os.Exit(1)
	}
}

// flagValues holds raw flag state so file values only apply where the user
// did not pass a flag: defaults < config file < flags.
type flagValues struct {
	configPath string
	input      string
	output     string
	logDir     string
	watchMode  string
	colorMode  string

	scanInterval time.Duration
	retryBackoff time.Duration
	maxRuntime   time.Duration

	minSizeMB  int
	batchSize  int
	maxRetries int

	container   string
	metricsAddr string

	dryRun  bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var fl flagValues

	root := &cobra.Command{
		Use:           "ingestd",
		Short:         "Stability-gated batch ingestion for media directories",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveConfig(cmd, &cfg, &fl)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&fl.configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&fl.input, "input", "i", "", "directory watched for incoming files")
	pf.StringVarP(&fl.output, "output", "o", "", "directory the engine organizes into")
	pf.StringVar(&fl.logDir, "log-dir", "", "log directory (default <input>/../logs)")
	pf.StringVar(&fl.watchMode, "watch-mode", string(cfg.WatchMode), "auto, events, or poll")
	pf.DurationVar(&fl.scanInterval, "scan-interval", cfg.ScanInterval, "poll and rescan cadence")
	pf.IntVar(&fl.minSizeMB, "min-size-mb", cfg.MinFileSizeMB, "ignore files smaller than this")
	pf.IntVar(&fl.batchSize, "batch-size", cfg.MaxBatchSize, "max candidates per run")
	pf.IntVar(&fl.maxRetries, "max-retries", cfg.MaxRetries, "retries per item")
	pf.DurationVar(&fl.retryBackoff, "retry-backoff", cfg.RetryBackoff, "pause between attempts")
	pf.DurationVar(&fl.maxRuntime, "max-runtime", cfg.MaxRuntime, "wall-clock budget per run")
	pf.StringVar(&fl.container, "container", cfg.Container, "engine container for the health probe")
	pf.StringVar(&fl.metricsAddr, "metrics-addr", "", "Prometheus listen address (empty = disabled)")
	pf.BoolVarP(&fl.dryRun, "dry-run", "n", false, "log what would happen without running the engine")
	pf.BoolVarP(&fl.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&fl.colorMode, "color", string(cfg.ColorMode), "auto, always, or never")

	root.AddCommand(newWatchCmd(&cfg), newRunCmd(&cfg), newCheckCmd(&cfg))
	return root
}

// resolveConfig layers the config file over the defaults, then flags the
// user actually passed over that, then derives and validates.
func resolveConfig(cmd *cobra.Command, cfg *config.Config, fl *flagValues) error {
	if fl.configPath != "" {
		if err := config.LoadFile(cfg, fl.configPath, false); err != nil {
			return err
		}
	}

	f := cmd.Flags()
	if f.Changed("input") {
		cfg.InputDir = config.NormalizeDirArg(fl.input)
	}
	if f.Changed("output") {
		cfg.OutputDir = config.NormalizeDirArg(fl.output)
	}
	if f.Changed("log-dir") {
		cfg.LogDir = fl.logDir
	}
	if f.Changed("watch-mode") {
		cfg.WatchMode = config.WatchMode(fl.watchMode)
	}
	if f.Changed("scan-interval") {
		cfg.ScanInterval = fl.scanInterval
	}
	if f.Changed("min-size-mb") {
		cfg.MinFileSizeMB = fl.minSizeMB
	}
	if f.Changed("batch-size") {
		cfg.MaxBatchSize = fl.batchSize
	}
	if f.Changed("max-retries") {
		cfg.MaxRetries = fl.maxRetries
	}
	if f.Changed("retry-backoff") {
		cfg.RetryBackoff = fl.retryBackoff
	}
	if f.Changed("max-runtime") {
		cfg.MaxRuntime = fl.maxRuntime
	}
	if f.Changed("container") {
		cfg.Container = fl.container
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = fl.metricsAddr
	}
	if f.Changed("dry-run") {
		cfg.DryRun = fl.dryRun
	}
	if f.Changed("verbose") {
		cfg.Verbose = fl.verbose
	}
	if f.Changed("color") {
		cfg.ColorMode = config.ColorMode(fl.colorMode)
	}

	cfg.Derive()
	return cfg.Validate()
}

func newWatchCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the input directory and process new files continuously",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, func(ctx context.Context, loop *watch.Loop) error {
				return loop.Run(ctx)
			})
		},
	}
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform a single scan-and-process cycle, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, func(ctx context.Context, loop *watch.Loop) error {
				return loop.RunOnce(ctx)
			})
		},
	}
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run system diagnostics and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()
			check.RunCheck(cfg, log)
			return nil
		},
	}
}

// withApp validates paths, prepares directories, builds the shared
// components, and hands a ready Loop plus a signal-aware context to fn.
func withApp(cfg *config.Config, fn func(context.Context, *watch.Loop) error) error {
	inputAbs, err := absPath(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("input not found: %s", cfg.InputDir)
	}
	for _, dir := range []string{cfg.OutputDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("cannot resolve output path: %s", cfg.OutputDir)
	}
	if err := cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("=== ingestd v%s ===", version)
	log.Info("In:  %s", cfg.InputDir)
	log.Info("Out: %s", cfg.OutputDir)
	if cfg.DryRun {
		log.Warn("DRY RUN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(cfg.MetricsAddr); err != nil {
				log.Error("Metrics listener: %v", err)
			}
		}()
		log.Info("Metrics on %s/metrics", cfg.MetricsAddr)
	}

	loop := watch.New(cfg, log, engine.NewExec(cfg, log), m)
	return fn(ctx, loop)
}

// absPath returns the absolute path with symlinks resolved, for comparing
// input vs output hierarchy.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
