// Package config holds runtime configuration: defaults, config-file loading,
// and validation. Defaults match the legacy Python monitor deployment for
// parity.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// WatchMode selects how the watch loop detects new files.
type WatchMode string

const (
	WatchAuto   WatchMode = "auto"   // Filesystem events when available, polling otherwise (default).
	WatchEvents WatchMode = "events" // Require filesystem events; fail if unavailable.
	WatchPoll   WatchMode = "poll"   // Pure interval polling.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by [LoadFile], and then mutated by CLI flags before
// being passed (by pointer) to packages that need it. Fields are grouped by
// concern with inline documentation of defaults.
type Config struct {
	// Paths.
	InputDir  string // Directory watched for incoming media files.
	OutputDir string // Directory populated by the engine; probed for sidecars.
	LogDir    string // Default: "<input>/../logs". Holds main and error logs.

	// State files. Empty values are derived from LogDir in Derive.
	LockFile    string // Single-flight lock record.
	StateFile   string // Latest run stats (atomic JSON).
	HistoryFile string // Append-only JSONL run history.
	MarkerFile  string // Last successful run timestamp (scan watermark).

	// Candidate selection.
	VideoExtensions []string // Lowercase, with leading dot. Default: see DefaultExtensions.
	MinFileSizeMB   int      // Default: 200. Files below this are ignored.

	// Watch loop.
	WatchMode     WatchMode     // Default: "auto".
	ScanInterval  time.Duration // Default: 60s. Poll/rescan cadence.
	DebounceDelay time.Duration // Default: 5s. Quiet period after an fs event.

	// Stability detection.
	StabilitySampleDelay  time.Duration // Default: 2s between the two size samples.
	StabilityPollInterval time.Duration // Default: 30s between re-checks of pending files.
	StabilityWaitBudget   time.Duration // Default: 5m. Proceed anyway after this.

	// Batch execution.
	MaxBatchSize  int           // Default: 5 candidates per run.
	MaxRuntime    time.Duration // Default: 1h wall clock per run.
	MaxRetries    int           // Default: 2 retries per item (3 attempts total).
	RetryBackoff  time.Duration // Default: 30s between attempts.
	EngineTimeout time.Duration // Default: 1h per engine invocation.

	// External engine. "{path}" in EngineCommand is replaced by the
	// candidate path; if absent the path is appended.
	EngineCommand []string // Default: ["docker", "exec", "javsp", "javsp", "-i", "{path}"].
	HealthCommand []string // Optional explicit probe; overrides Container.
	Container     string   // Default: "javsp". Docker health-gate target.

	// Log retention.
	LogMaxSizeMB     int // Default: 10. Larger files are truncated to their tail.
	LogKeepLines     int // Default: 10000 lines kept on truncation.
	LogRetentionDays int // Default: 7. Older log files are deleted.

	// Alerting.
	AlertThreshold float64 // Default: 0.80. WARN when success rate drops below.

	// Observability.
	MetricsAddr string // Optional /metrics listen address ("" = disabled).

	// Behavior flags.
	DryRun  bool
	Verbose bool

	// Display.
	ColorMode ColorMode // Default: "auto".
}

// DefaultExtensions is the recognized media extension allow-list, matching
// the legacy monitor's video_extensions setting.
var DefaultExtensions = []string{
	".mp4", ".mkv", ".avi", ".mov", ".wmv",
	".flv", ".m4v", ".m2ts", ".ts", ".vob",
	".iso", ".rmvb", ".rm", ".3gp", ".f4v",
	".webm", ".mpg", ".mpeg",
}

// DefaultConfig returns a Config with all defaults matching the legacy
// monitor deployment. Used as the base before config file and CLI overrides.
func DefaultConfig() Config {
	return Config{
		VideoExtensions:       append([]string(nil), DefaultExtensions...),
		MinFileSizeMB:         200,
		WatchMode:             WatchAuto,
		ScanInterval:          60 * time.Second,
		DebounceDelay:         5 * time.Second,
		StabilitySampleDelay:  2 * time.Second,
		StabilityPollInterval: 30 * time.Second,
		StabilityWaitBudget:   5 * time.Minute,
		MaxBatchSize:          5,
		MaxRuntime:            time.Hour,
		MaxRetries:            2,
		RetryBackoff:          30 * time.Second,
		EngineTimeout:         time.Hour,
		EngineCommand:         []string{"docker", "exec", "javsp", "javsp", "-i", "{path}"},
		Container:             "javsp",
		LogMaxSizeMB:          10,
		LogKeepLines:          10000,
		LogRetentionDays:      7,
		AlertThreshold:        0.80,
		ColorMode:             ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Derive fills in paths that default relative to other settings: LogDir next
// to the input tree, and the lock/state/marker files inside LogDir. Called
// after all overrides are applied, before Validate.
func (c *Config) Derive() {
	if c.LogDir == "" && c.InputDir != "" {
		c.LogDir = filepath.Join(filepath.Dir(c.InputDir), "logs")
	}
	if c.LockFile == "" {
		c.LockFile = filepath.Join(c.LogDir, "ingestd.lock")
	}
	if c.StateFile == "" {
		c.StateFile = filepath.Join(c.LogDir, "last_run.json")
	}
	if c.HistoryFile == "" {
		c.HistoryFile = filepath.Join(c.LogDir, "run_history.jsonl")
	}
	if c.MarkerFile == "" {
		c.MarkerFile = filepath.Join(c.LogDir, "last_success.json")
	}
}

// Validate checks enum fields, numeric ranges, and that both directory paths
// are set. Extension entries are normalized to lowercase with a leading dot.
func (c *Config) Validate() error {
	switch c.WatchMode {
	case WatchAuto, WatchEvents, WatchPoll:
		// valid
	default:
		return errors.New("invalid watch mode (use 'auto', 'events' or 'poll')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("need both input and output directories")
	}
	if c.MinFileSizeMB < 0 {
		return fmt.Errorf("min file size must not be negative (got %d)", c.MinFileSizeMB)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("max batch size must be at least 1 (got %d)", c.MaxBatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative (got %d)", c.MaxRetries)
	}
	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("alert threshold must be between 0 and 1 (got %g)", c.AlertThreshold)
	}
	if len(c.EngineCommand) == 0 {
		return errors.New("engine command must not be empty")
	}
	if len(c.VideoExtensions) == 0 {
		return errors.New("extension allow-list must not be empty")
	}

	for i, ext := range c.VideoExtensions {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			return fmt.Errorf("empty entry in extension allow-list (index %d)", i)
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		c.VideoExtensions[i] = e
	}
	return nil
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory. This prevents the watch loop from
// discovering files the engine itself produces. Both arguments must be
// absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}

// MinFileSizeBytes returns the candidate size floor in bytes.
func (c *Config) MinFileSizeBytes() int64 {
	return int64(c.MinFileSizeMB) * 1024 * 1024
}

// LogMaxSizeBytes returns the log rotation threshold in bytes.
func (c *Config) LogMaxSizeBytes() int64 {
	return int64(c.LogMaxSizeMB) * 1024 * 1024
}

// LogRetention returns the log pruning horizon as a duration.
func (c *Config) LogRetention() time.Duration {
	return time.Duration(c.LogRetentionDays) * 24 * time.Hour
}
