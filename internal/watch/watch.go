// Package watch runs the long-lived monitoring loop: detect new media
// files, wait for them to stabilize, and hand them to the batch executor
// under the single-flight lock.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/backmassage/ingestd/internal/config"
	"github.com/backmassage/ingestd/internal/engine"
	"github.com/backmassage/ingestd/internal/logging"
	"github.com/backmassage/ingestd/internal/metrics"
	"github.com/backmassage/ingestd/internal/pipeline"
	"github.com/backmassage/ingestd/internal/runlock"
	"github.com/backmassage/ingestd/internal/scan"
)

// Loop owns one full pipeline cycle and the triggers that fire it. Events
// from fsnotify are debounced into a cycle; a periodic rescan backstops
// missed events and drives pure polling mode.
type Loop struct {
	Cfg      *config.Config
	Log      *logging.Logger
	Engine   engine.Engine
	Exec     *pipeline.Executor
	Recorder *pipeline.Recorder
	Detector *scan.Detector
	Lock     *runlock.Lock
	Metrics  *metrics.Metrics
}

// New wires a Loop from the config with the standard components.
func New(cfg *config.Config, log *logging.Logger, eng engine.Engine, m *metrics.Metrics) *Loop {
	return &Loop{
		Cfg:    cfg,
		Log:    log,
		Engine: eng,
		Exec: &pipeline.Executor{
			Engine:       eng,
			Log:          log,
			OutputDir:    cfg.OutputDir,
			MaxBatchSize: cfg.MaxBatchSize,
			MaxRuntime:   cfg.MaxRuntime,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			DryRun:       cfg.DryRun,
		},
		Recorder: &pipeline.Recorder{
			StatePath:      cfg.StateFile,
			HistoryPath:    cfg.HistoryFile,
			AlertThreshold: cfg.AlertThreshold,
			Log:            log,
		},
		Detector: scan.NewDetector(cfg.StabilitySampleDelay),
		Lock:     runlock.New(cfg.LockFile),
		Metrics:  m,
	}
}

// Run blocks until ctx is cancelled, firing a cycle on debounced filesystem
// events and on every scan interval. In poll mode, or when fsnotify cannot
// be set up in auto mode, only the interval fires. Cycle errors are logged
// and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	var watcher *fsnotify.Watcher
	var events <-chan fsnotify.Event
	var watchErrs <-chan error

	if l.Cfg.WatchMode != config.WatchPoll {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = addRecursive(w, l.Cfg.InputDir)
		}
		switch {
		case err == nil:
			defer w.Close()
			watcher = w
			events = w.Events
			watchErrs = w.Errors
			l.Log.Info("Watching %s for filesystem events (rescan every %s)", l.Cfg.InputDir, l.Cfg.ScanInterval)
		case l.Cfg.WatchMode == config.WatchEvents:
			return fmt.Errorf("filesystem events required but unavailable: %w", err)
		default:
			l.Log.Warn("Filesystem events unavailable (%v), polling %s every %s", err, l.Cfg.InputDir, l.Cfg.ScanInterval)
		}
	} else {
		l.Log.Info("Polling %s every %s", l.Cfg.InputDir, l.Cfg.ScanInterval)
	}

	ticker := time.NewTicker(l.Cfg.ScanInterval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	// First cycle right away so a restart drains any backlog.
	l.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Log.Info("Watch loop stopping")
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				// New subdirectories need their own watch.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						l.Log.Warn("Watch %s: %v", ev.Name, err)
					}
				}
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			l.Log.Debug("Filesystem event: %s", ev)
			if debounce == nil {
				debounce = time.NewTimer(l.Cfg.DebounceDelay)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(l.Cfg.DebounceDelay)
			}

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			l.Log.Warn("Watcher error: %v", err)

		case <-debounceC:
			l.runCycle(ctx)

		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

// RunOnce performs a single cycle and reports its error. Used by the
// one-shot command.
func (l *Loop) RunOnce(ctx context.Context) error {
	return l.Cycle(ctx)
}

func (l *Loop) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := l.Cycle(ctx); err != nil {
		l.Log.Error("Cycle failed: %v", err)
	}
}

// Cycle executes one pass: log housekeeping, health gate, scan, stability
// wait, lock, batch run, record, watermark advance.
func (l *Loop) Cycle(ctx context.Context) error {
	cycleStart := time.Now()

	// Rotation runs even when the rest of the cycle bails out early, so
	// quiet or lock-contended periods still prune the log directory.
	l.housekeeping()

	if !l.Engine.Healthy(ctx) {
		l.Log.Warn("Engine unhealthy, skipping this cycle")
		l.Metrics.RunsSkipped.WithLabelValues(metrics.SkipUnhealthy).Inc()
		return nil
	}

	since := LoadMarker(l.Cfg.MarkerFile)
	cands, err := scan.Scan(l.Cfg.InputDir, l.Cfg.VideoExtensions, l.Cfg.MinFileSizeBytes(), since, l.Log)
	if err != nil {
		return fmt.Errorf("scan %s: %w", l.Cfg.InputDir, err)
	}
	l.Metrics.PendingCandidates.Set(float64(len(cands)))
	if len(cands) == 0 {
		l.Log.Debug("No new candidates")
		return nil
	}
	l.Log.Info("Found %d candidate(s)", len(cands))

	stable, pending := l.Detector.WaitStable(ctx, cands, l.Cfg.StabilityPollInterval, l.Cfg.StabilityWaitBudget, l.Log)
	if len(pending) > 0 {
		l.Log.Warn("%d candidate(s) still changing, deferred to the next cycle", len(pending))
	}
	if len(stable) == 0 {
		return nil
	}

	if err := l.Lock.TryAcquire(); err != nil {
		if errors.Is(err, runlock.ErrAlreadyRunning) {
			l.Log.Warn("Another run is in progress, deferring this cycle")
			l.Metrics.RunsSkipped.WithLabelValues(metrics.SkipLocked).Inc()
			return nil
		}
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := l.Lock.Release(); err != nil {
			l.Log.Warn("Release run lock: %v", err)
		}
	}()

	stats := l.Exec.Run(ctx, stable)
	if err := l.Recorder.Record(stats); err != nil {
		l.Log.Error("Record run stats: %v", err)
	}
	l.Metrics.ObserveRun(stats.Processed, stats.Failed, stats.Skipped, stats.SuccessRate(), stats.Duration())
	l.Metrics.PendingCandidates.Set(0)

	// The watermark only moves when everything the scan saw was handled.
	// A failure, an interrupted or truncated batch, or an unstable
	// leftover keeps old files eligible for the next pass.
	if stats.Failed == 0 && stats.Completed() && len(pending) == 0 && len(stable) <= l.Cfg.MaxBatchSize {
		if err := SaveMarker(l.Cfg.MarkerFile, cycleStart); err != nil {
			l.Log.Warn("Save scan marker: %v", err)
		}
	}
	return nil
}

// housekeeping rotates and prunes the log directory, then reopens the log
// sinks in case the live files were truncated out from under them.
func (l *Loop) housekeeping() {
	if l.Cfg.LogDir == "" {
		return
	}
	if err := logging.RotateAndPrune(l.Cfg.LogDir, l.Cfg.LogMaxSizeBytes(), l.Cfg.LogKeepLines, l.Cfg.LogRetention(), l.Log); err != nil {
		l.Log.Warn("Log rotation: %v", err)
		return
	}
	if err := l.Log.Reopen(l.Cfg.LogDir); err != nil {
		l.Log.Warn("Reopen logs: %v", err)
	}
}

// addRecursive watches root and every directory under it. Unreadable
// subtrees are skipped, not fatal.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil && path == root {
			return err
		}
		return nil
	})
}
