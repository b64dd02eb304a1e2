// Package check provides the interactive --check diagnostics: engine
// availability, container health, directory access, and lock state.
package check

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/ingestd/internal/config"
	"github.com/backmassage/ingestd/internal/engine"
	"github.com/backmassage/ingestd/internal/runlock"
	"github.com/backmassage/ingestd/internal/watch"
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// RunCheck runs the interactive diagnostics flow: engine command, container
// health, directory access, and current lock/marker state. This is
// informational only and does not stop on failure.
func RunCheck(cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	checkEngineCommand(cfg, log)
	checkHealth(cfg, log)
	checkDirs(cfg, log)
	checkLock(cfg, log)
	checkMarker(cfg, log)
}

// checkEngineCommand verifies the engine executable is on PATH.
func checkEngineCommand(cfg *config.Config, log Logger) {
	if len(cfg.EngineCommand) == 0 {
		log.Error("No engine command configured")
		return
	}
	bin := cfg.EngineCommand[0]
	path, err := exec.LookPath(bin)
	if err != nil {
		log.Error("Engine command %q not found on PATH", bin)
		return
	}
	log.Success("Engine command: %s (%s)", strings.Join(cfg.EngineCommand, " "), path)

	if bin == "docker" {
		cmd := exec.Command("docker", "version", "--format", "{{.Server.Version}}")
		out, err := cmd.Output()
		if err != nil {
			log.Warn("docker found but daemon unreachable: %v", err)
			return
		}
		log.Success("Docker daemon: %s", strings.TrimSpace(string(out)))
	}
}

// checkHealth runs the same probe the watch loop gates cycles on.
func checkHealth(cfg *config.Config, log Logger) {
	eng := engine.NewExec(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if eng.Healthy(ctx) {
		if cfg.Container != "" {
			log.Success("Container %q is healthy", cfg.Container)
		} else {
			log.Success("Engine health probe passed")
		}
	} else {
		log.Error("Engine health probe failed")
	}
}

// checkDirs verifies the input is readable and the output and log
// directories are writable.
func checkDirs(cfg *config.Config, log Logger) {
	if _, err := os.ReadDir(cfg.InputDir); err != nil {
		log.Error("Input directory: %v", err)
	} else {
		log.Success("Input directory: %s", cfg.InputDir)
	}

	for _, dir := range []string{cfg.OutputDir, cfg.LogDir} {
		if dir == "" {
			continue
		}
		if err := probeWritable(dir); err != nil {
			log.Error("Directory not writable: %v", err)
		} else {
			log.Success("Writable: %s", dir)
		}
	}
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".checkprobe-*")
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// checkLock reports who, if anyone, currently holds the run lock.
func checkLock(cfg *config.Config, log Logger) {
	lock := runlock.New(cfg.LockFile)
	rec, live, err := lock.Owner()
	switch {
	case err != nil && os.IsNotExist(err):
		log.Success("No run in progress")
	case err != nil:
		log.Warn("Lock file unreadable: %v", err)
	case live:
		log.Warn("Run in progress: pid %d on %s since %s", rec.PID, rec.Host, rec.AcquiredAt.Format(time.RFC3339))
	default:
		log.Warn("Stale lock from pid %d, will be reclaimed on the next run", rec.PID)
	}
}

// checkMarker reports the scan watermark.
func checkMarker(cfg *config.Config, log Logger) {
	since := watch.LoadMarker(cfg.MarkerFile)
	if since.IsZero() {
		log.Info("No scan watermark, next run considers everything in %s", filepath.Clean(cfg.InputDir))
		return
	}
	log.Info("Last successful run: %s", since.Local().Format(time.RFC3339))
}
