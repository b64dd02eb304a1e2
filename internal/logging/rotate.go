package logging

// Log retention: oversized log files are truncated to their most recent
// lines, and log files past the retention horizon are deleted. Both
// operations are idempotent, so the watch loop invokes them every cycle.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RotateAndPrune bounds log growth in dir. Files matching *.log* above
// maxSize bytes are rewritten in place keeping only their last keepLines
// lines; files whose modification time is older than maxAge are deleted.
// Per-file failures are logged and skipped, not fatal.
func RotateAndPrune(dir string, maxSize int64, keepLines int, maxAge time.Duration, log *Logger) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.log*"))
	if err != nil {
		return fmt.Errorf("glob %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}

		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				log.Warn("Cannot delete old log %s: %v", filepath.Base(path), err)
			} else {
				log.Info("Deleted old log: %s", filepath.Base(path))
			}
			continue
		}

		if fi.Size() > maxSize {
			if err := truncateToTail(path, keepLines); err != nil {
				log.Warn("Cannot rotate %s: %v", filepath.Base(path), err)
			} else {
				log.Info("Truncated %s to last %d lines", filepath.Base(path), keepLines)
			}
		}
	}
	return nil
}

// truncateToTail rewrites path keeping only its last keepLines lines. The
// rewrite goes through a temp file in the same directory followed by a
// rename, so a crash mid-rotation never loses the file.
func truncateToTail(path string, keepLines int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tail := lastLines(data, keepLines)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, tail, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// lastLines returns the suffix of data containing at most n lines.
func lastLines(data []byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	// Ignore a trailing newline so it doesn't count as an empty final line.
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}
	seen := 0
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			seen++
			if seen == n {
				return data[i+1:]
			}
		}
	}
	return data
}
