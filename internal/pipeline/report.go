package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/backmassage/ingestd/internal/logging"
)

// Report is the persisted form of a run's outcome. It is both the
// latest-state file content and one line of the run history.
type Report struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
	Processed       int       `json:"processed"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	SuccessRate     float64   `json:"success_rate"`
	Truncated       bool      `json:"truncated,omitempty"`
}

// Recorder persists run outcomes: the latest report as an atomic JSON file,
// every report appended to a JSONL history, and a WARN signal when the
// success rate falls below the alert threshold. It does not page or email;
// external alerting consumes the log and the files.
type Recorder struct {
	StatePath      string
	HistoryPath    string
	AlertThreshold float64
	Log            *logging.Logger
}

// Record persists stats and emits the low-success-rate warning when the
// rate is below the threshold and at least one item actually failed.
func (r *Recorder) Record(stats RunStats) error {
	report := Report{
		RunID:           stats.RunID,
		Timestamp:       stats.End.UTC(),
		DurationSeconds: stats.Duration().Seconds(),
		Processed:       stats.Processed,
		Failed:          stats.Failed,
		Skipped:         stats.Skipped,
		SuccessRate:     stats.SuccessRate(),
		Truncated:       stats.Truncated,
	}

	if err := r.writeState(report); err != nil {
		return err
	}
	if err := r.appendHistory(report); err != nil {
		return err
	}

	if stats.Failed > 0 && report.SuccessRate < r.AlertThreshold {
		r.Log.Warn("Success rate %.0f%% below %.0f%% threshold (%d failed)",
			report.SuccessRate*100, r.AlertThreshold*100, stats.Failed)
	}
	return nil
}

// writeState replaces the latest-state file atomically (temp file + rename)
// so readers never observe a half-written report.
func (r *Recorder) writeState(report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	tmp := r.StatePath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	if err := os.Rename(tmp, r.StatePath); err != nil {
		return fmt.Errorf("replace run report: %w", err)
	}
	return nil
}

// appendHistory adds one JSON line to the run history.
func (r *Recorder) appendHistory(report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode history line: %w", err)
	}
	f, err := os.OpenFile(r.HistoryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append run history: %w", err)
	}
	return nil
}
