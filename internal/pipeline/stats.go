// Package pipeline drives a bounded batch of candidates through the external
// engine and records the outcome.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// RunStats tracks aggregate counters for one batch run.
type RunStats struct {
	RunID     string
	Start     time.Time
	End       time.Time
	Total     int // Candidates handed to the executor.
	Processed int
	Failed    int
	Skipped   int
	Truncated bool // Run stopped early because MaxRuntime was exceeded.
}

// NewRunStats returns stats for a run starting now, with a fresh run ID.
func NewRunStats() RunStats {
	return RunStats{
		RunID: uuid.NewString(),
		Start: time.Now(),
	}
}

// Duration returns the wall-clock span of the run.
func (s *RunStats) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Completed reports whether every candidate handed to the executor was
// accounted for. A cancelled or truncated run leaves deferred items and
// reports false.
func (s *RunStats) Completed() bool {
	return !s.Truncated && s.Processed+s.Failed+s.Skipped == s.Total
}

// SuccessRate returns Processed / (Processed + Failed). A run with no
// attempts at all counts as fully successful (1.0) rather than dividing by
// zero; skips don't affect the rate.
func (s *RunStats) SuccessRate() float64 {
	attempted := s.Processed + s.Failed
	if attempted == 0 {
		return 1.0
	}
	return float64(s.Processed) / float64(attempted)
}
