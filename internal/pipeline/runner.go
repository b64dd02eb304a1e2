package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/backmassage/ingestd/internal/engine"
	"github.com/backmassage/ingestd/internal/logging"
	"github.com/backmassage/ingestd/internal/scan"
)

// Executor drives a bounded set of candidates through the engine, one at a
// time. One item's failure never aborts the batch; the wall-clock budget
// does.
type Executor struct {
	Engine    engine.Engine
	Log       *logging.Logger
	OutputDir string

	MaxBatchSize int
	MaxRuntime   time.Duration
	MaxRetries   int // Retries per item; total attempts = 1 + MaxRetries.
	RetryBackoff time.Duration

	DryRun bool

	// Sleep is the backoff pause between attempts, injectable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// itemOutcome classifies one candidate's trip through attemptItem.
type itemOutcome int

const (
	itemProcessed itemOutcome = iota
	itemFailed
	itemCancelled
)

// Run processes up to MaxBatchSize candidates in scan order and returns the
// aggregate stats. Candidates already present in the output tree are
// skipped; the rest go through the engine with per-item retry. When the
// elapsed wall clock exceeds MaxRuntime the remaining candidates are left
// for the next run and the stats are flagged truncated.
//
// Cancellation stops the batch between items and between retry attempts;
// the in-flight engine invocation is left to finish under its own timeout
// so no partial output is abandoned mid-write.
func (e *Executor) Run(ctx context.Context, cands []scan.Candidate) RunStats {
	stats := NewRunStats()

	batch := cands
	if len(batch) > e.MaxBatchSize {
		batch = batch[:e.MaxBatchSize]
		e.Log.Info("Batch limited to %d of %d candidates", e.MaxBatchSize, len(cands))
	}
	stats.Total = len(batch)

	for i, cand := range batch {
		if ctx.Err() != nil {
			e.Log.Warn("Interrupted, %d candidates deferred", len(batch)-i)
			break
		}

		// Checked before every item, so a batch of skips cannot overrun
		// the budget either.
		if elapsed := time.Since(stats.Start); e.MaxRuntime > 0 && elapsed > e.MaxRuntime {
			e.Log.Warn("Run time budget exceeded (%s), deferring %d candidates", elapsed.Round(time.Second), len(batch)-i)
			stats.Truncated = true
			break
		}

		e.Log.Info("[%d/%d] %s", i+1, len(batch), filepath.Base(cand.Path))

		if AlreadyProcessed(cand, e.OutputDir) {
			e.Log.Info("Skip (already processed): %s", filepath.Base(cand.Path))
			stats.Skipped++
			continue
		}

		if e.DryRun {
			e.Log.Success("[DRY] Would process %s", filepath.Base(cand.Path))
			stats.Processed++
			continue
		}

		switch e.attemptItem(ctx, cand) {
		case itemProcessed:
			stats.Processed++
		case itemFailed:
			stats.Failed++
		case itemCancelled:
			e.Log.Warn("Interrupted, %d candidates deferred", len(batch)-i)
			stats.End = time.Now()
			return stats
		}
	}

	stats.End = time.Now()
	e.logSummary(&stats)
	return stats
}

// attemptItem runs the engine for one candidate with the retry loop: up to
// 1+MaxRetries attempts with a fixed backoff between them.
func (e *Executor) attemptItem(ctx context.Context, cand scan.Candidate) itemOutcome {
	// The attempt itself is shielded from loop cancellation; the engine's
	// own timeout bounds it. See Run.
	attemptCtx := context.WithoutCancel(ctx)

	attempts := 1 + e.MaxRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err := e.Engine.Process(attemptCtx, cand.Path)
		elapsed := time.Since(start).Round(time.Second)

		if err == nil {
			e.Log.Success("Processed %s in %s (attempt %d/%d)", filepath.Base(cand.Path), elapsed, attempt, attempts)
			return itemProcessed
		}

		e.Log.Error("Attempt %d/%d failed for %s after %s: %v", attempt, attempts, filepath.Base(cand.Path), elapsed, err)

		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return itemCancelled
		}
		e.Log.Info("Retrying %s in %s", filepath.Base(cand.Path), e.RetryBackoff)
		if err := e.sleep(ctx, e.RetryBackoff); err != nil {
			return itemCancelled
		}
	}
	return itemFailed
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) logSummary(stats *RunStats) {
	e.Log.Info("==============================")
	e.Log.Info("Done: %d processed, %d skipped, %d failed in %s",
		stats.Processed, stats.Skipped, stats.Failed, stats.Duration().Round(time.Second))
	if stats.Truncated {
		e.Log.Warn("Run was truncated by the time budget")
	}
}
