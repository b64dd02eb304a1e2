package scan

// Stability detection is a heuristic for "transfer complete": a file whose
// size is unchanged across two samples is assumed done. A transfer that
// pauses for exactly the sampling window and then resumes will be
// misclassified; the outer wait loop narrows that window but cannot close
// it, since no authoritative completion signal exists.

import (
	"context"
	"os"
	"time"
)

// Detector classifies a candidate as stable (transfer finished) or still in
// flight. Size and Sleep are injectable for tests; the zero values fall back
// to os.Stat and a context-aware time.Sleep.
type Detector struct {
	SampleDelay time.Duration

	// Size returns the current byte size of path, or an error if the file
	// is gone. Defaults to os.Stat.
	Size func(path string) (int64, error)

	// Sleep pauses between the two samples. Defaults to a context-aware
	// sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewDetector returns a Detector sampling with the given delay.
func NewDetector(sampleDelay time.Duration) *Detector {
	return &Detector{SampleDelay: sampleDelay}
}

func (d *Detector) size(path string) (int64, error) {
	if d.Size != nil {
		return d.Size(path)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (d *Detector) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return sleepCtx(ctx, dur)
}

// IsStable samples the file size twice, separated by SampleDelay, and
// returns true iff both samples exist, are equal, and are greater than zero.
// A file that disappears between samples (moved or deleted) is not stable.
func (d *Detector) IsStable(ctx context.Context, path string) bool {
	first, err := d.size(path)
	if err != nil {
		return false
	}
	if err := d.sleep(ctx, d.SampleDelay); err != nil {
		return false
	}
	second, err := d.size(path)
	if err != nil {
		return false
	}
	return first == second && second > 0
}

// WaitStable polls the not-yet-stable candidates at pollInterval until all
// are stable or budget is exhausted. It returns the stable candidates and
// those still pending; when the budget runs out the caller proceeds with
// everything anyway and logs a warning, trading a possible partial file for
// not stalling the cycle indefinitely.
func (d *Detector) WaitStable(ctx context.Context, cands []Candidate, pollInterval, budget time.Duration, log Logger) (stable, pending []Candidate) {
	deadline := time.Now().Add(budget)
	pending = append([]Candidate(nil), cands...)

	for len(pending) > 0 {
		var still []Candidate
		for _, c := range pending {
			if ctx.Err() == nil && d.IsStable(ctx, c.Path) {
				stable = append(stable, c)
			} else {
				log.Debug("Still transferring: %s", c.Path)
				still = append(still, c)
			}
		}
		pending = still

		if len(pending) == 0 || time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
		if err := d.sleep(ctx, pollInterval); err != nil {
			break
		}
	}
	return stable, pending
}

// sleepCtx sleeps for d or until ctx is done, returning ctx.Err() in the
// latter case.
func sleepCtx(ctx context.Context, d time.Duration) error {
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
