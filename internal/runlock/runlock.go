// Package runlock enforces at most one active batch run via a lock record on
// disk. The record carries the owner's PID; an owner is live iff that PID
// still resolves to a running process, so locks left behind by a crashed or
// killed run are reclaimed instead of wedging the pipeline.
//
// This is a single-host lock. Two hosts sharing the lock path over a network
// filesystem are not guaranteed mutual exclusion (file-based, not fenced).
package runlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrAlreadyRunning is returned by TryAcquire when a live owner holds the
// lock. Callers must back off and retry the whole cycle later, not block.
var ErrAlreadyRunning = errors.New("another run is already in progress")

// Record is the persisted lock content.
type Record struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a file-backed single-flight lock. The liveness check is pluggable
// so tests (and exotic platforms) can substitute the PID probe.
type Lock struct {
	Path string

	// Alive reports whether the given PID resolves to a running process.
	// Defaults to gopsutil's PidExists.
	Alive func(pid int) bool
}

// New returns a Lock persisting its record at path.
func New(path string) *Lock {
	return &Lock{Path: path, Alive: pidAlive}
}

func pidAlive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// TryAcquire attempts to take the lock for the current process. It returns
// nil on success, ErrAlreadyRunning when a live owner holds it, and any
// other error for filesystem failures. A record whose owner is dead, or
// which cannot be parsed, is treated as stale: it is removed and acquisition
// proceeds.
func (l *Lock) TryAcquire() error {
	for attempt := 0; attempt < 2; attempt++ {
		err := l.create()
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock %s: %w", l.Path, err)
		}

		owner, readErr := l.read()
		if readErr == nil && l.alive(owner.PID) {
			return ErrAlreadyRunning
		}

		// Stale (dead owner) or unreadable record: reclaim and retry once.
		if rmErr := os.Remove(l.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("remove stale lock %s: %w", l.Path, rmErr)
		}
	}
	// Lost the reclaim race twice; whoever won is live enough.
	return ErrAlreadyRunning
}

// create writes the lock record with O_EXCL so two local processes racing
// for the lock cannot both succeed.
func (l *Lock) create() error {
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	host, _ := os.Hostname()
	rec := Record{
		PID:        os.Getpid(),
		Host:       host,
		AcquiredAt: time.Now().UTC(),
	}
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		f.Close()
		os.Remove(l.Path)
		return err
	}
	return f.Close()
}

// read parses the current lock record.
func (l *Lock) read() (Record, error) {
	var rec Record
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse lock record: %w", err)
	}
	if rec.PID <= 0 {
		return rec, errors.New("lock record has no pid")
	}
	return rec, nil
}

func (l *Lock) alive(pid int) bool {
	if l.Alive != nil {
		return l.Alive(pid)
	}
	return pidAlive(pid)
}

// Release deletes the lock record unconditionally. It must run on every exit
// path of a run; releasing an already-released lock is not an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.Path, err)
	}
	return nil
}

// Owner returns the current lock record and whether its owner is live.
// Used by diagnostics; a missing lock returns os.ErrNotExist.
func (l *Lock) Owner() (Record, bool, error) {
	rec, err := l.read()
	if err != nil {
		return rec, false, err
	}
	return rec, l.alive(rec.PID), nil
}
