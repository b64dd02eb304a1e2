package runlock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, alive func(int) bool) *Lock {
	t.Helper()
	l := New(filepath.Join(t.TempDir(), "ingestd.lock"))
	if alive != nil {
		l.Alive = alive
	}
	return l
}

func TestTryAcquire_Fresh(t *testing.T) {
	l := newTestLock(t, nil)
	require.NoError(t, l.TryAcquire())

	rec, live, err := l.Owner()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.True(t, live)
	assert.False(t, rec.AcquiredAt.IsZero())

	require.NoError(t, l.Release())
	_, err = os.Stat(l.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestTryAcquire_HeldByLiveOwner(t *testing.T) {
	l := newTestLock(t, func(int) bool { return true })
	require.NoError(t, l.TryAcquire())

	second := New(l.Path)
	second.Alive = func(int) bool { return true }
	assert.ErrorIs(t, second.TryAcquire(), ErrAlreadyRunning)

	// The original record must be untouched.
	rec, _, err := l.Owner()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestTryAcquire_ReclaimsStaleLock(t *testing.T) {
	l := newTestLock(t, func(int) bool { return false })

	// Plant a record owned by a dead process.
	stale := Record{PID: 999999, Host: "ghost", AcquiredAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.Path, data, 0o644))

	require.NoError(t, l.TryAcquire())

	rec, err := func() (Record, error) { r, _, e := l.Owner(); return r, e }()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID, "stale record should be replaced with current pid")
}

func TestTryAcquire_ReclaimsCorruptLock(t *testing.T) {
	l := newTestLock(t, func(int) bool { return true })
	require.NoError(t, os.WriteFile(l.Path, []byte("not json"), 0o644))

	require.NoError(t, l.TryAcquire())
}

func TestRelease_Idempotent(t *testing.T) {
	l := newTestLock(t, nil)
	require.NoError(t, l.TryAcquire())
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}

func TestOwner_Missing(t *testing.T) {
	l := newTestLock(t, nil)
	_, _, err := l.Owner()
	assert.True(t, os.IsNotExist(err))
}

func TestPidAlive_Self(t *testing.T) {
	assert.True(t, pidAlive(os.Getpid()))
}
