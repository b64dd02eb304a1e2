package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestRotateAndPrune_TruncatesOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingestd.log")
	writeLines(t, path, 100)

	log := newTestLogger(t, "")
	defer log.Close()

	// maxSize 1 byte forces rotation; keep the last 10 lines.
	require.NoError(t, RotateAndPrune(dir, 1, 10, 24*time.Hour, log))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	require.Len(t, lines, 10)
	require.Equal(t, "line 91", lines[0])
	require.Equal(t, "line 100", lines[9])
}

func TestRotateAndPrune_LeavesSmallFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingestd.log")
	writeLines(t, path, 5)

	log := newTestLogger(t, "")
	defer log.Close()

	require.NoError(t, RotateAndPrune(dir, 1024*1024, 10, 24*time.Hour, log))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 5, strings.Count(string(b), "\n"))
}

func TestRotateAndPrune_DeletesOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "ingestd.log.1")
	fresh := filepath.Join(dir, "ingestd.log")
	writeLines(t, old, 3)
	writeLines(t, fresh, 3)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	log := newTestLogger(t, "")
	defer log.Close()

	require.NoError(t, RotateAndPrune(dir, 1024*1024, 10, 24*time.Hour, log))

	_, err := os.Stat(old)
	require.True(t, os.IsNotExist(err), "old log should be deleted")
	_, err = os.Stat(fresh)
	require.NoError(t, err, "fresh log should survive")
}

func TestRotateAndPrune_IgnoresNonLogFiles(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "last_run.json")
	writeLines(t, state, 3)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(state, past, past))

	log := newTestLogger(t, "")
	defer log.Close()

	require.NoError(t, RotateAndPrune(dir, 1, 1, 24*time.Hour, log))

	_, err := os.Stat(state)
	require.NoError(t, err, "state file must never be touched")
}

func TestRotateAndPrune_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingestd.log")
	writeLines(t, path, 100)

	log := newTestLogger(t, "")
	defer log.Close()

	require.NoError(t, RotateAndPrune(dir, 1, 10, 24*time.Hour, log))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, RotateAndPrune(dir, 1, 10, 24*time.Hour, log))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestLastLines(t *testing.T) {
	data := []byte("a\nb\nc\n")
	require.Equal(t, "b\nc\n", string(lastLines(data, 2)))
	require.Equal(t, "a\nb\nc\n", string(lastLines(data, 5)))
	require.Nil(t, lastLines(data, 0))

	// No trailing newline.
	require.Equal(t, "c", string(lastLines([]byte("a\nb\nc"), 1)))
}
