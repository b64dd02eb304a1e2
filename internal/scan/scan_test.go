package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// nopLogger satisfies Logger for tests.
type nopLogger struct{}

func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

var defaultExts = []string{".mp4", ".mkv", ".avi", ".m4v", ".ts"}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func basenames(cands []Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, filepath.Base(c.Path))
	}
	return out
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScan_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movie.mkv", 10)
	writeFile(t, dir, "show.mp4", 10)
	writeFile(t, dir, "music.mp3", 10)
	writeFile(t, dir, "readme.txt", 10)
	writeFile(t, dir, "UPPER.MKV", 10)

	cands, err := Scan(dir, defaultExts, 0, time.Time{}, nopLogger{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"UPPER.MKV", "movie.mkv", "show.mp4"}
	if got := basenames(cands); !sliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScan_FiltersMinSize(t *testing.T) {
	dir := t.TempDir()
	// a.mp4 is above the 200-byte floor, b.mp4 below it.
	writeFile(t, dir, "a.mp4", 500)
	writeFile(t, dir, "b.mp4", 100)

	cands, err := Scan(dir, defaultExts, 200, time.Time{}, nopLogger{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := basenames(cands); !sliceEqual(got, []string{"a.mp4"}) {
		t.Errorf("got %v, want [a.mp4]", got)
	}
}

func TestScan_SinceMarker(t *testing.T) {
	dir := t.TempDir()
	oldFile := writeFile(t, dir, "old.mkv", 10)
	writeFile(t, dir, "new.mkv", 10)

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	since := time.Now().Add(-time.Hour)
	cands, err := Scan(dir, defaultExts, 0, since, nopLogger{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := basenames(cands); !sliceEqual(got, []string{"new.mkv"}) {
		t.Errorf("got %v, want [new.mkv]", got)
	}
}

func TestScan_RecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("Show", "Season 02", "ep01.mkv"), 10)
	writeFile(t, dir, filepath.Join("Show", "Season 01", "ep02.mkv"), 10)
	writeFile(t, dir, filepath.Join("Show", "Season 01", "ep01.mkv"), 10)

	cands, err := Scan(dir, defaultExts, 0, time.Time{}, nopLogger{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates", len(cands))
	}
	for i := 1; i < len(cands); i++ {
		if cands[i-1].Path >= cands[i].Path {
			t.Errorf("not sorted: %s >= %s", cands[i-1].Path, cands[i].Path)
		}
	}
}

func TestScan_PrunesExtras(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.mkv", 10)
	writeFile(t, dir, filepath.Join("Extras", "bonus.mkv"), 10)

	cands, err := Scan(dir, defaultExts, 0, time.Time{}, nopLogger{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cands) != 1 {
		t.Errorf("got %d candidates, want 1 (extras should be pruned)", len(cands))
	}
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), defaultExts, 0, time.Time{}, nopLogger{})
	if err == nil {
		t.Error("expected error for missing root")
	}
}

func TestCandidate_Base(t *testing.T) {
	c := Candidate{Path: "/in/sub/ABC-123.mp4"}
	if got := c.Base(); got != "ABC-123" {
		t.Errorf("Base() = %q", got)
	}
}

func TestScan_SnapshotsSizeAndModTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.mp4", 321)

	cands, err := Scan(dir, defaultExts, 0, time.Time{}, nopLogger{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cands) != 1 || cands[0].Size != 321 || cands[0].ModTime.IsZero() || cands[0].Ext != ".mp4" {
		t.Errorf("candidate snapshot = %+v", cands)
	}
}
