// Package scan discovers candidate media files in the input tree and decides
// whether their transfer has finished.
package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Candidate is an immutable snapshot of a discovered input file, taken at
// scan time and re-taken each cycle. Identity is the absolute path.
type Candidate struct {
	Path    string
	Size    int64
	ModTime time.Time
	Ext     string
}

// Base returns the file name without directory or extension, the key used
// by the idempotency probe against the output tree.
func (c Candidate) Base() string {
	name := filepath.Base(c.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Logger is the minimal logging interface the scanner needs. Defined here so
// scan stays dependency-light and testable with a mock logger.
type Logger interface {
	Warn(string, ...interface{})
	Debug(string, ...interface{})
}

// Scan walks root recursively and returns candidates whose extension
// (case-insensitive) is in allowExts, whose size is at least minSize bytes,
// and whose modification time is strictly after since. Directories named
// "extras" are pruned. Results are sorted lexicographically by path for
// deterministic processing order.
//
// Errors reading an individual entry are logged and that entry is skipped;
// only a failure to walk root itself is returned.
func Scan(root string, allowExts []string, minSize int64, since time.Time, log Logger) ([]Candidate, error) {
	allowed := make(map[string]bool, len(allowExts))
	for _, ext := range allowExts {
		allowed[strings.ToLower(ext)] = true
	}

	var cands []Candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("Skipping unreadable entry %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.EqualFold(d.Name(), "extras") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !allowed[ext] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			log.Warn("Skipping unstatable file %s: %v", path, err)
			return nil
		}
		if fi.Size() < minSize {
			log.Debug("Below size floor, ignoring: %s (%d bytes)", filepath.Base(path), fi.Size())
			return nil
		}
		if !fi.ModTime().After(since) {
			return nil
		}

		cands = append(cands, Candidate{
			Path:    path,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			Ext:     ext,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].Path < cands[j].Path })
	return cands, nil
}
