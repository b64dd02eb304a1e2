package pipeline

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/backmassage/ingestd/internal/scan"
)

// sidecarSuffixes are the artifact endings the engine leaves next to an
// organized file. Finding any of them with the candidate's base name in the
// output tree means the candidate was already handled.
var sidecarSuffixes = []string{".nfo", "-poster.jpg", "-fanart.jpg"}

var errFound = errors.New("marker found")

// AlreadyProcessed reports whether the output tree already contains a
// sidecar artifact for the candidate: a file whose name contains the
// candidate's base name (extension stripped) and ends in a recognized
// sidecar suffix.
//
// This is a best-effort substring probe, not a strict join key: a candidate
// whose base name is a prefix of another title's artifact will be
// misreported as done. The original system has no canonical mapping between
// input file and output artifact, so this heuristic is the sole source of
// idempotency truth. Errors walking the output tree count as "not
// processed" so work is redone rather than silently dropped.
func AlreadyProcessed(cand scan.Candidate, outputRoot string) bool {
	base := cand.Base()
	if base == "" {
		return false
	}

	err := filepath.WalkDir(outputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == outputRoot {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.Contains(name, base) {
			return nil
		}
		for _, suffix := range sidecarSuffixes {
			if strings.HasSuffix(name, suffix) {
				return errFound
			}
		}
		return nil
	})
	return errors.Is(err, errFound)
}
