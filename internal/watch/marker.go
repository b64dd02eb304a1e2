package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// markerState is the persisted scan watermark: files modified at or before
// LastRun have been seen by a fully successful run and are never rescanned.
type markerState struct {
	LastRun time.Time `json:"last_run"`
}

// LoadMarker reads the watermark at path. A missing or unreadable marker
// yields the zero time, which makes the next scan consider everything.
func LoadMarker(path string) time.Time {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}
	}
	var st markerState
	if err := json.Unmarshal(data, &st); err != nil {
		return time.Time{}
	}
	return st.LastRun
}

// SaveMarker replaces the watermark atomically.
func SaveMarker(path string, t time.Time) error {
	data, err := json.Marshal(markerState{LastRun: t.UTC()})
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace marker: %w", err)
	}
	return nil
}
