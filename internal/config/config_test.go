package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeDirArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no trailing slash", "/media/incoming", "/media/incoming"},
		{"single trailing slash", "/media/incoming/", "/media/incoming"},
		{"multiple trailing slashes", "/media/incoming///", "/media/incoming"},
		{"root path", "/", "/"},
		{"relative path", "input", "input"},
		{"relative with slash", "input/", "input"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDirArg(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeDirArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.InputDir = "/media/incoming"
	cfg.OutputDir = "/media/library"
	return cfg
}

func TestValidate_WatchMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    WatchMode
		wantErr bool
	}{
		{"auto is valid", WatchAuto, false},
		{"events is valid", WatchEvents, false},
		{"poll is valid", WatchPoll, false},
		{"empty is invalid", "", true},
		{"unknown is invalid", "inotify", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.WatchMode = tt.mode
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RequiresDirs(t *testing.T) {
	cfg := validConfig()
	cfg.InputDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted empty input dir")
	}

	cfg = validConfig()
	cfg.OutputDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted empty output dir")
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative min size", func(c *Config) { c.MinFileSizeMB = -1 }},
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"threshold above 1", func(c *Config) { c.AlertThreshold = 1.5 }},
		{"threshold below 0", func(c *Config) { c.AlertThreshold = -0.1 }},
		{"empty engine command", func(c *Config) { c.EngineCommand = nil }},
		{"empty extension list", func(c *Config) { c.VideoExtensions = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}

func TestValidate_NormalizesExtensions(t *testing.T) {
	cfg := validConfig()
	cfg.VideoExtensions = []string{"MP4", ".Mkv", " avi "}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []string{".mp4", ".mkv", ".avi"}
	for i, w := range want {
		if cfg.VideoExtensions[i] != w {
			t.Errorf("extension[%d] = %q, want %q", i, cfg.VideoExtensions[i], w)
		}
	}
}

func TestValidatePaths(t *testing.T) {
	cfg := validConfig()
	tests := []struct {
		name    string
		in, out string
		wantErr bool
	}{
		{"disjoint", "/media/incoming", "/media/library", false},
		{"output inside input", "/media/incoming", "/media/incoming/done", true},
		{"same path", "/media/incoming", "/media/incoming", true},
		{"shared prefix but sibling", "/media/in", "/media/incoming", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cfg.ValidatePaths(tt.in, tt.out)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePaths(%q, %q) error = %v, wantErr %v", tt.in, tt.out, err, tt.wantErr)
			}
		})
	}
}

func TestDerive_FillsStatePaths(t *testing.T) {
	cfg := validConfig()
	cfg.Derive()

	if cfg.LogDir != filepath.Join("/media", "logs") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	for name, p := range map[string]string{
		"LockFile":    cfg.LockFile,
		"StateFile":   cfg.StateFile,
		"HistoryFile": cfg.HistoryFile,
		"MarkerFile":  cfg.MarkerFile,
	} {
		if filepath.Dir(p) != cfg.LogDir {
			t.Errorf("%s = %q, want inside %q", name, p, cfg.LogDir)
		}
	}
}

func TestDerive_KeepsExplicitPaths(t *testing.T) {
	cfg := validConfig()
	cfg.LockFile = "/run/ingestd.lock"
	cfg.Derive()
	if cfg.LockFile != "/run/ingestd.lock" {
		t.Errorf("LockFile = %q, want explicit value kept", cfg.LockFile)
	}
}

func TestUnitConversions(t *testing.T) {
	cfg := validConfig()
	cfg.MinFileSizeMB = 200
	if got := cfg.MinFileSizeBytes(); got != 200*1024*1024 {
		t.Errorf("MinFileSizeBytes = %d", got)
	}
	cfg.LogRetentionDays = 7
	if got := cfg.LogRetention(); got != 7*24*time.Hour {
		t.Errorf("LogRetention = %v", got)
	}
}
