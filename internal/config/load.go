package config

// This file implements YAML config-file loading. File values overlay the
// defaults; only keys present in the file are applied, so Config defaults
// hold unless set. Interval-style keys take seconds, size keys take MB,
// matching the legacy monitor.json schema.

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk schema. Pointer fields distinguish "absent"
// from zero so partial files work.
type fileConfig struct {
	InputDirectory  *string `yaml:"input_directory"`
	OutputDirectory *string `yaml:"output_directory"`
	LogDirectory    *string `yaml:"log_directory"`

	LockFile    *string `yaml:"lock_file"`
	StateFile   *string `yaml:"state_file"`
	HistoryFile *string `yaml:"history_file"`
	MarkerFile  *string `yaml:"marker_file"`

	VideoExtensions []string `yaml:"video_extensions"`
	MinFileSizeMB   *int     `yaml:"min_file_size_mb"`

	WatchMode        *string  `yaml:"watch_mode"`
	CheckIntervalSec *float64 `yaml:"check_interval"`
	DebounceSec      *float64 `yaml:"debounce_delay"`

	StabilitySampleSec *float64 `yaml:"stability_sample_delay"`
	StabilityPollSec   *float64 `yaml:"stability_poll_interval"`
	StabilityBudgetSec *float64 `yaml:"stability_wait_budget"`

	MaxBatchSize     *int     `yaml:"max_batch_size"`
	MaxRuntimeSec    *float64 `yaml:"max_processing_time"`
	MaxRetries       *int     `yaml:"max_retries"`
	RetryBackoffSec  *float64 `yaml:"retry_backoff"`
	EngineTimeoutSec *float64 `yaml:"engine_timeout"`

	EngineCommand []string `yaml:"engine_command"`
	HealthCommand []string `yaml:"health_command"`
	Container     *string  `yaml:"container"`

	LogMaxSizeMB     *int `yaml:"log_max_size_mb"`
	LogKeepLines     *int `yaml:"log_keep_lines"`
	LogRetentionDays *int `yaml:"cleanup_days"`

	AlertThreshold *float64 `yaml:"alert_threshold"`
	MetricsAddr    *string  `yaml:"metrics_addr"`
}

// LoadFile overlays cfg with values from the YAML file at path. A missing
// file is not an error when optional is true (the default config locations
// may legitimately not exist); any other read or parse failure is.
func LoadFile(cfg *Config, path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

// apply copies present file values onto cfg.
func (fc *fileConfig) apply(cfg *Config) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *float64) {
		if src != nil {
			*dst = time.Duration(*src * float64(time.Second))
		}
	}

	setStr(&cfg.InputDir, fc.InputDirectory)
	setStr(&cfg.OutputDir, fc.OutputDirectory)
	setStr(&cfg.LogDir, fc.LogDirectory)
	setStr(&cfg.LockFile, fc.LockFile)
	setStr(&cfg.StateFile, fc.StateFile)
	setStr(&cfg.HistoryFile, fc.HistoryFile)
	setStr(&cfg.MarkerFile, fc.MarkerFile)
	setStr(&cfg.Container, fc.Container)

	if fc.VideoExtensions != nil {
		cfg.VideoExtensions = fc.VideoExtensions
	}
	if fc.EngineCommand != nil {
		cfg.EngineCommand = fc.EngineCommand
	}
	if fc.HealthCommand != nil {
		cfg.HealthCommand = fc.HealthCommand
	}
	if fc.WatchMode != nil {
		cfg.WatchMode = WatchMode(*fc.WatchMode)
	}

	setInt(&cfg.MinFileSizeMB, fc.MinFileSizeMB)
	setInt(&cfg.MaxBatchSize, fc.MaxBatchSize)
	setInt(&cfg.MaxRetries, fc.MaxRetries)
	setInt(&cfg.LogMaxSizeMB, fc.LogMaxSizeMB)
	setInt(&cfg.LogKeepLines, fc.LogKeepLines)
	setInt(&cfg.LogRetentionDays, fc.LogRetentionDays)

	setDur(&cfg.ScanInterval, fc.CheckIntervalSec)
	setDur(&cfg.DebounceDelay, fc.DebounceSec)
	setDur(&cfg.StabilitySampleDelay, fc.StabilitySampleSec)
	setDur(&cfg.StabilityPollInterval, fc.StabilityPollSec)
	setDur(&cfg.StabilityWaitBudget, fc.StabilityBudgetSec)
	setDur(&cfg.MaxRuntime, fc.MaxRuntimeSec)
	setDur(&cfg.RetryBackoff, fc.RetryBackoffSec)
	setDur(&cfg.EngineTimeout, fc.EngineTimeoutSec)

	if fc.AlertThreshold != nil {
		cfg.AlertThreshold = *fc.AlertThreshold
	}
	setStr(&cfg.MetricsAddr, fc.MetricsAddr)
}
