// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the settings shared by every libid
// entry point (the profile/detect CLI, the server, distributed workers).
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level settings document, loaded from YAML on disk and
// overridable by CLI flags per command (flags win; see cmd/libid).
//
// Thread Safety: Immutable after Load returns; safe for concurrent use.
type Config struct {
	// Concurrency bounds worker-pool fan-out across binaries/candidates.
	// Zero means "all CPUs" (see Profiling.Workers / Detection.Workers).
	Concurrency int `yaml:"concurrency" validate:"gte=0"`

	Profiling ProfilingConfig `yaml:"profiling"`
	Detection DetectionConfig `yaml:"detection"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Distwork  DistworkConfig  `yaml:"distwork"`
}

// ProfilingConfig governs the `profile` subcommand and Profiler defaults.
type ProfilingConfig struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
	Overwrite bool   `yaml:"overwrite"`
	Workers   int    `yaml:"workers" validate:"gte=0"`
	Verbose   bool   `yaml:"verbose"`
}

// DetectionConfig governs the `detect` subcommand and Detector defaults.
type DetectionConfig struct {
	OutputDir               string        `yaml:"output_dir" validate:"required"`
	Overwrite               bool          `yaml:"overwrite"`
	Workers                 int           `yaml:"workers" validate:"gte=0"`
	IncludeSDK              bool          `yaml:"include_sdk"`
	Scalable                bool          `yaml:"scalable"`
	ConsiderRepackaging     bool          `yaml:"consider_repackaging"`
	GhostComponentThreshold float64       `yaml:"ghost_component_threshold" validate:"gte=0,lte=1"`
	SolverTimeBudget        time.Duration `yaml:"solver_time_budget"`
	Verbose                 bool          `yaml:"verbose"`
}

// StorageConfig selects and configures the profile.Store backend.
type StorageConfig struct {
	// Backend is one of "file", "badger", "gcs". Defaults to "file".
	Backend string `yaml:"backend" validate:"omitempty,oneof=file badger gcs"`

	BadgerDir string `yaml:"badger_dir"`

	GCSBucket string `yaml:"gcs_bucket"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

// TelemetryConfig configures logging, metrics, and tracing.
type TelemetryConfig struct {
	LogLevel      string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON       bool   `yaml:"log_json"`
	MetricsAddr   string `yaml:"metrics_addr"`
	TracingStdout bool   `yaml:"tracing_stdout"`

	// InfluxURL/InfluxToken/InfluxOrg/InfluxBucket configure the optional
	// InfluxDB metrics sink (internal/telemetry/influx.go). All four must
	// be set together or none at all.
	InfluxURL    string `yaml:"influx_url"`
	InfluxToken  string `yaml:"influx_token"`
	InfluxOrg    string `yaml:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket"`
}

// ServerConfig configures the `serve` subcommand / cmd/libidserver.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DistworkConfig configures the optional NATS-backed distributed queue.
type DistworkConfig struct {
	Enabled    bool   `yaml:"enabled"`
	NATSURL    string `yaml:"nats_url" validate:"required_if=Enabled true"`
	QueueGroup string `yaml:"queue_group"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a Config with every field set to a safe, working
// default, the baseline Load starts from before overlaying YAML.
func Default() *Config {
	return &Config{
		Concurrency: runtime.NumCPU(),
		Profiling: ProfilingConfig{
			OutputDir: "./profiles",
			Workers:   0,
		},
		Detection: DetectionConfig{
			OutputDir:               "./results",
			Workers:                 0,
			GhostComponentThreshold: 0,
			SolverTimeBudget:        5 * time.Second,
		},
		Storage: StorageConfig{Backend: "file"},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsAddr: ":9090",
		},
		Server: ServerConfig{
			Addr:         ":8443",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Load reads path, overlays it onto Default(), and validates the result.
// A missing file is not an error: Load returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, validateConfig(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, validateConfig(cfg)
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if cfg.Telemetry.InfluxURL != "" || cfg.Telemetry.InfluxToken != "" || cfg.Telemetry.InfluxOrg != "" || cfg.Telemetry.InfluxBucket != "" {
		if cfg.Telemetry.InfluxURL == "" || cfg.Telemetry.InfluxToken == "" || cfg.Telemetry.InfluxOrg == "" || cfg.Telemetry.InfluxBucket == "" {
			return fmt.Errorf("telemetry: influx_url/influx_token/influx_org/influx_bucket must all be set together")
		}
	}
	return nil
}
