// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("expected default storage backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Server.Addr == "" {
		t.Fatalf("expected a default server address")
	}
}

func TestLoad_OverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libid.yaml")
	yaml := []byte(`
concurrency: 2
detection:
  output_dir: /tmp/out
  scalable: true
storage:
  backend: badger
  badger_dir: /tmp/badger
`)
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 2 {
		t.Fatalf("expected concurrency overlaid to 2, got %d", cfg.Concurrency)
	}
	if cfg.Detection.OutputDir != "/tmp/out" || !cfg.Detection.Scalable {
		t.Fatalf("expected detection settings overlaid, got %+v", cfg.Detection)
	}
	if cfg.Storage.Backend != "badger" || cfg.Storage.BadgerDir != "/tmp/badger" {
		t.Fatalf("expected storage settings overlaid, got %+v", cfg.Storage)
	}
	if cfg.Profiling.OutputDir != "./profiles" {
		t.Fatalf("expected untouched fields to keep their defaults, got %+v", cfg.Profiling)
	}
}

func TestLoad_RejectsInvalidStorageBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libid.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: ftp\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for an unsupported storage backend")
	}
}

func TestLoad_RejectsPartialInfluxConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libid.yaml")
	if err := os.WriteFile(path, []byte("telemetry:\n  influx_url: http://localhost:8086\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error when only some influx fields are set")
	}
}

func TestLoad_RejectsDistworkEnabledWithoutNATSURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libid.yaml")
	if err := os.WriteFile(path, []byte("distwork:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error when distwork is enabled without a NATS URL")
	}
}
