// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"

	"github.com/aleutian-labs/libid/internal/config"
)

func TestSetup_NoMetricsAddrSkipsServer(t *testing.T) {
	tel, err := Setup(config.TelemetryConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tel.metricsServer != nil {
		t.Fatalf("expected no metrics server when MetricsAddr is empty")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetup_TracingStdoutBuildsBatchingProvider(t *testing.T) {
	tel, err := Setup(config.TelemetryConfig{LogLevel: "debug", TracingStdout: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tel.tracerProvider == nil {
		t.Fatalf("expected a tracer provider to be installed")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	if parseLevel("nonsense") != parseLevel("") {
		t.Fatalf("expected unknown levels to fall back to the same default as empty")
	}
}

func TestNewInfluxSink_DisabledWhenURLEmpty(t *testing.T) {
	sink, err := NewInfluxSink(config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("NewInfluxSink: %v", err)
	}
	if sink != nil {
		t.Fatalf("expected a nil sink when InfluxURL is unset")
	}
	// Close and RecordDetection must tolerate a nil receiver.
	sink.Close()
	sink.RecordDetection("app", "accurate", 1, 1, 0.5)
}
