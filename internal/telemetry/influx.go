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
	"fmt"
	"log/slog"
	"time"

	"github.com/aleutian-labs/libid/internal/config"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxSink mirrors a subset of detection metrics into InfluxDB, for
// deployments that run a time-series dashboard alongside Prometheus
// (e.g. long-horizon trend charts that outlive Prometheus's retention).
//
// Thread Safety: Record is safe for concurrent use; the underlying
// write API batches and flushes asynchronously.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPI
	bucket string
	org    string
}

// NewInfluxSink connects to InfluxDB using cfg's Influx* fields. Returns
// (nil, nil) when Influx is not configured, so callers can treat a nil
// sink as "disabled" rather than special-casing the zero value.
func NewInfluxSink(cfg config.TelemetryConfig) (*InfluxSink, error) {
	if cfg.InfluxURL == "" {
		return nil, nil
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	ok, err := client.Ping(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx: ping %s: %w", cfg.InfluxURL, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("influx: %s did not respond to ping", cfg.InfluxURL)
	}
	return &InfluxSink{
		client: client,
		writer: client.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket),
		bucket: cfg.InfluxBucket,
		org:    cfg.InfluxOrg,
	}, nil
}

// RecordDetection writes one detection run as a point in the
// "libid_detect" measurement, tagged by mode and app ID.
func (s *InfluxSink) RecordDetection(appID, mode string, candidates, matches int, durationSec float64) {
	if s == nil {
		return
	}
	p := influxdb2.NewPoint(
		"libid_detect",
		map[string]string{"mode": mode, "app_id": appID},
		map[string]interface{}{
			"candidates":   candidates,
			"matches":      matches,
			"duration_sec": durationSec,
		},
		time.Now(),
	)
	s.writer.WritePoint(p)
}

// Close flushes pending points and releases the underlying client.
func (s *InfluxSink) Close() {
	if s == nil {
		return
	}
	s.writer.Flush()
	s.client.Close()
	slog.Debug("influx sink closed", slog.String("bucket", s.bucket), slog.String("org", s.org))
}
