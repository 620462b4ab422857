// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires up structured logging, Prometheus metrics, and
// OpenTelemetry tracing for every libid entry point.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aleutian-labs/libid/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the package-wide tracer used across libid's components,
// mirroring how the rest of the codebase calls otel.Tracer by name
// rather than threading a *Tracer value through every function.
var Tracer = otel.Tracer("libid")

// Telemetry bundles the resources a Shutdown needs to release.
//
// Thread Safety: Methods are safe for concurrent use.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
}

// Setup configures slog, the global OTel tracer provider, and (if
// cfg.MetricsAddr is non-empty) starts a background /metrics server.
//
// Description:
//
//	Setup is called once at process startup by serverrt.Run, which backs
//	`libid serve` and cmd/libidserver. It installs a process-wide slog default handler,
//	registers a tracer provider (stdout exporter when TracingStdout is
//	set, otherwise a no-op provider), and starts promhttp on MetricsAddr.
//
// Inputs:
//
//	cfg - the telemetry section of the loaded configuration.
//
// Outputs:
//
//	*Telemetry - holds the resources Shutdown needs to release.
//	error - non-nil if the tracer provider could not be constructed.
//
// Thread Safety: Setup must be called once; it mutates process-global state
// (slog's default handler, otel's global tracer provider).
func Setup(cfg config.TelemetryConfig) (*Telemetry, error) {
	level := parseLevel(cfg.LogLevel)
	var handler slog.Handler
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))

	tp, err := newTracerProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building tracer provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{tracerProvider: tp}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		t.metricsServer = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
		slog.Info("metrics endpoint listening", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("telemetry initialized",
		slog.String("log_level", cfg.LogLevel),
		slog.Bool("log_json", cfg.LogJSON),
		slog.Bool("tracing_stdout", cfg.TracingStdout),
	)
	return t, nil
}

func newTracerProvider(cfg config.TelemetryConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.TracingStdout {
		return sdktrace.NewTracerProvider(), nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

// Shutdown stops the metrics server and flushes the tracer provider,
// sharing one 5-second budget between both before abandoning the wait.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if t.metricsServer != nil {
		if err := t.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StartSpan is a thin convenience wrapper around Tracer.Start, kept so
// callers don't need to import go.opentelemetry.io/otel/trace directly
// just to spell out the return type.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, opts...)
}
