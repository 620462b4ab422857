// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aleutian-labs/libid/bytecode"
	"github.com/aleutian-labs/libid/detect"
	"github.com/aleutian-labs/libid/profile"
	"github.com/gin-gonic/gin"
)

type fakeSDK map[string]bool

func (s fakeSDK) Contains(className string) bool { return s[className] }

type fakeParser struct{ classes []bytecode.Class }

func (p fakeParser) Parse(_ context.Context, _ string) ([]bytecode.Class, bytecode.AppMeta, error) {
	return p.classes, bytecode.AppMeta{Filename: "app.apk", AppID: "com.example.app"}, nil
}
func (p fakeParser) Ext() []string { return []string{".fake"} }

func init() { gin.SetMode(gin.TestMode) }

func TestHandleDetect_ReturnsServiceUnavailableWithoutDetector(t *testing.T) {
	sdk := fakeSDK{}
	store := profile.NewFileStore(t.TempDir())
	profiler := detect.NewProfiler(sdk, fakeParser{}, store, nil)
	srv := NewServer(profiler, nil)

	body, _ := json.Marshal(DetectRequest{Path: "app.fake"})
	req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no detector is loaded, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleProfile_RejectsMissingPath(t *testing.T) {
	sdk := fakeSDK{}
	store := profile.NewFileStore(t.TempDir())
	profiler := detect.NewProfiler(sdk, fakeParser{}, store, nil)
	srv := NewServer(profiler, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/profile", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing path, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint_ServesPrometheusFormat(t *testing.T) {
	sdk := fakeSDK{}
	store := profile.NewFileStore(t.TempDir())
	profiler := detect.NewProfiler(sdk, fakeParser{}, store, nil)
	srv := NewServer(profiler, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
