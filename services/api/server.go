// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes profiling and detection over HTTP: POST /v1/profile,
// POST /v1/detect, a websocket progress stream for in-flight detect jobs,
// and a Prometheus /metrics endpoint.
package api

import (
	"sync"

	"github.com/aleutian-labs/libid/detect"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Server wires a Profiler and a (hot-swappable) Detector into a gin router.
//
// Thread Safety: Server's handlers are safe for concurrent use. detector
// is guarded by mu because detect.Watcher may swap it out from under an
// in-flight request (see SetDetector).
type Server struct {
	profiler *detect.Profiler

	mu       sync.RWMutex
	detector *detect.Detector

	jobs *jobRegistry
}

// NewServer constructs a Server. detector may be nil initially, e.g. when
// a detect.Watcher is still building its first index, in which case
// POST /v1/detect returns 503 until SetDetector is called.
func NewServer(profiler *detect.Profiler, detector *detect.Detector) *Server {
	return &Server{
		profiler: profiler,
		detector: detector,
		jobs:     newJobRegistry(),
	}
}

// SetDetector atomically swaps the detector used by subsequent requests.
func (s *Server) SetDetector(d *detect.Detector) {
	s.mu.Lock()
	s.detector = d
	s.mu.Unlock()
}

func (s *Server) currentDetector() *detect.Detector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector
}

// Router builds the gin.Engine serving every libid HTTP endpoint.
//
// Description:
//
//	Uses gin.New() plus explicit Recovery and otelgin middleware rather
//	than gin.Default(), so the exact middleware stack is visible at the
//	call site.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("libid-api"))
	router.Use(requestIDMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/profile", s.HandleProfile)
		v1.POST("/detect", s.HandleDetect)
		v1.GET("/detect/:id/events", s.HandleDetectEvents)
	}
	return router
}
