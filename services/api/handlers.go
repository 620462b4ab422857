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
	"context"
	"log/slog"
	"net/http"

	"github.com/aleutian-labs/libid/detect"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ProfileRequest is the body of POST /v1/profile.
type ProfileRequest struct {
	Path  string             `json:"path" binding:"required"`
	IsApp bool               `json:"is_app"`
	Meta  detect.LibraryMeta `json:"meta"`
}

// HandleProfile handles POST /v1/profile.
//
// Description:
//
//	Profiles the binary at req.Path (a filesystem path reachable by the
//	server process) and returns the resulting profile as JSON. Both library
//	and app profiles are also persisted via the profiler's store, same as
//	the `profile` CLI subcommand.
//
// Response:
//
//	200 OK: profile.LibraryProfile or profile.AppProfile
//	400 Bad Request: malformed request body
//	500 Internal Server Error: parsing/fingerprinting failure
func (s *Server) HandleProfile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleProfile")

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	ctx := c.Request.Context()
	if req.IsApp {
		ap, err := s.profiler.ProfileApp(ctx, req.Path)
		if err != nil {
			logger.Error("profiling app failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "PROFILE_FAILED"})
			return
		}
		c.JSON(http.StatusOK, ap)
		return
	}

	lp, err := s.profiler.ProfileLibrary(ctx, req.Path, req.Meta)
	if err != nil {
		logger.Error("profiling library failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "PROFILE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, lp)
}

// DetectRequest is the body of POST /v1/detect.
type DetectRequest struct {
	Path string `json:"path" binding:"required"`
}

// DetectAccepted is returned by POST /v1/detect: the client subscribes to
// GET /v1/detect/:id/events to watch progress and receive the final Result.
type DetectAccepted struct {
	ID string `json:"id"`
}

// HandleDetect handles POST /v1/detect.
//
// Description:
//
//	Starts an asynchronous detection run: the app at req.Path is profiled,
//	then matched against the server's loaded library corpus. Progress and
//	the terminal result are published to the job's event stream, not
//	returned in this response, callers subscribe via HandleDetectEvents.
//
// Response:
//
//	202 Accepted: DetectAccepted
//	400 Bad Request: malformed request body
//	503 Service Unavailable: no detector loaded yet (e.g. watch mode still indexing)
func (s *Server) HandleDetect(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDetect")

	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	d := s.currentDetector()
	if d == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "detector not ready", Code: "NOT_READY"})
		return
	}

	id := uuid.NewString()
	j := s.jobs.create(id)

	go s.runDetectJob(context.Background(), logger, j, d, req.Path)

	c.JSON(http.StatusAccepted, DetectAccepted{ID: id})
}

func (s *Server) runDetectJob(ctx context.Context, logger *slog.Logger, j *job, d *detect.Detector, path string) {
	j.publish(JobEvent{Stage: "profiling", Message: "fingerprinting app binary"})

	app, err := s.profiler.ProfileApp(ctx, path)
	if err != nil {
		logger.Error("detect job: profiling failed", slog.String("path", path), slog.String("error", err.Error()))
		j.publish(JobEvent{Stage: "profiling", Done: true, Error: err.Error()})
		return
	}

	j.publish(JobEvent{Stage: "matching", Message: "querying LSH index and running structural match"})

	result, err := d.Detect(ctx, app)
	if err != nil {
		logger.Error("detect job: detection failed", slog.String("path", path), slog.String("error", err.Error()))
		j.publish(JobEvent{Stage: "matching", Done: true, Error: err.Error()})
		return
	}

	j.publish(JobEvent{Stage: "done", Done: true, Result: &result})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleDetectEvents handles GET /v1/detect/:id/events.
//
// Description:
//
//	Upgrades to a websocket connection and streams JobEvent messages for
//	the detect job named by :id until the job finishes or the client
//	disconnects. Connecting after the job has already finished replays
//	only the terminal event, so late subscribers still see the result.
//
// Response:
//
//	101 Switching Protocols: success, followed by a JSON JobEvent stream
//	404 Not Found: unknown job ID
func (s *Server) HandleDetectEvents(c *gin.Context) {
	id := c.Param("id")
	j, ok := s.jobs.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown job id", Code: "NOT_FOUND"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("detect events: websocket upgrade failed", slog.String("job_id", id), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	events, unsubscribe := j.subscribe()
	defer unsubscribe()

	for evt := range events {
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
		if evt.Done {
			return
		}
	}
}
