// Package handlers: recording lifecycle endpoints (spec §6 rows
// recording/status, recording/start, recording/stop, video).
package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/tripleyak/dev-browser-studio/internal/recording"
)

// RecordingStatus implements GET /pages/:name/recording/status (spec §6):
// {isRecording, startedAt?, frameCount?, consoleLogCount?}.
func (s *Server) RecordingStatus(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}
	status := entry.Recorder.Status()
	resp := gin.H{"isRecording": status.IsActive}
	if status.IsActive {
		resp["startedAt"] = status.StartedAt
		resp["frameCount"] = status.FrameCount
		resp["consoleLogCount"] = status.ConsoleLogCount
	}
	c.JSON(http.StatusOK, resp)
}

type startRecordingRequest struct {
	Options *struct {
		MaxWidth           int  `json:"maxWidth"`
		MaxHeight          int  `json:"maxHeight"`
		Quality            int  `json:"quality"`
		EveryNthFrame      int  `json:"everyNthFrame"`
		CaptureConsoleLogs *bool `json:"captureConsoleLogs"`
		ExtractKeyFrames   *bool `json:"extractKeyFrames"`
		KeyFrameCount      int  `json:"keyFrameCount"`
	} `json:"options,omitempty"`
}

// resolveOptions merges a request's optional overrides onto the
// documented defaults (spec §3).
func resolveOptions(req startRecordingRequest) recording.Options {
	opts := recording.DefaultOptions()
	o := req.Options
	if o == nil {
		return opts
	}
	if o.MaxWidth > 0 {
		opts.MaxWidth = o.MaxWidth
	}
	if o.MaxHeight > 0 {
		opts.MaxHeight = o.MaxHeight
	}
	if o.Quality > 0 {
		opts.Quality = o.Quality
	}
	if o.EveryNthFrame > 0 {
		opts.EveryNthFrame = o.EveryNthFrame
	}
	if o.CaptureConsoleLogs != nil {
		opts.CaptureConsoleLogs = *o.CaptureConsoleLogs
	}
	if o.ExtractKeyFrames != nil {
		opts.ExtractKeyFrames = *o.ExtractKeyFrames
	}
	if o.KeyFrameCount > 0 {
		opts.KeyFrameCount = o.KeyFrameCount
	}
	return opts
}

// StartRecording implements POST /pages/:name/recording/start (spec §6):
// {success, error?}. Returns 409 if a recording is already active on this
// page (spec §4.7, §8 boundary scenario 5).
func (s *Server) StartRecording(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}

	var req startRecordingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
			return
		}
	}

	if err := entry.Recorder.Start(c.Request.Context(), resolveOptions(req)); err != nil {
		if errors.Is(err, recording.ErrAlreadyRecording) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StopRecording implements POST /pages/:name/recording/stop (spec §6).
// Returns 409 if no recording is in progress (spec §8 boundary scenario 5).
func (s *Server) StopRecording(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}

	result, err := entry.Recorder.Stop(c.Request.Context())
	if err != nil {
		if errors.Is(err, recording.ErrNotRecording) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"videoPath":     result.VideoPath,
		"durationMs":    result.DurationMs,
		"frameCount":    result.FrameCount,
		"consoleLogs":   result.ConsoleLogs,
		"keyFramePaths": result.KeyFramePaths,
		"summaryPath":   result.SummaryPath,
	})
}

// Video implements GET /pages/:name/video (spec §6): {videoPath?, pending, error?}.
// pending is true while a recording is active or has never produced a
// video file yet.
func (s *Server) Video(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}

	status := entry.Recorder.Status()
	if status.IsActive {
		c.JSON(http.StatusOK, gin.H{"pending": true})
		return
	}

	lastVideoPath := entry.Recorder.LastVideoPath()
	if lastVideoPath == "" {
		c.JSON(http.StatusOK, gin.H{"pending": true})
		return
	}
	if _, err := os.Stat(lastVideoPath); err != nil {
		c.JSON(http.StatusOK, gin.H{"pending": false, "error": "video file missing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": false, "videoPath": lastVideoPath})
}
