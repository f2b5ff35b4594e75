// Package recording implements the Recording Engine (spec §4.7): the
// per-page screencast lifecycle, frame accumulation, console-log
// correlation, key-frame extraction and summary emission.
//
// Grounded on the teacher's internal/recorder/chrome.go, which already
// drives chromedp screencast start/stop and frame-ack plumbing for a
// single fixed recording; this generalizes that into the documented idle
// -> recording -> encoding -> done/aborted state machine, parameterized by
// RecordingOptions, and wires a real console-log slice and external
// encoder collaborator where the teacher wrote fixed frames to disk.
package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/tripleyak/dev-browser-studio/internal/browserclient"
	"github.com/tripleyak/dev-browser-studio/internal/console"
	"github.com/tripleyak/dev-browser-studio/internal/videoencoder"
)

// Options are the Recording options enumerated in spec §3.
type Options struct {
	MaxWidth           int
	MaxHeight          int
	Quality            int
	EveryNthFrame      int
	CaptureConsoleLogs bool
	ExtractKeyFrames   bool
	KeyFrameCount      int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxWidth:           1280,
		MaxHeight:          720,
		Quality:            80,
		EveryNthFrame:      1,
		CaptureConsoleLogs: true,
		ExtractKeyFrames:   true,
		KeyFrameCount:      5,
	}
}

// State is a point-in-time snapshot of the recording state, for the
// status endpoint (spec §6).
type State struct {
	IsActive        bool
	StartedAt       time.Time
	FrameCount      int
	ConsoleLogCount int
}

// StopResult is the shape returned by Stop (spec §6's recording/stop
// response plus the summary fields).
type StopResult struct {
	VideoPath     string
	DurationMs    int64
	FrameCount    int
	ConsoleLogs   []console.Entry
	KeyFramePaths []string
	SummaryPath   string
}

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Sanitize replaces every character outside [A-Za-z0-9_-] with "_" (spec
// §6's file-layout sanitization rule).
func Sanitize(name string) string {
	return sanitizeRe.ReplaceAllString(name, "_")
}

// ErrAlreadyRecording / ErrNotRecording map to the 409 lifecycle
// conflicts in spec §4.7 / §7.
var (
	ErrAlreadyRecording = fmt.Errorf("recording already in progress")
	ErrNotRecording      = fmt.Errorf("No recording in progress")
)

// Engine owns one page's recording state machine. A page entry owns at
// most one Engine's active recording at a time (spec §3 invariant).
type Engine struct {
	pageName    string
	page        browserclient.Page
	consoleSink *console.Sink
	encoder     videoencoder.Encoder
	outDir      string

	mu                  sync.Mutex
	active              bool
	startedAt           time.Time
	frames              [][]byte
	frameCount          int
	opts                Options
	recordingStartIndex int
	sessionCancel       context.CancelFunc
	lastVideoPath       string
}

// LastVideoPath returns the video path produced by the most recent Stop
// call, or "" if none has completed yet. Backs GET /pages/:name/video
// (spec §6).
func (e *Engine) LastVideoPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastVideoPath
}

// NewEngine binds an Engine to one page, its console sink and the shared
// encoder collaborator. outDir is the recordings directory (spec §6).
func NewEngine(pageName string, pg browserclient.Page, consoleSink *console.Sink, encoder videoencoder.Encoder, outDir string) *Engine {
	return &Engine{pageName: pageName, page: pg, consoleSink: consoleSink, encoder: encoder, outDir: outDir}
}

// Status returns the current recording state (spec §6).
func (e *Engine) Status() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		IsActive:        e.active,
		StartedAt:       e.startedAt,
		FrameCount:      e.frameCount,
		ConsoleLogCount: e.consoleSink.Len(),
	}
}

// Start transitions idle -> recording (spec §4.7). Returns
// ErrAlreadyRecording if a recording is already active on this page.
func (e *Engine) Start(ctx context.Context, opts Options) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return ErrAlreadyRecording
	}
	e.active = true
	e.startedAt = time.Now()
	e.frames = nil
	e.frameCount = 0
	e.opts = opts
	e.recordingStartIndex = e.consoleSink.Len()
	e.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(e.page.CDPContext())
	e.mu.Lock()
	e.sessionCancel = cancel
	e.mu.Unlock()

	chromedp.ListenTarget(sessionCtx, func(ev interface{}) {
		frameEv, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		// Ack immediately; the session may already be gone by the time we
		// get here, so a failed ack is swallowed rather than surfaced
		// (spec §4.7).
		go func() {
			_ = chromedp.Run(sessionCtx, page.ScreencastFrameAck(frameEv.SessionID))
		}()

		e.mu.Lock()
		if e.active {
			e.frames = append(e.frames, frameEv.Data)
			e.frameCount++
		}
		e.mu.Unlock()
	})

	err := chromedp.Run(sessionCtx, page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(int64(opts.Quality)).
		WithMaxWidth(int64(opts.MaxWidth)).
		WithMaxHeight(int64(opts.MaxHeight)).
		WithEveryNthFrame(int64(opts.EveryNthFrame)))
	if err != nil {
		e.mu.Lock()
		e.active = false
		e.mu.Unlock()
		cancel()
		return fmt.Errorf("start screencast: %w", err)
	}
	return nil
}

// Stop transitions recording -> encoding -> done (spec §4.7). Returns
// ErrNotRecording if no recording is active.
func (e *Engine) Stop(ctx context.Context) (StopResult, error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return StopResult{}, ErrNotRecording
	}
	e.active = false
	startedAt := e.startedAt
	frames := e.frames
	frameCount := e.frameCount
	opts := e.opts
	startIndex := e.recordingStartIndex
	cancel := e.sessionCancel
	e.mu.Unlock()

	// Best-effort stop + detach; in-flight acks after this point are
	// tolerated and their frames ignored (spec §5).
	_ = chromedp.Run(e.page.CDPContext(), page.StopScreencast())
	if cancel != nil {
		cancel()
	}

	durationMs := time.Since(startedAt).Milliseconds()

	var logs []console.Entry
	if opts.CaptureConsoleLogs {
		logs = e.consoleSink.Since(startIndex)
	}

	sanitized := Sanitize(e.pageName)
	outputPath := filepath.Join(e.outDir, fmt.Sprintf("%s-%d.webm", sanitized, startedAt.UnixMilli()))

	videoPath, err := e.encoder.Encode(ctx, frames, outputPath, videoencoder.EncodeOptions{FPS: 30, Format: "webm"})
	if err != nil {
		return StopResult{}, fmt.Errorf("encode recording: %w", err)
	}

	var keyFramePaths []string
	if opts.ExtractKeyFrames && len(frames) > 0 {
		count := opts.KeyFrameCount
		if count <= 0 {
			count = 1
		}
		if count > len(frames) {
			count = len(frames)
		}
		step := len(frames) / count
		base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
		for i := 0; i < count; i++ {
			idx := i * step
			kfPath := fmt.Sprintf("%s-keyframe-%d.jpg", base, i+1)
			if err := os.WriteFile(kfPath, frames[idx], 0o644); err != nil {
				return StopResult{}, fmt.Errorf("write key frame %d: %w", i+1, err)
			}
			keyFramePaths = append(keyFramePaths, kfPath)
		}
	}

	pageURL, _ := e.page.URL(ctx)
	pageTitle, _ := e.page.Title(ctx)

	summaryPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "-summary.json"
	if err := writeSummary(summaryPath, summaryDoc{
		Recording: recordingInfo{
			VideoPath:  videoPath,
			DurationMs: durationMs,
			FrameCount: frameCount,
			StartedAt:  startedAt,
			StoppedAt:  time.Now(),
		},
		ConsoleLogs: logs,
		KeyFrames:   keyFramePaths,
		Page:        pageInfo{URL: pageURL, Title: pageTitle},
	}); err != nil {
		return StopResult{}, err
	}

	e.mu.Lock()
	e.frames = nil
	e.frameCount = 0
	e.lastVideoPath = videoPath
	e.mu.Unlock()

	return StopResult{
		VideoPath:     videoPath,
		DurationMs:    durationMs,
		FrameCount:    frameCount,
		ConsoleLogs:   logs,
		KeyFramePaths: keyFramePaths,
		SummaryPath:   summaryPath,
	}, nil
}

// Abort forcibly stops any active screencast and detaches, without
// encoding or writing a summary — the page-close / forced-shutdown path
// (spec §4.7 "Abort paths").
func (e *Engine) Abort() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	cancel := e.sessionCancel
	e.frames = nil
	e.frameCount = 0
	e.mu.Unlock()

	_ = chromedp.Run(e.page.CDPContext(), page.StopScreencast())
	if cancel != nil {
		cancel()
	}
}

type recordingInfo struct {
	VideoPath  string    `json:"videoPath"`
	DurationMs int64     `json:"durationMs"`
	FrameCount int       `json:"frameCount"`
	StartedAt  time.Time `json:"startedAt"`
	StoppedAt  time.Time `json:"stoppedAt"`
}

type pageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type summaryDoc struct {
	Recording   recordingInfo   `json:"recording"`
	ConsoleLogs []console.Entry `json:"consoleLogs"`
	KeyFrames   []string        `json:"keyFrames"`
	Page        pageInfo        `json:"page"`
}

func writeSummary(path string, doc summaryDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recording summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recording summary: %w", err)
	}
	return nil
}
