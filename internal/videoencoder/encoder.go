// Package videoencoder implements the external video-encoder collaborator
// named in spec.md §2 ("the video encoder (external process invocation)").
// The production implementation shells out to ffmpeg; per spec §7
// ("Encoder absence") it falls back to writing the raw frame sequence to a
// sibling directory when ffmpeg is not on PATH.
package videoencoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// EncodeOptions mirrors the fps/format pair the Recording Engine passes at
// stop time (spec §4.7).
type EncodeOptions struct {
	FPS    int
	Format string // e.g. "webm"
}

// Encoder is the named external collaborator interface.
type Encoder interface {
	// Encode writes frames (ordered JPEG byte slices) to outputPath using
	// opts and returns the path actually written — which may differ from
	// outputPath if ffmpeg is unavailable and the fallback frame-dump path
	// is used instead.
	Encode(ctx context.Context, frames [][]byte, outputPath string, opts EncodeOptions) (string, error)
}

// FFmpegEncoder is the one production implementation.
type FFmpegEncoder struct {
	// BinaryPath overrides the ffmpeg binary resolved from PATH, mainly for
	// tests.
	BinaryPath string
}

func NewFFmpegEncoder() *FFmpegEncoder { return &FFmpegEncoder{} }

func (e *FFmpegEncoder) Encode(ctx context.Context, frames [][]byte, outputPath string, opts EncodeOptions) (string, error) {
	if len(frames) == 0 {
		return outputPath, nil
	}

	binary := e.BinaryPath
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return e.fallbackFrameDump(frames, outputPath)
	}

	frameDir, err := os.MkdirTemp("", "recording-frames-*")
	if err != nil {
		return "", fmt.Errorf("create temp frame dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	for i, frame := range frames {
		framePath := filepath.Join(frameDir, fmt.Sprintf("frame-%06d.jpg", i))
		if err := os.WriteFile(framePath, frame, 0o644); err != nil {
			return "", fmt.Errorf("write frame %d: %w", i, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", filepath.Join(frameDir, "frame-%06d.jpg"),
		"-c:v", "libvpx-vp9",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg encode failed: %w (%s)", err, string(out))
	}
	return outputPath, nil
}

// fallbackFrameDump satisfies spec §7's "Encoder absence" behavior: write
// the raw frame sequence to a sibling directory and return that path.
func (e *FFmpegEncoder) fallbackFrameDump(frames [][]byte, outputPath string) (string, error) {
	dumpDir := outputPath + "-frames"
	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		return "", fmt.Errorf("create fallback frame dir: %w", err)
	}
	for i, frame := range frames {
		framePath := filepath.Join(dumpDir, fmt.Sprintf("frame-%06d.jpg", i))
		if err := os.WriteFile(framePath, frame, 0o644); err != nil {
			return "", fmt.Errorf("write fallback frame %d: %w", i, err)
		}
	}
	return dumpDir, nil
}
