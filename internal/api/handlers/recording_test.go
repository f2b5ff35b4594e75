package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tripleyak/dev-browser-studio/internal/recording"
)

func TestResolveOptions_NoOverridesReturnsDefaults(t *testing.T) {
	opts := resolveOptions(startRecordingRequest{})
	require.Equal(t, recording.DefaultOptions(), opts)
}

func TestResolveOptions_OverridesMergeOntoDefaults(t *testing.T) {
	captureFalse := false
	req := startRecordingRequest{
		Options: &struct {
			MaxWidth           int   `json:"maxWidth"`
			MaxHeight          int   `json:"maxHeight"`
			Quality            int   `json:"quality"`
			EveryNthFrame      int   `json:"everyNthFrame"`
			CaptureConsoleLogs *bool `json:"captureConsoleLogs"`
			ExtractKeyFrames   *bool `json:"extractKeyFrames"`
			KeyFrameCount      int   `json:"keyFrameCount"`
		}{
			MaxWidth:           640,
			CaptureConsoleLogs: &captureFalse,
		},
	}

	opts := resolveOptions(req)
	require.Equal(t, 640, opts.MaxWidth)
	require.False(t, opts.CaptureConsoleLogs)
	// Untouched fields keep their documented defaults.
	require.Equal(t, 720, opts.MaxHeight)
	require.True(t, opts.ExtractKeyFrames)
}
