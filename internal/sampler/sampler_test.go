package sampler

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidFrame(t *testing.T, gray uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	c := color.RGBA{R: gray, G: gray, B: gray, A: 255}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHasChanged_FirstFrameAlwaysTriggers(t *testing.T) {
	s := New(DefaultConfig())
	changed, err := s.HasChanged(solidFrame(t, 10))
	require.NoError(t, err)
	require.True(t, changed)
}

func TestHasChanged_IdenticalFrameSkipped(t *testing.T) {
	s := New(DefaultConfig())
	frame := solidFrame(t, 10)

	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.HasChanged(frame)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestHasChanged_LargeDeltaTriggers(t *testing.T) {
	s := New(DefaultConfig())
	_, err := s.HasChanged(solidFrame(t, 10))
	require.NoError(t, err)

	changed, err := s.HasChanged(solidFrame(t, 250))
	require.NoError(t, err)
	require.True(t, changed)
}

func TestHasChanged_HeartbeatFiresAfterNSkips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatEvery = 3
	s := New(cfg)
	frame := solidFrame(t, 10)

	_, err := s.HasChanged(frame)
	require.NoError(t, err)

	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = s.HasChanged(frame)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed, "heartbeat should force a capture on the HeartbeatEvery-th frame since the last capture")
}

func TestForceCapture_OverridesDiff(t *testing.T) {
	s := New(DefaultConfig())
	frame := solidFrame(t, 10)
	_, err := s.HasChanged(frame)
	require.NoError(t, err)

	s.ForceCapture()
	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestReset_ClearsCachedState(t *testing.T) {
	s := New(DefaultConfig())
	frame := solidFrame(t, 10)
	_, err := s.HasChanged(frame)
	require.NoError(t, err)

	s.Reset()
	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed, "a reset sampler should treat the next frame as new")
}

func TestHasChanged_InvalidImageErrors(t *testing.T) {
	s := New(DefaultConfig())
	_, err := s.HasChanged([]byte("not an image"))
	require.Error(t, err)
}
