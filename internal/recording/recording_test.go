package recording

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tripleyak/dev-browser-studio/internal/console"
)

// TestMain guards against leaking the screencast-ack goroutines Start
// spawns per frame (spec §4.7) — none of the tests in this file drive a
// live session, but this keeps the guarantee checked as soon as any test
// here does start touching a real page.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSanitize_ReplacesDisallowedCharacters(t *testing.T) {
	require.Equal(t, "my_page_name", Sanitize("my page name"))
	require.Equal(t, "a-b_c-D9", Sanitize("a-b c-D9"))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, 1280, opts.MaxWidth)
	require.Equal(t, 720, opts.MaxHeight)
	require.True(t, opts.CaptureConsoleLogs)
	require.True(t, opts.ExtractKeyFrames)
}

func TestEngine_StatusWhenIdle(t *testing.T) {
	sink := console.NewSink()
	engine := NewEngine("my-page", nil, sink, nil, t.TempDir())

	status := engine.Status()
	require.False(t, status.IsActive)
	require.Equal(t, 0, status.FrameCount)
}

func TestEngine_StopWithoutStartReturnsErrNotRecording(t *testing.T) {
	sink := console.NewSink()
	engine := NewEngine("my-page", nil, sink, nil, t.TempDir())

	_, err := engine.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestEngine_AbortWhenIdleIsNoOp(t *testing.T) {
	sink := console.NewSink()
	engine := NewEngine("my-page", nil, sink, nil, t.TempDir())

	// Must not panic or touch the (nil) page since the engine was never
	// started.
	engine.Abort()
	require.False(t, engine.Status().IsActive)
}

func TestEngine_LastVideoPathEmptyBeforeAnyStop(t *testing.T) {
	sink := console.NewSink()
	engine := NewEngine("my-page", nil, sink, nil, t.TempDir())
	require.Equal(t, "", engine.LastVideoPath())
}
