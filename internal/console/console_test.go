package console

import (
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain guards the Attach event-listener goroutine chromedp.ListenTarget
// spawns per page (spec §4.7's console capture) against leaking past a
// test's lifetime.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSink_AppendAndAll(t *testing.T) {
	s := NewSink()
	s.append(Entry{Text: "first"})
	s.append(Entry{Text: "second"})

	require.Equal(t, 2, s.Len())
	all := s.All()
	require.Len(t, all, 2)
	require.Equal(t, "first", all[0].Text)
}

func TestSink_Since(t *testing.T) {
	s := NewSink()
	s.append(Entry{Text: "a"})
	s.append(Entry{Text: "b"})
	s.append(Entry{Text: "c"})

	since := s.Since(1)
	require.Len(t, since, 2)
	require.Equal(t, "b", since[0].Text)

	require.Nil(t, s.Since(10))
	require.Len(t, s.Since(-5), 3)
}

func TestSink_Clear(t *testing.T) {
	s := NewSink()
	s.append(Entry{Text: "a"})
	s.Clear()
	require.Equal(t, 0, s.Len())
}

func TestLevelFromRuntime(t *testing.T) {
	require.Equal(t, LevelWarn, levelFromRuntime(runtime.APITypeWarning))
	require.Equal(t, LevelError, levelFromRuntime(runtime.APITypeError))
	require.Equal(t, LevelInfo, levelFromRuntime(runtime.APITypeInfo))
	require.Equal(t, LevelDebug, levelFromRuntime(runtime.APITypeDebug))
	require.Equal(t, LevelTrace, levelFromRuntime(runtime.APITypeTrace))
	require.Equal(t, LevelLog, levelFromRuntime(runtime.APITypeLog))
}

func TestArgText_FallbackChain(t *testing.T) {
	require.Equal(t, "", argText(nil))
	require.Equal(t, `hello`, argText(&runtime.RemoteObject{Value: []byte(`"hello"`)}))
	require.Equal(t, "a description", argText(&runtime.RemoteObject{Description: "a description"}))
	require.Equal(t, "preview text", argText(&runtime.RemoteObject{
		Preview: &runtime.ObjectPreview{Description: "preview text"},
	}))
	require.Equal(t, "object", argText(&runtime.RemoteObject{Type: runtime.TypeObject}))
}
