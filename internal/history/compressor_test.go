package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tripleyak/dev-browser-studio/internal/action"
)

func TestCompress_Empty(t *testing.T) {
	require.Equal(t, "", Compress(nil, 0))
}

func TestCompress_UnderCapShowsEveryEntryDetailed(t *testing.T) {
	entries := []Entry{
		{CycleIndex: 0, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e3"}}, Success: true},
		{CycleIndex: 1, Action: action.Action{Kind: action.KindType, Input: map[string]interface{}{"ref": "e4", "text": "hello"}}, Success: false, Error: "element not found"},
	}
	out := Compress(entries, 10)

	require.Contains(t, out, "click(ref=e3)")
	require.Contains(t, out, "type(ref=e4, text=\"hello\")")
	require.Contains(t, out, "FAILED: element not found")
	require.NotContains(t, out, "earlier actions")
}

func TestCompress_OverCapSummarizesEarlier(t *testing.T) {
	var entries []Entry
	for i := 0; i < 15; i++ {
		entries = append(entries, Entry{
			CycleIndex: i,
			Action:     action.Action{Kind: action.KindWait, Input: map[string]interface{}{"ms": float64(100)}},
			Success:    i%3 != 0,
		})
	}
	out := Compress(entries, 10)

	lines := strings.Split(out, "\n")
	require.Contains(t, lines[0], "5 earlier actions")
	require.Len(t, lines, 11) // 1 summary line + 10 detailed
}

func TestCompress_ClickFallsBackToCoordinates(t *testing.T) {
	entries := []Entry{
		{CycleIndex: 0, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"x": float64(12), "y": float64(34)}}, Success: true},
	}
	out := Compress(entries, 10)
	require.Contains(t, out, "click(x=12, y=34)")
}

func TestCompress_TerminalActionsRenderBare(t *testing.T) {
	entries := []Entry{
		{CycleIndex: 0, Action: action.Action{Kind: action.KindDone}, Success: true},
	}
	out := Compress(entries, 10)
	require.Contains(t, out, "1. done → OK")
}
