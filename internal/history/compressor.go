// Package history implements the History Compressor (spec §4.6): it
// collapses a cycle log into a short prompt summary for the Vision Client.
// No pack repo has a direct analog (this is prompt-building glue specific
// to the agent loop); built directly from spec.md.
package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tripleyak/dev-browser-studio/internal/action"
)

// Entry is the minimal slice of a cycle entry the compressor needs: the
// action taken and whether it succeeded.
type Entry struct {
	CycleIndex int
	Action     action.Action
	Success    bool
	Error      string
}

const defaultMaxDetailed = 10

// Compress renders entries into one string per spec §4.6. maxDetailed <= 0
// uses the documented default of 10.
func Compress(entries []Entry, maxDetailed int) string {
	if len(entries) == 0 {
		return ""
	}
	if maxDetailed <= 0 {
		maxDetailed = defaultMaxDetailed
	}

	var lines []string
	recent := entries
	if len(entries) > maxDetailed {
		earlier := entries[:len(entries)-maxDetailed]
		recent = entries[len(entries)-maxDetailed:]
		succeeded := 0
		for _, e := range earlier {
			if e.Success {
				succeeded++
			}
		}
		lines = append(lines, fmt.Sprintf("[%d earlier actions: %d succeeded, %d failed]",
			len(earlier), succeeded, len(earlier)-succeeded))
	}

	for _, e := range recent {
		status := "OK"
		if !e.Success {
			status = fmt.Sprintf("FAILED: %s", e.Error)
		}
		lines = append(lines, fmt.Sprintf("%d. %s → %s", e.CycleIndex+1, formatAction(e.Action), status))
	}

	return strings.Join(lines, "\n")
}

// formatAction renders a single action kind-specifically, per spec §4.6.
func formatAction(a action.Action) string {
	switch a.Kind {
	case action.KindClick, action.KindHover:
		if ref, ok := a.Input["ref"].(string); ok && ref != "" {
			return fmt.Sprintf("%s(ref=%s)", a.Kind, ref)
		}
		x, _ := a.Input["x"].(float64)
		y, _ := a.Input["y"].(float64)
		return fmt.Sprintf("%s(x=%.0f, y=%.0f)", a.Kind, x, y)
	case action.KindType:
		text, _ := a.Input["text"].(string)
		truncated := truncate(text, 20)
		if ref, ok := a.Input["ref"].(string); ok && ref != "" {
			return fmt.Sprintf("type(ref=%s, text=%q)", ref, truncated)
		}
		return fmt.Sprintf("type(text=%q)", truncated)
	case action.KindScroll:
		dir, _ := a.Input["direction"].(string)
		return fmt.Sprintf("scroll(direction=%s)", dir)
	case action.KindNavigate:
		url, _ := a.Input["url"].(string)
		return fmt.Sprintf("navigate(url=%s)", url)
	case action.KindKeyboard:
		key, _ := a.Input["key"].(string)
		return fmt.Sprintf("keyboard(key=%s)", key)
	case action.KindWait:
		ms, _ := a.Input["ms"].(float64)
		return fmt.Sprintf("wait(ms=%.0f)", ms)
	case action.KindSelect:
		ref, _ := a.Input["ref"].(string)
		value, _ := a.Input["value"].(string)
		return fmt.Sprintf("select(ref=%s, value=%s)", ref, value)
	case action.KindDone:
		return "done"
	case action.KindFail:
		return "fail"
	default:
		raw, _ := json.Marshal(a.Input)
		return fmt.Sprintf("%s(%s)", a.Kind, string(raw))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
