// Package console implements the Console Capture collaborator (spec
// §4.7): a per-page, process-lifetime sink for console API calls and
// runtime exceptions, subscribed over the page's own CDP session.
//
// Grounded on the teacher's event-subscription style in
// internal/recorder/chrome.go (chromedp.ListenTarget over a dedicated
// session), generalized from screencast frames to Runtime console events.
package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Level is the normalized console log level (spec §3).
type Level string

const (
	LevelLog   Level = "log"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// Entry is an immutable console log entry (spec §3).
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	Line      int64     `json:"line,omitempty"`
	Column    int64     `json:"column,omitempty"`
}

// Sink accumulates an append-only ordered sequence of Entry for one page.
// Safe for concurrent appends from the CDP event-listener goroutine and
// concurrent reads from HTTP handlers (spec §5: "within a page, console
// log entries are delivered in the CDP event order").
type Sink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewSink constructs an empty Sink.
func NewSink() *Sink { return &Sink{} }

func (s *Sink) append(e Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

// Len returns the current entry count, the value recordingStartIndex is
// captured from at recording start (spec §4.7).
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// All returns a copy of every entry recorded so far.
func (s *Sink) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Since returns a copy of every entry recorded at or after index, the
// recording-window slice semantics invariant (spec §8).
func (s *Sink) Since(index int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index >= len(s.entries) {
		return nil
	}
	out := make([]Entry, len(s.entries)-index)
	copy(out, s.entries[index:])
	return out
}

// Clear empties the sink; this is the only release for an otherwise
// unbounded log vector (spec §5).
func (s *Sink) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// levelFromRuntime maps a CDP Runtime.ConsoleAPICalled type to the
// normalized Level (spec §4.7): "warning -> warn, error -> error, info ->
// info, debug -> debug, trace -> trace, anything else -> log".
func levelFromRuntime(t runtime.APIType) Level {
	switch t {
	case runtime.APITypeWarning:
		return LevelWarn
	case runtime.APITypeError:
		return LevelError
	case runtime.APITypeInfo:
		return LevelInfo
	case runtime.APITypeDebug:
		return LevelDebug
	case runtime.APITypeTrace:
		return LevelTrace
	default:
		return LevelLog
	}
}

// argText stringifies one console-call argument following the documented
// fallback chain: value, then description, then preview description, then
// type name.
func argText(arg *runtime.RemoteObject) string {
	if arg == nil {
		return ""
	}
	if len(arg.Value) > 0 {
		return strings.Trim(string(arg.Value), `"`)
	}
	if arg.Description != "" {
		return arg.Description
	}
	if arg.Preview != nil && arg.Preview.Description != "" {
		return arg.Preview.Description
	}
	return string(arg.Type)
}

// Attach enables the Runtime domain on the page's CDP context and
// subscribes to console-API and exception events, pushing normalized
// entries to sink. It is established once per page when the page enters
// the registry (spec §4.7) and is expected to run for the page's full
// process lifetime, so the caller supplies a context bound to the page's
// own session rather than a request-scoped one.
func Attach(ctx context.Context, sink *Sink) error {
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return runtime.Enable().Do(ctx)
	})); err != nil {
		return fmt.Errorf("enable runtime domain: %w", err)
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			parts := make([]string, 0, len(e.Args))
			for _, a := range e.Args {
				parts = append(parts, argText(a))
			}
			entry := Entry{
				Timestamp: time.Now(),
				Level:     levelFromRuntime(e.Type),
				Text:      strings.Join(parts, " "),
			}
			if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
				frame := e.StackTrace.CallFrames[0]
				entry.SourceURL = frame.URL
				entry.Line = frame.LineNumber
				entry.Column = frame.ColumnNumber
			}
			sink.append(entry)
		case *runtime.EventExceptionThrown:
			text := ""
			if e.ExceptionDetails != nil {
				if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
					text = e.ExceptionDetails.Exception.Description
				} else if e.ExceptionDetails.Text != "" {
					text = e.ExceptionDetails.Text
				}
				sink.append(Entry{
					Timestamp: time.Now(),
					Level:     LevelError,
					Text:      text,
					SourceURL: e.ExceptionDetails.URL,
					Line:      e.ExceptionDetails.LineNumber,
					Column:    e.ExceptionDetails.ColumnNumber,
				})
			}
		}
	})
	return nil
}
