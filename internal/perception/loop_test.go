package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/stretchr/testify/require"

	"github.com/tripleyak/dev-browser-studio/internal/action"
	"github.com/tripleyak/dev-browser-studio/internal/browserclient"
	"github.com/tripleyak/dev-browser-studio/internal/history"
	"github.com/tripleyak/dev-browser-studio/internal/vision"
)

// TestMain guards against leaking the per-cycle vision-call and
// settle-wait goroutines Run drives (spec §4.5) past a test's lifetime.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePage struct {
	url        string
	screenshot []byte
	dialogFn   func(ctx context.Context, message string)
}

func (p *fakePage) Screenshot(ctx context.Context, quality int) ([]byte, error) { return p.screenshot, nil }
func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.url = url
	return nil
}
func (p *fakePage) SetViewport(ctx context.Context, width, height int) error { return nil }
func (p *fakePage) URL(ctx context.Context) (string, error)                  { return p.url, nil }
func (p *fakePage) Title(ctx context.Context) (string, error)                { return "", nil }
func (p *fakePage) TargetID() string                                         { return "T1" }
func (p *fakePage) MouseClick(ctx context.Context, x, y float64, button browserclient.MouseButton) error {
	return nil
}
func (p *fakePage) MouseMove(ctx context.Context, x, y float64) error { return nil }
func (p *fakePage) Wheel(ctx context.Context, dx, dy float64) error   { return nil }
func (p *fakePage) KeyEvent(ctx context.Context, key string) error   { return nil }
func (p *fakePage) SendKeys(ctx context.Context, text string) error  { return nil }
func (p *fakePage) PressCtrlA(ctx context.Context) error             { return nil }
func (p *fakePage) Resolve(ctx context.Context, ref string) (browserclient.Element, error) {
	return nil, nil
}
func (p *fakePage) WaitLoad(ctx context.Context, event string, timeout time.Duration) error {
	return nil
}
func (p *fakePage) OnDialog(handler func(ctx context.Context, message string)) { p.dialogFn = handler }
func (p *fakePage) CDPContext() context.Context                                { return context.Background() }

var errPageNotFound = fmt.Errorf("page not found")

type fakeClient struct {
	pages map[string]browserclient.Page
}

func (c *fakeClient) AcquirePage(ctx context.Context, name string) (browserclient.Page, error) {
	pg, ok := c.pages[name]
	if !ok {
		return nil, errPageNotFound
	}
	return pg, nil
}

type fakeSnapshotter struct {
	snapshot string
	err      error
}

func (s *fakeSnapshotter) Snapshot(ctx context.Context, page browserclient.Page) (string, error) {
	return s.snapshot, s.err
}

// newVisionServer returns a vision.Client whose AnalyzeFrame responses are
// drawn in order from actions, one per call.
func newVisionServer(t *testing.T, actions []action.Action) *vision.Client {
	t.Helper()
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if call >= len(actions) {
			call = len(actions) - 1
		}
		act := actions[call]
		call++

		input, _ := json.Marshal(act.Input)
		resp := struct {
			Content []struct {
				Type  string          `json:"type"`
				Name  string          `json:"name"`
				Input json.RawMessage `json:"input"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}{}
		resp.Content = []struct {
			Type  string          `json:"type"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{
			{Type: "tool_use", Name: string(act.Kind), Input: input},
		}
		resp.Usage.InputTokens = 10
		resp.Usage.OutputTokens = 2
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return vision.NewClient("test-key", "claude-sonnet-4-5", vision.WithBaseURL(srv.URL))
}

func testLoop(t *testing.T, actions []action.Action) (*Loop, *fakeClient) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxCycles = 10
	cfg.AuditDir = t.TempDir()
	cfg.SettleTimeMs = 0

	pg := &fakePage{screenshot: []byte{0xFF, 0xD8, 0xFF}}
	client := &fakeClient{pages: map[string]browserclient.Page{"main": pg}}
	visionClient := newVisionServer(t, actions)
	loop := NewLoop(cfg, zap.NewNop(), &fakeSnapshotter{snapshot: "- button \"Go\" [ref=e1]"}, visionClient)
	return loop, client
}

func TestRun_DoneActionEndsLoopSuccessfully(t *testing.T) {
	loop, client := testLoop(t, []action.Action{
		{Kind: action.KindDone, Input: map[string]interface{}{"success": true, "summary": "finished"}},
	})

	result, err := loop.Run(context.Background(), client, "main", "do the thing")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "finished", result.Summary)
	require.Equal(t, 1, result.TotalCycles)
}

func TestRun_FailActionEndsLoopUnsuccessfully(t *testing.T) {
	loop, client := testLoop(t, []action.Action{
		{Kind: action.KindFail, Input: map[string]interface{}{"reason": "stuck"}},
	})

	result, err := loop.Run(context.Background(), client, "main", "do the thing")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "stuck", result.Summary)
}

func TestRun_UnknownPageNameErrors(t *testing.T) {
	loop, client := testLoop(t, nil)

	_, err := loop.Run(context.Background(), client, "missing", "task")
	require.Error(t, err)
}

func TestRun_MaxCyclesReachedReportsFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCycles = 2
	cfg.AuditDir = t.TempDir()
	cfg.SettleTimeMs = 0

	pg := &fakePage{screenshot: []byte{0xFF, 0xD8, 0xFF}}
	client := &fakeClient{pages: map[string]browserclient.Page{"main": pg}}
	visionClient := newVisionServer(t, []action.Action{
		{Kind: action.KindWait, Input: map[string]interface{}{"ms": 1}},
	})
	loop := NewLoop(cfg, zap.NewNop(), &fakeSnapshotter{snapshot: "- generic"}, visionClient)

	result, err := loop.Run(context.Background(), client, "main", "task")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Summary, "Max cycles reached")
}

func TestStuckWarning_DetectsThreeIdenticalActions(t *testing.T) {
	entries := []history.Entry{
		{CycleIndex: 0, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e1"}}},
		{CycleIndex: 1, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e1"}}},
		{CycleIndex: 2, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e1"}}},
	}
	require.True(t, stuckWarning(entries))
}

func TestStuckWarning_FalseWhenActionsDiffer(t *testing.T) {
	entries := []history.Entry{
		{CycleIndex: 0, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e1"}}},
		{CycleIndex: 1, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e2"}}},
		{CycleIndex: 2, Action: action.Action{Kind: action.KindClick, Input: map[string]interface{}{"ref": "e1"}}},
	}
	require.False(t, stuckWarning(entries))
}

func TestStuckWarning_FalseWithFewerThanThreeEntries(t *testing.T) {
	require.False(t, stuckWarning([]history.Entry{{CycleIndex: 0}}))
}

func TestTruncateSnapshot_NoTruncationUnderCap(t *testing.T) {
	require.Equal(t, "short", truncateSnapshot("short", 100))
}

func TestTruncateSnapshot_CutsAtLastNewlineBeforeCap(t *testing.T) {
	snapshot := "line1\nline2\nline3"
	out := truncateSnapshot(snapshot, 12)
	require.Contains(t, out, truncationNotice)
	require.True(t, len(out) < len(snapshot)+len(truncationNotice))
}

func TestNavigationInvalidated(t *testing.T) {
	require.False(t, navigationInvalidated(nil))
	require.False(t, navigationInvalidated(fmt.Errorf("some other failure")))
	require.True(t, navigationInvalidated(fmt.Errorf("Target closed")))
	require.True(t, navigationInvalidated(fmt.Errorf("Target page has already been closed")))
}
