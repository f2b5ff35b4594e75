package browserclient

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// chromedpElement wraps a frontend NodeID resolved from an accessibility
// snapshot's backend node ID (see ChromedpPage.Resolve). Each Resolve call
// converts the backend ID afresh and returns a new element.
type chromedpElement struct {
	page *ChromedpPage
	node cdp.NodeID
}

func (e *chromedpElement) Click(ctx context.Context, button MouseButton) error {
	return chromedp.Run(e.page.ctx, chromedp.MouseClickNode(nodeFromID(e.node), chromedp.Button(string(button))))
}

func (e *chromedpElement) Hover(ctx context.Context) error {
	return chromedp.Run(e.page.ctx, chromedp.MouseOverNode(nodeFromID(e.node)))
}

func (e *chromedpElement) Fill(ctx context.Context, text string) error {
	return chromedp.Run(e.page.ctx,
		chromedp.SetAttributeValue(nodeSelector(e.node), "value", text, chromedp.ByNodeID),
	)
}

func (e *chromedpElement) Type(ctx context.Context, text string) error {
	return chromedp.Run(e.page.ctx,
		chromedp.Click(nodeSelector(e.node), chromedp.ByNodeID),
		chromedp.SendKeys(nodeSelector(e.node), text, chromedp.ByNodeID),
	)
}

func (e *chromedpElement) SelectByValue(ctx context.Context, value string) error {
	var ok bool
	return chromedp.Run(e.page.ctx, chromedp.SetValue(nodeSelector(e.node), value, chromedp.ByNodeID, chromedp.Populate(&ok)))
}

func (e *chromedpElement) SelectByLabel(ctx context.Context, label string) error {
	return chromedp.Run(e.page.ctx, chromedp.SetValue(nodeSelector(e.node), label, chromedp.ByNodeID))
}

// nodeFromID / nodeSelector are small indirections so the rest of this
// file can talk in terms of *cdp.Node the way chromedp's high-level actions
// expect, without repeating the node-lookup boilerplate everywhere.
// nodeSelector renders the decimal NodeID chromedp.ByNodeID's query function
// parses back out of the "selector" argument — it is not a CSS selector.
func nodeFromID(id cdp.NodeID) *cdp.Node { return &cdp.Node{NodeID: id} }
func nodeSelector(id cdp.NodeID) string  { return strconv.FormatInt(int64(id), 10) }

// ChromedpPage is the production Page implementation. It holds a
// chromedp.Context re-created against the stored target ID whenever the
// previous one is found dead, rather than a single context assumed to
// survive the page's full lifetime (spec §9's page-proxy redesign).
type ChromedpPage struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	allocCtx context.Context
	targetID target.ID
	logger   *zap.Logger
}

// NewChromedpPage attaches to an already-open target by ID, the same
// attach-not-launch approach the teacher uses in executor.go
// (chromedp.NewRemoteAllocator + chromedp.WithTargetID).
func NewChromedpPage(allocCtx context.Context, targetID target.ID, logger *zap.Logger) (*ChromedpPage, error) {
	p := &ChromedpPage{allocCtx: allocCtx, targetID: targetID, logger: logger}
	if err := p.reattach(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ChromedpPage) reattach() error {
	ctx, cancel := chromedp.NewContext(p.allocCtx,
		chromedp.WithTargetID(p.targetID),
		chromedp.WithLogf(func(format string, args ...interface{}) {
			p.logger.Sugar().Debugf(format, args...)
		}),
	)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return fmt.Errorf("attach to target %s: %w", p.targetID, err)
	}
	p.ctx, p.cancel = ctx, cancel
	return nil
}

// Reacquire tears down the current chromedp context (if any) and rebuilds
// one against the same target ID. The Perception Loop calls this after
// detecting a "Target closed"/"Target page" error (spec §4.5 step b, §7).
func (p *ChromedpPage) Reacquire(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	return p.reattach()
}

func (p *ChromedpPage) Screenshot(ctx context.Context, quality int) ([]byte, error) {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var capErr error
		buf, capErr = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(quality)).
			Do(ctx)
		return capErr
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *ChromedpPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	navCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *ChromedpPage) SetViewport(ctx context.Context, width, height int) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	if err := chromedp.Run(runCtx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return fmt.Errorf("set viewport %dx%d: %w", width, height, err)
	}
	return nil
}

func (p *ChromedpPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	var url string
	if err := chromedp.Run(runCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("get location: %w", err)
	}
	return url, nil
}

func (p *ChromedpPage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("get title: %w", err)
	}
	return title, nil
}

func (p *ChromedpPage) TargetID() string { return string(p.targetID) }

func (p *ChromedpPage) MouseClick(ctx context.Context, x, y float64, button MouseButton) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	return chromedp.Run(runCtx, chromedp.MouseClickXY(x, y, chromedp.Button(string(button))))
}

func (p *ChromedpPage) MouseMove(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	return chromedp.Run(runCtx, mouseMoveXY(x, y))
}

func mouseMoveXY(x, y float64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	})
}

func (p *ChromedpPage) Wheel(ctx context.Context, dx, dy float64) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, 0, 0).
			WithDeltaX(dx).WithDeltaY(dy).Do(ctx)
	}))
}

func (p *ChromedpPage) KeyEvent(ctx context.Context, key string) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	return chromedp.Run(runCtx, chromedp.KeyEvent(key))
}

func (p *ChromedpPage) SendKeys(ctx context.Context, text string) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	return chromedp.Run(runCtx, chromedp.KeyEvent(text))
}

func (p *ChromedpPage) PressCtrlA(ctx context.Context) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchKeyEvent(input.KeyDown).
			WithModifiers(input.ModifierCtrl).WithKey("a").Do(ctx)
	}))
}

// Resolve looks up the backend node ID an accessibility snapshot recorded
// for ref and pushes it to the frontend node ID space of the page's current
// document via DOM.pushNodesByBackendIdsToFrontend. Backend node IDs stay
// valid across most DOM mutations but frontend NodeIDs (what chromedp's
// ByNodeID-based actions and DOM.describeNode actually operate on) are only
// meaningful for the document that minted them, so this conversion has to
// happen live rather than once at snapshot time.
func (p *ChromedpPage) Resolve(ctx context.Context, ref string) (Element, error) {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	backendID, ok := refNodeCache.lookup(p.targetID, ref)
	if !ok {
		return nil, nil
	}
	var nodeID cdp.NodeID
	var exists bool
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		ids, pErr := dom.PushNodesByBackendIDsToFrontend([]cdp.BackendNodeID{backendID}).Do(ctx)
		if pErr != nil || len(ids) == 0 {
			return nil
		}
		if _, dErr := dom.DescribeNode().WithNodeID(ids[0]).Do(ctx); dErr != nil {
			return nil
		}
		nodeID = ids[0]
		exists = true
		return nil
	}))
	if err != nil || !exists {
		return nil, nil
	}
	return &chromedpElement{page: p, node: nodeID}, nil
}

func (p *ChromedpPage) WaitLoad(ctx context.Context, event string, timeout time.Duration) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	waitCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()
	switch event {
	case "networkidle":
		return chromedp.Run(waitCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return nil
		}), chromedp.WaitReady("body", chromedp.ByQuery))
	default:
		return chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	}
}

func (p *ChromedpPage) OnDialog(handler func(ctx context.Context, message string)) {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			handler(runCtx, e.Message)
			go func() {
				_ = chromedp.Run(runCtx, page.HandleJavaScriptDialog(true))
			}()
		}
	})
}

func (p *ChromedpPage) CDPContext() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx
}

// refNodeCache maps accessibility-snapshot refs to CDP backend node IDs
// (stable across most DOM mutations, unlike frontend NodeIDs). The
// ariaextract package populates it on every Snapshot call; Resolve above
// converts an entry to a frontend NodeID on demand. This is the "cheap to
// regenerate" half of the page proxy: refs are only ever valid for the
// snapshot that produced them.
var refNodeCache = newRefCache()

type refCache struct {
	mu    sync.RWMutex
	byTgt map[target.ID]map[string]cdp.BackendNodeID
}

func newRefCache() *refCache {
	return &refCache{byTgt: make(map[target.ID]map[string]cdp.BackendNodeID)}
}

func (c *refCache) lookup(tgt target.ID, ref string) (cdp.BackendNodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byTgt[tgt]
	if !ok {
		return 0, false
	}
	id, ok := m[ref]
	return id, ok
}

// Set replaces the ref table for one target, called by ariaextract after
// rendering a fresh snapshot.
func (c *refCache) Set(tgt target.ID, refs map[string]cdp.BackendNodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTgt[tgt] = refs
}

// SetSnapshotRefs is the package-level hook ariaextract calls; kept
// separate from the unexported refCache type so browserclient doesn't
// need to export its cache implementation.
func SetSnapshotRefs(targetID string, refs map[string]cdp.BackendNodeID) {
	refNodeCache.Set(target.ID(targetID), refs)
}
