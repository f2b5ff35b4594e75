// Package browserclient defines the external page-handle collaborator the
// Perception Loop, Action Executor and Recording Engine are written
// against (spec §2: "the external page interface"), plus the one
// production implementation backing it with a real chromedp/CDP session.
//
// This generalizes the teacher's "attach to an already-running Chrome tab
// by target ID" approach (internal/executor/executor.go's
// chromedp.NewRemoteAllocator + chromedp.WithTargetID dance) into the page
// *proxy* design recommended in spec §9 ("Navigation invalidation of page
// handles"): a Page never holds a dead chromedp context hostage. It
// re-resolves its underlying context from the stored CDP target ID lazily,
// so regenerating a handle after a navigation-death is cheap.
package browserclient

import (
	"context"
	"time"
)

// MouseButton mirrors action.MouseButton without importing the action
// package, keeping browserclient leaf-level.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Element is an interactable node resolved from an accessibility-tree ref.
type Element interface {
	Click(ctx context.Context, button MouseButton) error
	Hover(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Type(ctx context.Context, text string) error
	SelectByValue(ctx context.Context, value string) error
	SelectByLabel(ctx context.Context, label string) error
}

// RefResolver resolves an accessibility-snapshot ref (e.g. "e5") to an
// interactable Element. Per spec §4.4 it returns (nil, nil) when the ref is
// simply not present in the current tree — that is not itself an error,
// the Executor turns it into one.
type RefResolver func(ctx context.Context, ref string) (Element, error)

// Page is the external collaborator interface. The Perception Loop treats
// failures whose message contains "Target closed" or "Target page" as
// navigation-invalidation (spec §4.5 step b, §7): if the handle has a
// Reacquire method the loop calls it to reattach the same handle to its
// target, then retries the capture once on that handle.
type Page interface {
	// Screenshot captures the current viewport as JPEG at the given quality.
	Screenshot(ctx context.Context, quality int) ([]byte, error)
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	SetViewport(ctx context.Context, width, height int) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// TargetID is the CDP target identifier, stable across the page's
	// lifetime (spec §3).
	TargetID() string

	MouseClick(ctx context.Context, x, y float64, button MouseButton) error
	MouseMove(ctx context.Context, x, y float64) error
	Wheel(ctx context.Context, dx, dy float64) error
	KeyEvent(ctx context.Context, key string) error
	SendKeys(ctx context.Context, text string) error
	PressCtrlA(ctx context.Context) error

	// Resolve looks up an accessibility-ref against the page's current tree.
	Resolve(ctx context.Context, ref string) (Element, error)

	// WaitLoad blocks (best-effort, up to timeout) for the named load state
	// ("domcontentloaded" or "networkidle"). ChromedpPage handles both names
	// alike: it waits until the document body is ready and does not track
	// network activity.
	WaitLoad(ctx context.Context, event string, timeout time.Duration) error

	// OnDialog installs a handler invoked for every JavaScript dialog
	// (alert/confirm/prompt/beforeunload) raised by the page.
	OnDialog(handler func(ctx context.Context, message string))

	// CDPContext returns a context bound to this page's CDP session, for
	// collaborators (Console Capture, Recording Engine) that need to
	// subscribe to raw CDP events on the same target.
	CDPContext() context.Context
}

// Client is the named external interface the Perception Loop pulls page
// handles from (spec §4.5 step 1: "Acquire the page handle from the
// external client"). It is intentionally minimal — page creation, naming
// and teardown policy live in internal/pageregistry, which implements it.
type Client interface {
	AcquirePage(ctx context.Context, name string) (Page, error)
}
