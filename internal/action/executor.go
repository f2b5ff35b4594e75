// Package action defines the closed agent-action vocabulary (spec §4.4,
// §9's "dynamic action dispatch" design note) and the Action Executor that
// translates a structured action into concrete operations against a
// browserclient.Page.
//
// The teacher dispatches on an open switch of handler strings in
// internal/executor/executor.go; spec §9 calls for the vocabulary to be
// closed instead, so Kind is a typed enum and Execute switches over it
// exhaustively rather than falling through to a generic handler lookup.
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/tripleyak/dev-browser-studio/internal/browserclient"
)

// Executor translates agent actions into page operations (spec §4.4). The
// ref resolver may return (nil, nil) for a ref simply absent from the
// current accessibility tree — that is not itself an error.
type Executor struct {
	page browserclient.Page
}

// NewExecutor binds an Executor to page. The page already carries its own
// ref resolution (browserclient.Page.Resolve), so no separate resolver
// argument is needed here.
func NewExecutor(page browserclient.Page) *Executor {
	return &Executor{page: page}
}

const (
	defaultScrollAmount  = 300.0
	defaultWaitMs        = 1000.0
	navigateTimeout      = 15 * time.Second
)

// Execute dispatches a single action and always returns a Result — errors
// are captured, never thrown (spec §4.4, §7: "Executor errors ... never
// thrown out of a cycle").
func (e *Executor) Execute(ctx context.Context, act Action) Result {
	switch act.Kind {
	case KindClick:
		return e.click(ctx, act, false)
	case KindHover:
		return e.click(ctx, act, true)
	case KindType:
		return e.typeText(ctx, act)
	case KindScroll:
		return e.scroll(ctx, act)
	case KindNavigate:
		return e.navigate(ctx, act)
	case KindKeyboard:
		return e.keyboard(ctx, act)
	case KindWait:
		return e.wait(ctx, act)
	case KindSelect:
		return e.selectOption(ctx, act)
	case KindDone, KindFail:
		// Terminal: the Perception Loop interprets these itself. The
		// executor still reports success so the loop can record a clean
		// cycle entry for them (spec §4.4).
		return Result{Success: true}
	default:
		return Result{Success: false, Error: fmt.Sprintf("Unknown action: %s", act.Kind)}
	}
}

func stringArg(input map[string]interface{}, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok && v != ""
}

func floatArg(input map[string]interface{}, key string, def float64) float64 {
	if v, ok := input[key].(float64); ok {
		return v
	}
	return def
}

func buttonArg(input map[string]interface{}) browserclient.MouseButton {
	if v, ok := input["button"].(string); ok && v != "" {
		return browserclient.MouseButton(v)
	}
	return browserclient.ButtonLeft
}

func (e *Executor) click(ctx context.Context, act Action, hover bool) Result {
	if ref, ok := stringArg(act.Input, "ref"); ok {
		el, err := e.page.Resolve(ctx, ref)
		if err != nil {
			return fail("resolve ref %s: %v", ref, err)
		}
		if el == nil {
			return fail("ref %s not found in current accessibility tree", ref)
		}
		if hover {
			if err := el.Hover(ctx); err != nil {
				return fail("hover: %v", err)
			}
			return Result{Success: true}
		}
		if err := el.Click(ctx, buttonArg(act.Input)); err != nil {
			return fail("click: %v", err)
		}
		return Result{Success: true}
	}

	x, hasX := act.Input["x"].(float64)
	y, hasY := act.Input["y"].(float64)
	if !hasX || !hasY {
		return fail("%s requires ref or x,y", act.Kind)
	}
	if hover {
		if err := e.page.MouseMove(ctx, x, y); err != nil {
			return fail("hover: %v", err)
		}
		return Result{Success: true}
	}
	if err := e.page.MouseClick(ctx, x, y, buttonArg(act.Input)); err != nil {
		return fail("click: %v", err)
	}
	return Result{Success: true}
}

func (e *Executor) typeText(ctx context.Context, act Action) Result {
	text, ok := act.Input["text"].(string)
	if !ok {
		return fail("type requires text")
	}
	clearFirst, _ := act.Input["clear_first"].(bool)

	if ref, ok := stringArg(act.Input, "ref"); ok {
		el, err := e.page.Resolve(ctx, ref)
		if err != nil {
			return fail("resolve ref %s: %v", ref, err)
		}
		if el == nil {
			return fail("ref %s not found in current accessibility tree", ref)
		}
		if clearFirst {
			if err := el.Fill(ctx, text); err != nil {
				return fail("fill: %v", err)
			}
			return Result{Success: true}
		}
		if err := el.Click(ctx, browserclient.ButtonLeft); err != nil {
			return fail("click before type: %v", err)
		}
		if err := el.Type(ctx, text); err != nil {
			return fail("type: %v", err)
		}
		return Result{Success: true}
	}

	if clearFirst {
		if err := e.page.PressCtrlA(ctx); err != nil {
			return fail("select-all before type: %v", err)
		}
	}
	if err := e.page.SendKeys(ctx, text); err != nil {
		return fail("type: %v", err)
	}
	return Result{Success: true}
}

func (e *Executor) scroll(ctx context.Context, act Action) Result {
	direction, ok := stringArg(act.Input, "direction")
	if !ok {
		return fail("scroll requires direction")
	}
	amount := floatArg(act.Input, "amount", defaultScrollAmount)

	var dx, dy float64
	switch direction {
	case "down":
		dy = amount
	case "up":
		dy = -amount
	case "right":
		dx = amount
	case "left":
		dx = -amount
	default:
		return fail("scroll direction must be one of up,down,left,right, got %q", direction)
	}
	if err := e.page.Wheel(ctx, dx, dy); err != nil {
		return fail("scroll: %v", err)
	}
	return Result{Success: true}
}

func (e *Executor) navigate(ctx context.Context, act Action) Result {
	url, ok := stringArg(act.Input, "url")
	if !ok {
		return fail("navigate requires url")
	}
	if err := e.page.Navigate(ctx, url, navigateTimeout); err != nil {
		return fail("navigate: %v", err)
	}
	return Result{Success: true}
}

func (e *Executor) keyboard(ctx context.Context, act Action) Result {
	key, ok := stringArg(act.Input, "key")
	if !ok {
		return fail("keyboard requires key")
	}
	if err := e.page.KeyEvent(ctx, key); err != nil {
		return fail("keyboard: %v", err)
	}
	return Result{Success: true}
}

func (e *Executor) wait(ctx context.Context, act Action) Result {
	ms := floatArg(act.Input, "ms", defaultWaitMs)
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fail("wait: %v", ctx.Err())
	case <-timer.C:
		return Result{Success: true}
	}
}

func (e *Executor) selectOption(ctx context.Context, act Action) Result {
	ref, ok := stringArg(act.Input, "ref")
	if !ok {
		return fail("select requires ref")
	}
	value, ok := stringArg(act.Input, "value")
	if !ok {
		return fail("select requires value")
	}
	el, err := e.page.Resolve(ctx, ref)
	if err != nil {
		return fail("resolve ref %s: %v", ref, err)
	}
	if el == nil {
		return fail("ref %s not found in current accessibility tree", ref)
	}
	if err := el.SelectByValue(ctx, value); err != nil {
		if labelErr := el.SelectByLabel(ctx, value); labelErr != nil {
			return fail("select by value %v, then by label: %v", err, labelErr)
		}
	}
	return Result{Success: true}
}

func fail(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
