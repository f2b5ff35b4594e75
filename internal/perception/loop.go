// Package perception implements the Perception Loop (spec §2 component J,
// §4.5): the orchestrator that cycles capture -> reason -> act, combining
// the Frame Sampler, Budget Controller, Audit Logger, Action Executor,
// History Compressor and the external page/accessibility/vision
// collaborators.
//
// Grounded on the teacher's internal/executor/executor.go, which already
// drives a step-by-step dispatch loop against a chromedp page with error
// capture per step; this generalizes that loop from a fixed recorded test
// script to an LLM-driven cycle with budget gating, stuck detection and
// navigation recovery.
package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tripleyak/dev-browser-studio/internal/action"
	"github.com/tripleyak/dev-browser-studio/internal/ariaextract"
	"github.com/tripleyak/dev-browser-studio/internal/audit"
	"github.com/tripleyak/dev-browser-studio/internal/browserclient"
	"github.com/tripleyak/dev-browser-studio/internal/budget"
	"github.com/tripleyak/dev-browser-studio/internal/history"
	"github.com/tripleyak/dev-browser-studio/internal/safety"
	"github.com/tripleyak/dev-browser-studio/internal/sampler"
	"github.com/tripleyak/dev-browser-studio/internal/vision"
)

// Config is the Loop's configuration (spec §4.5).
type Config struct {
	Model                string
	ViewportWidth        int
	ViewportHeight       int
	ScreenshotQuality    int
	MaxCycles            int
	MaxConsecutiveErrors int
	SettleTimeMs         int
	APITimeout           time.Duration
	AriaCharCap          int
	AuditDir             string
	SamplerConfig        sampler.Config
	BudgetLimits         budget.Limits
	Safety               *safety.Policy
}

// DefaultConfig returns the documented defaults (spec §4.5).
func DefaultConfig() Config {
	return Config{
		ViewportWidth:        1024,
		ViewportHeight:       768,
		ScreenshotQuality:    70,
		MaxCycles:            50,
		MaxConsecutiveErrors: 5,
		SettleTimeMs:         300,
		APITimeout:           30 * time.Second,
		AriaCharCap:          40_000,
		AuditDir:             "./recordings",
		SamplerConfig:        sampler.DefaultConfig(),
		BudgetLimits:         budget.DefaultLimits(),
	}
}

// Result is the Loop result (spec §3).
type Result struct {
	Success       bool
	Summary       string
	TotalCycles   int
	ExtractedData map[string]interface{}
	Budget        budget.State
}

const truncationNotice = "\n... [truncated]"

// Loop is the orchestrator bound to one run's collaborators.
type Loop struct {
	cfg         Config
	logger      *zap.Logger
	snapshotter ariaextract.Snapshotter
	visionClient *vision.Client
}

// NewLoop constructs a Loop. snapshotter and visionClient are the named
// external collaborators (spec §2); the page client is supplied per-run to
// Run.
func NewLoop(cfg Config, logger *zap.Logger, snapshotter ariaextract.Snapshotter, visionClient *vision.Client) *Loop {
	return &Loop{cfg: cfg, logger: logger, snapshotter: snapshotter, visionClient: visionClient}
}

// navigationInvalidated recognizes the substring-matched error family
// spec §7 documents ("Target closed" / "Target page").
func navigationInvalidated(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Target closed") || strings.Contains(msg, "Target page")
}

// Run executes the capture-reason-act cycle against pageName, acquired
// from client, until a terminal action, a budget denial, or cycle
// exhaustion (spec §4.5).
func (l *Loop) Run(ctx context.Context, client browserclient.Client, pageName, task string) (Result, error) {
	pg, err := client.AcquirePage(ctx, pageName)
	if err != nil {
		return Result{}, fmt.Errorf("acquire page %s: %w", pageName, err)
	}

	auditLogger, err := audit.New(l.cfg.AuditDir, fmt.Sprintf("perception-%d", time.Now().UnixMilli()))
	if err != nil {
		return Result{}, fmt.Errorf("create audit logger: %w", err)
	}

	pg.OnDialog(func(ctx context.Context, message string) {
		l.logger.Sugar().Infow("auto-accepting dialog", "message", message)
	})

	budgetController := budget.New(l.cfg.BudgetLimits, nil)
	samp := sampler.New(l.cfg.SamplerConfig)
	exec := action.NewExecutor(pg)

	var entries []history.Entry
	consecutiveErrors := 0
	effectiveTask := task

	for cycle := 0; cycle < l.cfg.MaxCycles; cycle++ {
		decision := budgetController.CanProceed()
		if !decision.Allowed {
			return l.finalize(auditLogger, budgetController, Result{
				Success: false,
				Summary: decision.Reason,
			})
		}

		cycleStart := time.Now()
		entry, cycleErr := l.runCycle(ctx, pg, exec, auditLogger, samp, cycle, entries, effectiveTask)

		if cycleErr != nil {
			consecutiveErrors++
			l.logger.Sugar().Warnw("perception cycle error", "cycle", cycle, "error", cycleErr)
			_ = auditLogger.LogCycle(audit.CycleEntry{
				CycleIndex: cycle,
				Timestamp:  time.Now(),
				Action:     action.Action{Kind: "error"},
				Result:     action.Result{Success: false, Error: cycleErr.Error()},
				DurationMs: time.Since(cycleStart).Milliseconds(),
			}, nil)
			if consecutiveErrors >= l.cfg.MaxConsecutiveErrors {
				return l.finalize(auditLogger, budgetController, Result{
					Success: false,
					Summary: fmt.Sprintf("Too many consecutive errors (%d)", consecutiveErrors),
				})
			}
			continue
		}

		budgetController.OnCycleComplete(entry.tokenUsage, time.Since(cycleStart))
		remaining := budgetController.RemainingFrom(budgetController.Snapshot())
		_ = auditLogger.LogCycle(entry.auditEntry, &remaining)
		entries = append(entries, entry.historyEntry)

		if entry.cycleResult.Success {
			consecutiveErrors = 0
		} else {
			consecutiveErrors++
			if consecutiveErrors >= l.cfg.MaxConsecutiveErrors {
				return l.finalize(auditLogger, budgetController, Result{
					Success: false,
					Summary: fmt.Sprintf("Too many consecutive errors (%d)", consecutiveErrors),
				})
			}
		}

		if entry.terminal != nil {
			return l.finalize(auditLogger, budgetController, *entry.terminal)
		}

		l.settle(ctx, pg, entry.action.Kind, samp)

		if stuckWarning(entries) {
			effectiveTask = task + "\n\nWarning: the last several actions were identical. Try a different approach."
		} else {
			effectiveTask = task
		}
	}

	return l.finalize(auditLogger, budgetController, Result{
		Success: false,
		Summary: fmt.Sprintf("Max cycles reached (%d)", l.cfg.MaxCycles),
	})
}

// cycleOutcome bundles everything one successful runCycle call produces.
type cycleOutcome struct {
	auditEntry   audit.CycleEntry
	historyEntry history.Entry
	action       action.Action
	cycleResult  action.Result
	terminal     *Result
	tokenUsage   budget.Usage
}

func (l *Loop) runCycle(
	ctx context.Context,
	pg browserclient.Page,
	exec *action.Executor,
	auditLogger *audit.Logger,
	samp *sampler.Sampler,
	cycle int,
	priorEntries []history.Entry,
	task string,
) (cycleOutcome, error) {
	frame, err := l.captureWithRecovery(ctx, pg, samp)
	if err != nil {
		return cycleOutcome{}, fmt.Errorf("capture screenshot: %w", err)
	}

	// Advisory only: the loop proceeds regardless of the sampler's
	// verdict (spec §4.5 step c).
	_, _ = samp.HasChanged(frame)

	// Persist the frame via the Audit Logger (spec §4.5 step d).
	framePath, err := auditLogger.SaveFrame(cycle, frame)
	if err != nil {
		return cycleOutcome{}, fmt.Errorf("save frame: %w", err)
	}

	pageURL, _ := pg.URL(ctx)

	ariaSnapshot, err := l.snapshotter.Snapshot(ctx, pg)
	if err != nil {
		ariaSnapshot = "(ARIA snapshot unavailable)"
	} else {
		ariaSnapshot = truncateSnapshot(ariaSnapshot, l.cfg.AriaCharCap)
	}

	historyText := history.Compress(priorEntries, 0)

	visionCtx, cancel := context.WithTimeout(ctx, l.cfg.APITimeout)
	defer cancel()

	resp, err := l.visionClient.AnalyzeFrame(visionCtx, vision.Request{
		FrameBase64:  vision.EncodeFrameBase64(frame),
		AriaSnapshot: ariaSnapshot,
		History:      historyText,
		Task:         task,
	})
	if err != nil {
		return cycleOutcome{}, fmt.Errorf("vision client: %w", err)
	}

	act := resp.Action
	if l.cfg.Safety != nil {
		if decision := l.cfg.Safety.Evaluate(act); !decision.Allowed {
			result := action.Result{Success: false, Error: fmt.Sprintf("Blocked: %s", decision.Reason)}
			return cycleOutcome{
				auditEntry: audit.CycleEntry{
					CycleIndex: cycle, Timestamp: time.Now(), PageURL: pageURL, FramePath: framePath,
					Action: act, Reasoning: resp.Reasoning, Result: result,
					Tokens: &audit.TokenUsage{Input: resp.Usage.Input, Output: resp.Usage.Output},
				},
				historyEntry: history.Entry{CycleIndex: cycle, Action: act, Success: false, Error: result.Error},
				action:       act,
				cycleResult:  result,
				tokenUsage:   budget.Usage{Input: resp.Usage.Input, Output: resp.Usage.Output},
			}, nil
		}
	}

	var result action.Result
	var terminal *Result

	switch {
	case act.Kind == action.KindDone:
		result = action.Result{Success: true}
		success, _ := act.Input["success"].(bool)
		summary, _ := act.Input["summary"].(string)
		extracted, _ := act.Input["extracted_data"].(map[string]interface{})
		terminal = &Result{Success: success, Summary: summary, TotalCycles: cycle + 1, ExtractedData: extracted}
	case act.Kind == action.KindFail:
		result = action.Result{Success: true}
		reason, _ := act.Input["reason"].(string)
		terminal = &Result{Success: false, Summary: reason, TotalCycles: cycle + 1}
	default:
		result = exec.Execute(ctx, act)
	}

	return cycleOutcome{
		auditEntry: audit.CycleEntry{
			CycleIndex: cycle, Timestamp: time.Now(), PageURL: pageURL, FramePath: framePath,
			Action: act, Reasoning: resp.Reasoning, Result: result,
			Tokens: &audit.TokenUsage{Input: resp.Usage.Input, Output: resp.Usage.Output},
		},
		historyEntry: history.Entry{CycleIndex: cycle, Action: act, Success: result.Success, Error: result.Error},
		action:       act,
		cycleResult:  result,
		terminal:     terminal,
		tokenUsage:   budget.Usage{Input: resp.Usage.Input, Output: resp.Usage.Output},
	}, nil
}

// captureWithRecovery implements spec §4.5 step b: on a navigation-death
// error, re-acquire the page, best-effort wait for domcontentloaded, force
// the sampler, and retry exactly once.
func (l *Loop) captureWithRecovery(ctx context.Context, pg browserclient.Page, samp *sampler.Sampler) ([]byte, error) {
	frame, err := pg.Screenshot(ctx, l.cfg.ScreenshotQuality)
	if err == nil {
		return frame, nil
	}
	if !navigationInvalidated(err) {
		return nil, err
	}

	if reacquirer, ok := pg.(interface{ Reacquire(context.Context) error }); ok {
		if raErr := reacquirer.Reacquire(ctx); raErr != nil {
			return nil, fmt.Errorf("re-acquire page after %v: %w", err, raErr)
		}
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	_ = pg.WaitLoad(waitCtx, "domcontentloaded", 10*time.Second)
	cancel()
	samp.ForceCapture()

	return pg.Screenshot(ctx, l.cfg.ScreenshotQuality)
}

// settle implements spec §4.5 step l.
func (l *Loop) settle(ctx context.Context, pg browserclient.Page, kind action.Kind, samp *sampler.Sampler) {
	switch kind {
	case action.KindNavigate:
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_ = pg.WaitLoad(waitCtx, "networkidle", 10*time.Second)
		cancel()
		samp.ForceCapture()
	case action.KindWait:
		// The action already waited.
	default:
		time.Sleep(time.Duration(l.cfg.SettleTimeMs) * time.Millisecond)
	}
}

// stuckWarning implements spec §4.5 step g / §8 boundary scenario 2: the
// last three entries share an identical (kind, input) tuple.
func stuckWarning(entries []history.Entry) bool {
	if len(entries) < 3 {
		return false
	}
	last := entries[len(entries)-3:]
	first, err := json.Marshal(struct {
		Kind  action.Kind            `json:"kind"`
		Input map[string]interface{} `json:"input"`
	}{last[0].Action.Kind, last[0].Action.Input})
	if err != nil {
		return false
	}
	for _, e := range last[1:] {
		other, err := json.Marshal(struct {
			Kind  action.Kind            `json:"kind"`
			Input map[string]interface{} `json:"input"`
		}{e.Action.Kind, e.Action.Input})
		if err != nil || string(other) != string(first) {
			return false
		}
	}
	return true
}

// truncateSnapshot caps snapshot at maxChars, preferring to cut at the
// last newline before the cap (spec §4.5 step e).
func truncateSnapshot(snapshot string, maxChars int) string {
	if len(snapshot) <= maxChars {
		return snapshot
	}
	cut := strings.LastIndex(snapshot[:maxChars], "\n")
	if cut <= 0 {
		cut = maxChars
	}
	return snapshot[:cut] + truncationNotice
}

func (l *Loop) finalize(auditLogger *audit.Logger, budgetController *budget.Controller, result Result) (Result, error) {
	snapshot := budgetController.Snapshot()
	result.Budget = snapshot
	_ = auditLogger.SaveSummary(audit.SummaryResult{
		Success:       result.Success,
		Summary:       result.Summary,
		TotalCycles:   result.TotalCycles,
		ExtractedData: result.ExtractedData,
	}, snapshot)
	return result, nil
}
