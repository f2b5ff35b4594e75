package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanProceed_AllowsWithinLimits(t *testing.T) {
	c := New(DefaultLimits(), nil)
	decision := c.CanProceed()
	require.True(t, decision.Allowed)
}

func TestCanProceed_DeniesOnMaxCycles(t *testing.T) {
	c := New(Limits{MaxCycles: 1, MaxTokens: 1_000_000, MaxCostUSD: 100, MaxDurationMs: 1_000_000}, nil)
	c.OnCycleComplete(Usage{Input: 10, Output: 10}, time.Millisecond)

	decision := c.CanProceed()
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "Max cycles")
}

func TestCanProceed_DeniesOnMaxTokens(t *testing.T) {
	c := New(Limits{MaxCycles: 100, MaxTokens: 100, MaxCostUSD: 100, MaxDurationMs: 1_000_000}, nil)
	c.OnCycleComplete(Usage{Input: 60, Output: 60}, time.Millisecond)

	decision := c.CanProceed()
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "Max tokens")
}

func TestCanProceed_DeniesOnMaxCost(t *testing.T) {
	c := New(Limits{MaxCycles: 100, MaxTokens: 1_000_000, MaxCostUSD: 0.00001, MaxDurationMs: 1_000_000}, nil)
	c.OnCycleComplete(Usage{Input: 1000, Output: 1000}, time.Millisecond)

	decision := c.CanProceed()
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "Max cost")
}

func TestCanProceed_DenialIsSticky(t *testing.T) {
	c := New(Limits{MaxCycles: 1, MaxTokens: 1_000_000, MaxCostUSD: 100, MaxDurationMs: 1_000_000}, nil)
	c.OnCycleComplete(Usage{Input: 10, Output: 10}, time.Millisecond)

	first := c.CanProceed()
	require.False(t, first.Allowed)

	// A second cycle recorded after denial must not un-deny or change the
	// reported reason (spec §8: denial is sticky).
	c.OnCycleComplete(Usage{Input: 10, Output: 10}, time.Millisecond)
	second := c.CanProceed()
	require.False(t, second.Allowed)
	require.Equal(t, first.Reason, second.Reason)
}

func TestSnapshot_AccumulatesAcrossCycles(t *testing.T) {
	c := New(DefaultLimits(), nil)
	c.OnCycleComplete(Usage{Input: 100, Output: 50}, time.Millisecond)
	c.OnCycleComplete(Usage{Input: 100, Output: 50}, time.Millisecond)

	snap := c.Snapshot()
	require.Equal(t, 2, snap.Cycles)
	require.Equal(t, 200, snap.InputTokens)
	require.Equal(t, 100, snap.OutputTokens)
	require.Greater(t, snap.CostUSD, 0.0)
}

func TestRemainingFrom(t *testing.T) {
	c := New(Limits{MaxCycles: 10, MaxTokens: 1000}, nil)
	c.OnCycleComplete(Usage{Input: 100, Output: 100}, time.Millisecond)
	snap := c.Snapshot()

	remaining := c.RemainingFrom(snap)
	require.Equal(t, 9, remaining.Cycles)
	require.Equal(t, 800, remaining.Tokens)
}

func TestEstimateFrameTokens(t *testing.T) {
	require.Equal(t, 0, EstimateFrameTokens(0, 0))
	require.Equal(t, 2, EstimateFrameTokens(10, 100))
}
