package safety

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tripleyak/dev-browser-studio/internal/action"
)

func TestNewPolicy_RejectsInvalidPattern(t *testing.T) {
	_, err := NewPolicy(false, []string{"[invalid"})
	require.Error(t, err)
}

func TestEvaluate_NilPolicyAllowsEverything(t *testing.T) {
	var p *Policy
	decision := p.Evaluate(action.Action{Kind: action.KindClick})
	require.True(t, decision.Allowed)
}

func TestEvaluate_ReadOnlyModeBlocksMutatingActions(t *testing.T) {
	p, err := NewPolicy(true, nil)
	require.NoError(t, err)

	decision := p.Evaluate(action.Action{Kind: action.KindClick})
	require.False(t, decision.Allowed)

	decision = p.Evaluate(action.Action{Kind: action.KindScroll})
	require.True(t, decision.Allowed)
}

func TestEvaluate_BlockedURLPatternDeniesNavigate(t *testing.T) {
	p, err := NewPolicy(false, []string{`^https://evil\.example`})
	require.NoError(t, err)

	decision := p.Evaluate(action.Action{
		Kind:  action.KindNavigate,
		Input: map[string]interface{}{"url": "https://evil.example/login"},
	})
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "blocked by pattern")

	decision = p.Evaluate(action.Action{
		Kind:  action.KindNavigate,
		Input: map[string]interface{}{"url": "https://safe.example/login"},
	})
	require.True(t, decision.Allowed)
}
