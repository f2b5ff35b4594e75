// Package safety implements the Perception Loop's coarse action-safety
// filter as a standalone policy object, consulted before executor dispatch
// rather than inlined in the loop (see DESIGN NOTES, "Safety filter as
// policy object").
package safety

import (
	"fmt"
	"regexp"

	"github.com/tripleyak/dev-browser-studio/internal/action"
)

// Policy gates an AgentAction before it reaches the Action Executor.
type Policy struct {
	// ReadOnlyMode restricts the agent to non-mutating actions.
	ReadOnlyMode bool
	// BlockedURLPatterns denies navigate actions whose target URL matches
	// any of these compiled regular expressions.
	BlockedURLPatterns []*regexp.Regexp
}

var readOnlyAllowed = map[action.Kind]bool{
	action.KindScroll:   true,
	action.KindNavigate: true,
	action.KindWait:     true,
	action.KindDone:     true,
	action.KindFail:     true,
	action.KindHover:    true,
}

// NewPolicy compiles the given blocked-URL patterns. It returns an error if
// any pattern fails to compile so misconfiguration is caught at startup
// rather than silently letting every navigate through.
func NewPolicy(readOnlyMode bool, blockedURLPatterns []string) (*Policy, error) {
	compiled := make([]*regexp.Regexp, 0, len(blockedURLPatterns))
	for _, pattern := range blockedURLPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile blocked URL pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &Policy{ReadOnlyMode: readOnlyMode, BlockedURLPatterns: compiled}, nil
}

// Decision is the result of evaluating an action against the policy.
type Decision struct {
	Allowed bool
	Reason  string
}

// Evaluate returns whether act is permitted under p.
func (p *Policy) Evaluate(act action.Action) Decision {
	if p == nil {
		return Decision{Allowed: true}
	}
	if p.ReadOnlyMode && !readOnlyAllowed[act.Kind] {
		return Decision{Allowed: false, Reason: fmt.Sprintf("read-only mode: %s is not permitted", act.Kind)}
	}
	if act.Kind == action.KindNavigate {
		url, _ := act.Input["url"].(string)
		for _, pattern := range p.BlockedURLPatterns {
			if pattern.MatchString(url) {
				return Decision{
					Allowed: false,
					Reason:  fmt.Sprintf("URL %s blocked by pattern: %s", url, pattern.String()),
				}
			}
		}
	}
	return Decision{Allowed: true}
}
