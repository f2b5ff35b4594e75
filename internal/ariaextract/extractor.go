// Package ariaextract implements the external accessibility-tree
// collaborator named in spec.md §2 ("the external accessibility-tree
// extractor") with a CDP-backed Snapshotter. It renders the page's
// accessibility tree into the YAML-like "[ref=eN]" text format the
// GLOSSARY describes and records each ref's backend node ID in
// browserclient's ref cache so the Action Executor's ref resolver can look
// elements up later.
package ariaextract

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/tripleyak/dev-browser-studio/internal/browserclient"
)

// Snapshotter is the named external collaborator interface.
type Snapshotter interface {
	Snapshot(ctx context.Context, page browserclient.Page) (string, error)
}

// CDPSnapshotter is the one production implementation.
type CDPSnapshotter struct{}

func NewCDPSnapshotter() *CDPSnapshotter { return &CDPSnapshotter{} }

// Snapshot renders Accessibility.getFullAXTree into the ref-annotated text
// format, assigning refs in tree-traversal (DOM) order.
func (s *CDPSnapshotter) Snapshot(ctx context.Context, p browserclient.Page) (string, error) {
	cdpCtx := p.CDPContext()
	var nodes []*accessibility.Node
	err := chromedp.Run(cdpCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var axErr error
		nodes, axErr = accessibility.GetFullAXTree().Do(ctx)
		return axErr
	}))
	if err != nil {
		return "", fmt.Errorf("get accessibility tree: %w", err)
	}

	byID := make(map[accessibility.AXNodeID]*accessibility.Node, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}

	var sb strings.Builder
	refs := make(map[string]cdp.BackendNodeID)
	counter := 0
	var roots []*accessibility.Node
	for _, n := range nodes {
		if n.ParentID == "" {
			roots = append(roots, n)
		}
	}
	for _, root := range roots {
		renderNode(&sb, byID, root, 0, &counter, refs)
	}

	browserclient.SetSnapshotRefs(p.TargetID(), refs)
	return sb.String(), nil
}

func renderNode(sb *strings.Builder, byID map[accessibility.AXNodeID]*accessibility.Node, n *accessibility.Node, depth int, counter *int, refs map[string]cdp.BackendNodeID) {
	if n == nil || n.Ignored {
		return
	}
	role := "generic"
	if n.Role != nil {
		role = fmt.Sprintf("%v", n.Role.Value)
	}
	name := ""
	if n.Name != nil {
		name = fmt.Sprintf("%v", n.Name.Value)
	}

	interactable := isInteractable(role)
	ref := ""
	if interactable {
		*counter++
		ref = fmt.Sprintf("e%d", *counter)
		refs[ref] = n.BackendDOMNodeID
	}

	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString("- ")
	sb.WriteString(role)
	if name != "" {
		sb.WriteString(fmt.Sprintf(" %q", name))
	}
	if ref != "" {
		sb.WriteString(fmt.Sprintf(" [ref=%s]", ref))
	}
	sb.WriteString("\n")

	for _, childID := range n.ChildIds {
		renderNode(sb, byID, byID[childID], depth+1, counter, refs)
	}
}

var interactableRoles = map[string]bool{
	"button": true, "link": true, "textbox": true, "checkbox": true,
	"radio": true, "combobox": true, "listbox": true, "option": true,
	"menuitem": true, "tab": true, "slider": true, "switch": true,
	"searchbox": true, "spinbutton": true,
}

func isInteractable(role string) bool {
	return interactableRoles[role]
}
