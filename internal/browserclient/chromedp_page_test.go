package browserclient

import (
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/require"
)

func TestNodeSelector_FormatsDecimalID(t *testing.T) {
	require.Equal(t, "42", nodeSelector(cdp.NodeID(42)))
}

func TestNodeFromID_WrapsNodeID(t *testing.T) {
	n := nodeFromID(cdp.NodeID(7))
	require.Equal(t, cdp.NodeID(7), n.NodeID)
}

func TestRefCache_SetAndLookup(t *testing.T) {
	c := newRefCache()
	tgt := target.ID("tgt-1")

	_, ok := c.lookup(tgt, "e1")
	require.False(t, ok)

	c.Set(tgt, map[string]cdp.BackendNodeID{"e1": cdp.BackendNodeID(99)})
	id, ok := c.lookup(tgt, "e1")
	require.True(t, ok)
	require.Equal(t, cdp.BackendNodeID(99), id)

	_, ok = c.lookup(tgt, "e2")
	require.False(t, ok)
}

func TestRefCache_SetReplacesPriorTable(t *testing.T) {
	c := newRefCache()
	tgt := target.ID("tgt-1")

	c.Set(tgt, map[string]cdp.BackendNodeID{"e1": cdp.BackendNodeID(1)})
	c.Set(tgt, map[string]cdp.BackendNodeID{"e2": cdp.BackendNodeID(2)})

	_, ok := c.lookup(tgt, "e1")
	require.False(t, ok)
	id, ok := c.lookup(tgt, "e2")
	require.True(t, ok)
	require.Equal(t, cdp.BackendNodeID(2), id)
}

func TestSetSnapshotRefs_PopulatesGlobalCache(t *testing.T) {
	SetSnapshotRefs("tgt-global", map[string]cdp.BackendNodeID{"e5": cdp.BackendNodeID(55)})

	id, ok := refNodeCache.lookup(target.ID("tgt-global"), "e5")
	require.True(t, ok)
	require.Equal(t, cdp.BackendNodeID(55), id)
}
