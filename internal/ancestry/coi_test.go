package ancestry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrin/nftrout-indexer/internal/model"
)

func trout(id uint32) model.TroutID { return model.TroutID{Chain: 1, Token: model.TokenID(id)} }

func TestInbreedingZeroWithFewerThanTwoParents(t *testing.T) {
	g := New()
	g.AddNode(trout(1))
	assert.Zero(t, g.Inbreeding(trout(1)))

	g.AddNode(trout(2))
	require.True(t, g.AddEdge(trout(3), trout(1)))
	assert.Zero(t, g.Inbreeding(trout(3)))
}

func TestInbreedingZeroWithNoCommonAncestor(t *testing.T) {
	g := New()
	g.AddNode(trout(1))
	g.AddNode(trout(2))
	require.True(t, g.AddEdge(trout(3), trout(1)))
	require.True(t, g.AddEdge(trout(3), trout(2)))
	assert.Zero(t, g.Inbreeding(trout(3)))
}

// Tokens 1,2 both have parent 0; token 3 has parents (1,2).
// inbreeding(3) = 0.5^(1+1+1) = 0.125.
func TestInbreedingSharedGrandparent(t *testing.T) {
	g := New()
	g.AddNode(trout(0))
	require.True(t, g.AddEdge(trout(1), trout(0)))
	require.True(t, g.AddEdge(trout(2), trout(0)))
	require.True(t, g.AddEdge(trout(3), trout(1)))
	require.True(t, g.AddEdge(trout(3), trout(2)))

	assert.InDelta(t, 0.125, g.Inbreeding(trout(3)), 1e-9)
}

func TestAddEdgeRejectsMissingParent(t *testing.T) {
	g := New()
	ok := g.AddEdge(trout(1), trout(99))
	assert.False(t, ok)
	assert.False(t, g.Contains(trout(1)))
}

func TestFullPathEnumerationDiffersFromShortestPath(t *testing.T) {
	// Token 11's parents are p1 = 10 (via 1) and p2 = 9 (via 2). Node 2
	// reaches ancestor 0 by a length-1 and a length-2 path, so counting
	// both of p2's paths to 0 should make the full-enumeration COI
	// strictly larger than the shortest-path default.
	shortest := New()
	full := NewWithFullPathEnumeration()
	for _, g := range []*Graph{shortest, full} {
		g.AddNode(trout(0))
		require.True(t, g.AddEdge(trout(1), trout(0)))  // 1 -> 0, length 1
		require.True(t, g.AddEdge(trout(2), trout(1)))  // a second hop: 2 -> 1 -> 0
		require.True(t, g.AddEdge(trout(2), trout(0)))  // and 2 -> 0 directly, length 1
		require.True(t, g.AddEdge(trout(9), trout(2)))  // p2 = 9, parent 2
		require.True(t, g.AddEdge(trout(10), trout(1))) // p1 = 10, parent 1
		require.True(t, g.AddEdge(trout(11), trout(10)))
		require.True(t, g.AddEdge(trout(11), trout(9)))
	}

	assert.Greater(t, full.Inbreeding(trout(11)), shortest.Inbreeding(trout(11)))
}
