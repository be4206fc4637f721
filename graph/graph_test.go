package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/graph"
)

func TestAddPathEdgeDedups(t *testing.T) {
	g := graph.New()

	require.True(t, g.AddPathEdge(1, 2))
	require.True(t, g.HasPathEdge(1, 2))
	require.False(t, g.AddPathEdge(1, 2))
	require.Equal(t, 1, g.EdgeCount())
}

func TestAddPathEdgeDistinguishesDirection(t *testing.T) {
	g := graph.New()

	require.True(t, g.AddPathEdge(1, 2))
	require.True(t, g.AddPathEdge(2, 1))
	require.Equal(t, 2, g.EdgeCount())
}

func TestEdgeKindAccessors(t *testing.T) {
	g := graph.New()

	g.AddNormal(1, 2, false)
	g.AddCallEdge(2, 3)
	g.AddReturnEdge(3, 4)
	g.AddCallToReturnEdge(2, 5)
	g.AddSummaryEdge(2, 4)
	g.AddPathEdge(1, 2)

	require.Len(t, g.EdgesFrom(graph.Normal, 1), 1)
	require.Len(t, g.EdgesFrom(graph.Call, 2), 1)
	require.Len(t, g.EdgesFrom(graph.Return, 3), 1)
	require.Len(t, g.EdgesFrom(graph.CallToReturn, 2), 1)
	require.Len(t, g.EdgesFrom(graph.Summary, 2), 1)
	require.Len(t, g.EdgesTo(graph.Path, 2), 1)
	require.Equal(t, 6, g.EdgeCount())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "normal", graph.Normal.String())
	require.Equal(t, "call-to-return", graph.CallToReturn.String())
	require.Equal(t, "summary", graph.Summary.String())
}
