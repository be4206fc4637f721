package meta_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/defuse"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/meta"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation/classical"
)

func sampleProgram(t *testing.T) *ir.Program {
	t.Helper()
	prog, err := ir.Parse(`
define main (param %0) (result 1) (define %0 %1) {
	%1 = %0
	RETURN %1;
};
`)
	require.NoError(t, err)

	return prog
}

func TestNaiveSumsDefinitionsTimesInstructions(t *testing.T) {
	prog := sampleProgram(t)

	m, err := meta.Naive(context.Background(), prog)
	require.NoError(t, err)
	require.NotNil(t, m.EstimatedExplodedGraphSize)
	// main has 2 definitions (%0, %1) and 2 instructions.
	require.Equal(t, uint64(4), *m.EstimatedExplodedGraphSize)
}

func TestFastAddsPathEdgeCount(t *testing.T) {
	prog := sampleProgram(t)

	st := state.New()
	g := graph.New()
	require.NoError(t, classical.Run(st, g, prog, "main", 0))

	m, err := meta.Fast(context.Background(), prog, g, st)
	require.NoError(t, err)
	require.NotNil(t, m.NumberPathEdges)
	require.Greater(t, *m.NumberPathEdges, uint64(0))
}

func TestSparseAddsDefUseCount(t *testing.T) {
	prog := sampleProgram(t)

	st := state.New()
	g := graph.New()
	dc := defuse.New(st)

	m, err := meta.Sparse(context.Background(), prog, g, st, dc)
	require.NoError(t, err)
	require.NotNil(t, m.SparseRelevantInstructions)
	require.Equal(t, uint64(0), *m.SparseRelevantInstructions)
}
