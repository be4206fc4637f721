package sparse_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/defuse"
	"github.com/kperifds/wasmtaint/flow/sparse"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

func TestSparseNormalCollapsesIntervalsAndAppendsLHS(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0", "%1"},
		Instructions: []ir.Instruction{
			ir.BinOp{Dest: "%1", A: "%0", B: "%0"},
		},
	}
	st := state.New()
	_, err := st.InitFunction(fn, 0)
	require.NoError(t, err)

	g := graph.New()
	br := blockresolver.Build(fn)
	dc := defuse.New(st)

	from := st.CacheFact("f", state.Fact{BelongsToVar: "%0", Function: "f", PC: 0, NextPC: 0})

	out, err := sparse.Normal(st, g, br, fn, dc, from, "%0")
	require.NoError(t, err)
	require.Len(t, out, 2)

	var names []string
	for _, id := range out {
		f := st.Fact(id)
		names = append(names, f.BelongsToVar)
		require.Equal(t, f.PC, f.NextPC, "returned facts must be point facts")
	}
	require.ElementsMatch(t, []string{"%0", "%1"}, names)
	require.Len(t, g.EdgesFrom(graph.Normal, from), 2)
}

// TestSparseNormalFollowsBothConditionalArms guards against regressing to a
// scope walk that only follows a Conditional's first target: %0 is defined
// once at pc 0, then a Conditional at pc 1 diverges into a "then" arm that
// redefines %0 and an "else" arm that never does. Demanding %0 at pc 1 must
// surface the interval ending at the redefinition AND the interval running
// to the end of the function, not just one of them.
func TestSparseNormalFollowsBothConditionalArms(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Const{Dest: "%0", Value: 1},
			ir.Conditional{Src: "%0", Targets: []string{"then", "else"}},
			ir.Block{Label: "then"},
			ir.Const{Dest: "%0", Value: 2},
			ir.Block{Label: "else"},
		},
	}
	st := state.New()
	_, err := st.InitFunction(fn, 0)
	require.NoError(t, err)

	g := graph.New()
	br := blockresolver.Build(fn)
	dc := defuse.New(st)

	from := st.CacheFact("f", state.Fact{BelongsToVar: "%0", Function: "f", PC: 0, NextPC: 1})

	out, err := sparse.Normal(st, g, br, fn, dc, from, "%0")
	require.NoError(t, err)

	var nextPCs []int
	for _, id := range out {
		nextPCs = append(nextPCs, st.Fact(id).NextPC)
	}
	require.ElementsMatch(t, []int{3, len(fn.Instructions)}, nextPCs)
}

func TestSparseNormalOutOfRangeReturnsNil(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Const{Dest: "%0", Value: 1},
		},
	}
	st := state.New()
	_, err := st.InitFunction(fn, 0)
	require.NoError(t, err)

	g := graph.New()
	br := blockresolver.Build(fn)
	dc := defuse.New(st)

	from := st.CacheFact("f", state.Fact{BelongsToVar: "%0", Function: "f", PC: 1, NextPC: 1})

	out, err := sparse.Normal(st, g, br, fn, dc, from, "%0")
	require.NoError(t, err)
	require.Nil(t, out)
}
