package dense_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/flow/dense"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

func setup(t *testing.T, fn *ir.Function) (*state.State, *graph.Graph, *blockresolver.Resolver) {
	t.Helper()
	st := state.New()
	_, err := st.InitFunction(fn, 0)
	require.NoError(t, err)

	return st, graph.New(), blockresolver.Build(fn)
}

func TestNormalConstKillsDest(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Const{Dest: "%0", Value: 1},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestNormalConstPropagatesOtherVariable(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0", "%1"},
		Instructions: []ir.Instruction{
			ir.Const{Dest: "%0", Value: 1},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%1")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Len(t, out, 1)
	f := st.Fact(out[0])
	require.Equal(t, "%1", f.BelongsToVar)
	require.Equal(t, 1, f.NextPC)
}

func TestNormalBinOpPropagatesBothOperandAndDest(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0", "%1", "%2"},
		Instructions: []ir.Instruction{
			ir.BinOp{Dest: "%2", A: "%0", B: "%1"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Len(t, out, 2)

	var names []string
	for _, id := range out {
		names = append(names, st.Fact(id).BelongsToVar)
	}
	require.ElementsMatch(t, []string{"%0", "%2"}, names)
	require.Len(t, g.EdgesFrom(graph.Normal, from[0]), 2)
}

func TestNormalBinOpKillsDestWhenOperandsClean(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0", "%1", "%2"},
		Instructions: []ir.Instruction{
			ir.BinOp{Dest: "%2", A: "%0", B: "%1"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%2")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestNormalJumpUnresolvedIsHardError(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Jump{Target: "nowhere"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	_, err = dense.Normal(st, g, br, fn, from[0])
	require.Error(t, err, "spec.md §4.8: an unreachable block is a hard error, not a silent skip")
}

func TestNormalJumpResolvedPropagatesToTarget(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Jump{Target: "entry"},
			ir.Block{Label: "entry"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, st.Fact(out[0]).NextPC)
}

func TestNormalConditionalPropagatesToBothTargets(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Conditional{Src: "%0", Targets: []string{"then", "else"}},
			ir.Block{Label: "then"},
			ir.Block{Label: "else"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Len(t, out, 2, "a Conditional must propagate to every target, not just the first")

	var nextPCs []int
	for _, id := range out {
		nextPCs = append(nextPCs, st.Fact(id).NextPC)
	}
	require.ElementsMatch(t, []int{1, 2}, nextPCs)
}

func TestNormalTablePropagatesToEveryTarget(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Table{Targets: []string{"a", "b", "c"}},
			ir.Block{Label: "a"},
			ir.Block{Label: "b"},
			ir.Block{Label: "c"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	out, err := dense.Normal(st, g, br, fn, from[0])
	require.NoError(t, err)
	require.Len(t, out, 3, "a Table must propagate to every target, not just the first")

	var nextPCs []int
	for _, id := range out {
		nextPCs = append(nextPCs, st.Fact(id).NextPC)
	}
	require.ElementsMatch(t, []int{1, 2, 3}, nextPCs)
}

func TestNormalConditionalUnresolvedTargetIsHardError(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Conditional{Src: "%0", Targets: []string{"nowhere"}},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	_, err = dense.Normal(st, g, br, fn, from[0])
	require.Error(t, err)
}

func TestNormalRejectsCallDispatch(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Call{Callee: "g"},
		},
	}
	st, g, br := setup(t, fn)

	from, err := st.AddStatement(fn, 0, "%0")
	require.NoError(t, err)

	_, err = dense.Normal(st, g, br, fn, from[0])
	require.Error(t, err)
}
