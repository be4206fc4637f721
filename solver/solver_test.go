package solver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/solver"
	"github.com/kperifds/wasmtaint/state"
)

func TestRequestValidateRejectsBareName(t *testing.T) {
	bad := "x0"
	req := solver.Request{Function: "f", PC: 0, Variable: &bad}
	require.Error(t, req.Validate())

	good := "%0"
	req.Variable = &good
	require.NoError(t, req.Validate())

	req.Variable = nil
	require.NoError(t, req.Validate())
}

func buildSimpleGraph(t *testing.T) (*state.State, *graph.Graph) {
	t.Helper()
	st := state.New()
	fn := &ir.Function{Name: "main", Definitions: []string{"%0", "%1"}}
	_, err := st.InitFunction(fn, 0)
	require.NoError(t, err)

	g := graph.New()
	taut, err := st.GetTaut("main")
	require.NoError(t, err)

	sink := st.CacheFact("main", state.Fact{BelongsToVar: "%1", Function: "main", PC: 1, NextPC: 1})
	g.AddPathEdge(taut, taut)
	g.AddPathEdge(taut, sink)

	return st, g
}

func TestIfdsSolverAllSinksFiltersByPCAndFunction(t *testing.T) {
	st, g := buildSimpleGraph(t)

	taints, err := (solver.IfdsSolver{St: st, G: g}).AllSinks(solver.Request{Function: "main", PC: 0})
	require.NoError(t, err)
	require.Equal(t, []solver.Taint{{Function: "main", PC: 1, Variable: "%1"}}, taints)

	taints, err = (solver.IfdsSolver{St: st, G: g}).AllSinks(solver.Request{Function: "main", PC: 5})
	require.NoError(t, err)
	require.Empty(t, taints)
}

func TestIfdsSolverIsTaint(t *testing.T) {
	st, g := buildSimpleGraph(t)
	s := solver.IfdsSolver{St: st, G: g}
	req := solver.Request{Function: "main", PC: 0}

	ok, err := s.IsTaint(req, solver.Taint{Function: "main", PC: 1, Variable: "%1"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsTaint(req, solver.Taint{Function: "main", PC: 9, Variable: "%1"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBfsAllSinksRequiresVariable(t *testing.T) {
	st, g := buildSimpleGraph(t)
	_, err := (solver.Bfs{St: st, G: g}).AllSinks(solver.Request{Function: "main", PC: 0})
	require.Error(t, err)
}

func TestBfsAllSinksTraversesFromNamedFact(t *testing.T) {
	st := state.New()
	fn := &ir.Function{Name: "main", Definitions: []string{"%0", "%1"}}
	_, err := st.InitFunction(fn, 0)
	require.NoError(t, err)

	g := graph.New()
	var v0 state.FactID
	var found bool
	for _, id := range st.GetFactsAt("main", 0) {
		if st.Fact(id).BelongsToVar == "%0" {
			v0, found = id, true
		}
	}
	require.True(t, found)

	sink := st.CacheFact("main", state.Fact{BelongsToVar: "%1", Function: "main", PC: 1, NextPC: 1})
	g.AddNormal(v0, sink, false)

	variable := "%0"
	taints, err := (solver.Bfs{St: st, G: g}).AllSinks(solver.Request{Function: "main", PC: 0, Variable: &variable})
	require.NoError(t, err)
	require.Equal(t, []solver.Taint{{Function: "main", PC: 1, Variable: "%1"}}, taints)
}
