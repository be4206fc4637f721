// Package classical implements the original Reps-Horwitz-Sagiv tabulation
// (spec.md §4.4): the path-edge/worklist algorithm driven by the dense flow
// functions, with call/return handling, procedure summaries, and the
// pacemaker seed.
package classical

import (
	"github.com/kperifds/wasmtaint/flow/dense"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation/engine"
)

type denseFlows struct {
	st  *state.State
	g   *graph.Graph
	res *engine.Resolvers
}

func (d denseFlows) Initial(fn *ir.Function, pc int) ([]state.FactID, error) {
	br, _, err := d.res.For(fn.Name)
	if err != nil {
		return nil, err
	}

	return dense.Initial(d.st, d.g, br, fn, pc)
}

func (d denseFlows) Normal(fn *ir.Function, from state.FactID) ([]state.FactID, error) {
	br, _, err := d.res.For(fn.Name)
	if err != nil {
		return nil, err
	}

	return dense.Normal(d.st, d.g, br, fn, from)
}

// Run tabulates prog starting at (function, pc) using st and g, building the
// exploded supergraph with the classical worklist.
func Run(st *state.State, g *graph.Graph, prog *ir.Program, function string, pc int) error {
	res := engine.NewResolvers(prog)
	ff := denseFlows{st: st, g: g, res: res}

	return engine.Run(st, g, prog, function, pc, ff)
}
