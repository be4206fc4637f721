// Package sparse implements the demand-driven tabulation variant (spec.md
// §4.5): the same worklist skeleton as classical, but the normal flow
// function is backed by the def-use chain (package defuse) instead of
// materializing one fact per instruction.
package sparse

import (
	"github.com/kperifds/wasmtaint/defuse"
	"github.com/kperifds/wasmtaint/flow/dense"
	"github.com/kperifds/wasmtaint/flow/sparse"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation/engine"
)

type sparseFlows struct {
	st  *state.State
	g   *graph.Graph
	res *engine.Resolvers
	dc  *defuse.Chain
}

// Initial reuses the dense seed (spec.md §4.2): the taut self-fact and the
// first taintable instruction's defined registers are seeded exactly as in
// the dense strategies; only Normal differs between dense and sparse.
func (s sparseFlows) Initial(fn *ir.Function, pc int) ([]state.FactID, error) {
	br, _, err := s.res.For(fn.Name)
	if err != nil {
		return nil, err
	}

	return dense.Initial(s.st, s.g, br, fn, pc)
}

func (s sparseFlows) Normal(fn *ir.Function, from state.FactID) ([]state.FactID, error) {
	br, _, err := s.res.For(fn.Name)
	if err != nil {
		return nil, err
	}
	f := s.st.Fact(from)

	return sparse.Normal(s.st, s.g, br, fn, s.dc, from, f.BelongsToVar)
}

// Run tabulates prog starting at (function, pc) using the sparse,
// def-use-chain-backed worklist.
func Run(st *state.State, g *graph.Graph, prog *ir.Program, function string, pc int) error {
	res := engine.NewResolvers(prog)
	ff := sparseFlows{st: st, g: g, res: res, dc: defuse.New(st)}

	return engine.Run(st, g, prog, function, pc, ff)
}
