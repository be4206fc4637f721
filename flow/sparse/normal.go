// Package sparse implements the sparse Normal flow function (spec.md §4.2,
// §4.5); the sparse strategy seeds with dense.Initial. Normal applies the
// same per-instruction truth table as package dense, but backed
// by the def-use chain so a tainted variable threads through one fact per
// maximal interval instead of one fact per instruction.
package sparse

import (
	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/defuse"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

// Normal computes the sparse successor facts for variable entering pc within
// fn, via the def-use chain, collapsing any interval fact to a point fact
// (state.Fact.ApplyBound) before returning it — the consumer always sees
// pc == next_pc, per spec.md §4.5.
func Normal(st *state.State, g *graph.Graph, br *blockresolver.Resolver, fn *ir.Function, dc *defuse.Chain, from state.FactID, variable string) ([]state.FactID, error) {
	f := st.Fact(from)
	pc := f.NextPC

	if pc < 0 || pc >= len(fn.Instructions) {
		return nil, nil
	}

	nodes, err := dc.DemandInclusive(br, fn, variable, pc)
	if err != nil {
		return nil, err
	}

	appendLHS := func(dest string) error {
		dc.ForceRemoveIfOutdated(fn, dest, pc)
		more, err := dc.DemandInclusive(br, fn, dest, pc)
		if err != nil {
			return err
		}
		nodes = append(nodes, more...)

		return nil
	}

	switch n := fn.Instructions[pc].(type) {
	case ir.Unop:
		if err := appendLHS(n.Dest); err != nil {
			return nil, err
		}
	case ir.Phi:
		if err := appendLHS(n.Dest); err != nil {
			return nil, err
		}
	case ir.BinOp:
		if err := appendLHS(n.Dest); err != nil {
			return nil, err
		}
	case ir.Assign:
		if err := appendLHS(n.Dest); err != nil {
			return nil, err
		}
	case ir.Load:
		if err := appendLHS(n.Dest); err != nil {
			return nil, err
		}
	case ir.Call:
		for _, d := range n.Dests {
			if err := appendLHS(d); err != nil {
				return nil, err
			}
		}
	case ir.CallIndirect:
		for _, d := range n.Dests {
			if err := appendLHS(d); err != nil {
				return nil, err
			}
		}
	case ir.Store:
		memName := ir.MemoryCellName(n.Offset)
		st.AddMemoryVar(fn.Name, n.Offset)
		more, err := dc.DemandInclusive(br, fn, memName, pc)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, more...)
	}

	out := make([]state.FactID, 0, len(nodes))
	for _, id := range nodes {
		fact := st.Fact(id)
		if fact.PC != fact.NextPC {
			fact = fact.ApplyBound()
			id = st.CacheFact(fn.Name, fact)
		}
		g.AddNormal(from, id, false)
		out = append(out, id)
	}

	return out, nil
}
