// Package dense implements the dense (per-instruction, per-pc) flow
// functions of spec.md §4.2: Initial and Normal. Every produced fact is
// interned through state.State and mirrored as a graph.Normal edge from the
// consumed fact to the produced one, so the "Kill consistency" testable
// property (spec.md §8 item 5) can be checked directly against the edge set.
package dense

import (
	"fmt"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

// Normal applies the per-instruction transfer table of spec.md §4.2 to the
// fact identified by from, whose NextPC names the instruction to process.
// Call, CallIndirect, and Return are not handled here — the tabulator
// dispatches those specially (spec.md §4.4) before ever calling Normal.
func Normal(st *state.State, g *graph.Graph, br *blockresolver.Resolver, fn *ir.Function, from state.FactID) ([]state.FactID, error) {
	f := st.Fact(from)
	pc := f.NextPC
	v := f.BelongsToVar

	if pc < 0 || pc >= len(fn.Instructions) {
		return nil, errs.New(errs.KindInvariant, "dense.Normal", fmt.Errorf("function %s: pc %d out of range", fn.Name, pc))
	}

	instr := fn.Instructions[pc]

	propagate := func(nextPC int, variable string) (state.FactID, error) {
		return internFact(st, fn, pc, nextPC, variable)
	}

	link := func(to state.FactID) {
		g.AddNormal(from, to, false)
	}

	emit := func(ids ...state.FactID) ([]state.FactID, error) {
		out := make([]state.FactID, 0, len(ids))
		for _, id := range ids {
			link(id)
			out = append(out, id)
		}

		return out, nil
	}

	switch n := instr.(type) {
	case ir.Const:
		if v == n.Dest {
			return nil, nil // killed
		}
		id, err := propagate(pc+1, v)
		if err != nil {
			return nil, err
		}

		return emit(id)

	case ir.Assign:
		return assignLike(st, g, fn, pc, v, n.Dest, n.Src, link)

	case ir.Unop:
		return assignLike(st, g, fn, pc, v, n.Dest, n.Src, link)

	case ir.BinOp:
		return binopLike(st, g, fn, pc, v, n.Dest, n.A, n.B, link)

	case ir.Phi:
		return binopLike(st, g, fn, pc, v, n.Dest, n.A, n.B, link)

	case ir.Kill:
		if v == n.Dest {
			return nil, nil
		}
		id, err := propagate(pc+1, v)
		if err != nil {
			return nil, err
		}

		return emit(id)

	case ir.Block:
		id, err := propagate(pc+1, v)
		if err != nil {
			return nil, err
		}

		return emit(id)

	case ir.Jump:
		target, err := br.Resolve(fn.Name, n.Target)
		if err != nil {
			return nil, err
		}
		id, err := propagate(target, v)
		if err != nil {
			return nil, err
		}

		return emit(id)

	case ir.Conditional:
		return branch(st, fn, pc, v, br, n.Targets, link)

	case ir.Table:
		return branch(st, fn, pc, v, br, n.Targets, link)

	case ir.Load:
		return loadFlow(st, g, fn, pc, v, n, link)

	case ir.Store:
		return storeFlow(st, g, fn, pc, v, n, link)

	case ir.Unknown:
		ids := make([]state.FactID, 0, 2)
		if v != n.Dest {
			id, err := propagate(pc+1, v)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		did, err := propagate(pc+1, n.Dest)
		if err != nil {
			return nil, err
		}
		ids = append(ids, did)

		return emit(ids...)

	case ir.Call, ir.CallIndirect, ir.Return:
		return nil, errs.New(errs.KindInvariant, "dense.Normal", fmt.Errorf("function %s: pc %d must be dispatched by the tabulator, not Normal", fn.Name, pc))

	default:
		return nil, errs.New(errs.KindInvariant, "dense.Normal", fmt.Errorf("function %s: pc %d: unhandled instruction %T", fn.Name, pc, instr))
	}
}

// assignLike implements the shared Assign/Unop truth table: if v==src,
// propagate both v and dest; if v==dest, kill; else propagate v.
func assignLike(st *state.State, g *graph.Graph, fn *ir.Function, pc int, v, dest, src string, link func(state.FactID)) ([]state.FactID, error) {
	switch v {
	case src:
		vid, err := internFact(st, fn, pc, pc+1, v)
		if err != nil {
			return nil, err
		}
		did, err := internFact(st, fn, pc, pc+1, dest)
		if err != nil {
			return nil, err
		}
		link(vid)
		link(did)

		return []state.FactID{vid, did}, nil
	case dest:
		return nil, nil
	default:
		id, err := internFact(st, fn, pc, pc+1, v)
		if err != nil {
			return nil, err
		}
		link(id)

		return []state.FactID{id}, nil
	}
}

// binopLike implements the shared BinOp/Phi truth table: if v is either
// operand, propagate v and dest; if v==dest and neither operand tainted,
// kill; else propagate v.
func binopLike(st *state.State, g *graph.Graph, fn *ir.Function, pc int, v, dest, a, b string, link func(state.FactID)) ([]state.FactID, error) {
	if v == a || v == b {
		vid, err := internFact(st, fn, pc, pc+1, v)
		if err != nil {
			return nil, err
		}
		did, err := internFact(st, fn, pc, pc+1, dest)
		if err != nil {
			return nil, err
		}
		link(vid)
		link(did)

		return []state.FactID{vid, did}, nil
	}
	if v == dest {
		return nil, nil
	}
	id, err := internFact(st, fn, pc, pc+1, v)
	if err != nil {
		return nil, err
	}
	link(id)

	return []state.FactID{id}, nil
}

// branch propagates v to every successor block named by targets (Conditional,
// Table); an unresolved target is a hard error (spec.md §4.8), not a silent
// skip — spec.md §7's carve-out is scoped to absent blocks in Block(_)
// bodies, which never applies here since ir.Block has no successor to
// resolve.
func branch(st *state.State, fn *ir.Function, pc int, v string, br *blockresolver.Resolver, targets []string, link func(state.FactID)) ([]state.FactID, error) {
	var out []state.FactID
	for _, label := range targets {
		target, err := br.Resolve(fn.Name, label)
		if err != nil {
			return nil, err
		}
		id, err := internFact(st, fn, pc, target, v)
		if err != nil {
			return nil, err
		}
		link(id)
		out = append(out, id)
	}

	return out, nil
}

func loadFlow(st *state.State, g *graph.Graph, fn *ir.Function, pc int, v string, n ir.Load, link func(state.FactID)) ([]state.FactID, error) {
	memName := ir.MemoryCellName(n.Offset)
	if v == memName {
		st.AddMemoryVar(fn.Name, n.Offset)
	}

	if v == n.Index || v == memName {
		vid, err := internFact(st, fn, pc, pc+1, v)
		if err != nil {
			return nil, err
		}
		did, err := internFact(st, fn, pc, pc+1, n.Dest)
		if err != nil {
			return nil, err
		}
		link(vid)
		link(did)

		return []state.FactID{vid, did}, nil
	}
	if v == n.Dest {
		return nil, nil
	}
	id, err := internFact(st, fn, pc, pc+1, v)
	if err != nil {
		return nil, err
	}
	link(id)

	return []state.FactID{id}, nil
}

func storeFlow(st *state.State, g *graph.Graph, fn *ir.Function, pc int, v string, n ir.Store, link func(state.FactID)) ([]state.FactID, error) {
	memName := ir.MemoryCellName(n.Offset)

	if v == n.Src || v == n.Index {
		st.AddMemoryVar(fn.Name, n.Offset)

		vid, err := internFact(st, fn, pc, pc+1, v)
		if err != nil {
			return nil, err
		}
		mid, err := internFact(st, fn, pc, pc+1, memName)
		if err != nil {
			return nil, err
		}
		link(vid)
		link(mid)

		return []state.FactID{vid, mid}, nil
	}
	if v == memName {
		return nil, nil
	}
	id, err := internFact(st, fn, pc, pc+1, v)
	if err != nil {
		return nil, err
	}
	link(id)

	return []state.FactID{id}, nil
}

// internFact looks up variable's registration (interning a memory cell on
// demand) and caches the fact (function, variable, pc, nextPC).
func internFact(st *state.State, fn *ir.Function, pc, nextPC int, variable string) (state.FactID, error) {
	v, ok := st.GetVar(fn.Name, variable)
	if !ok {
		if base, offset, isMem := ir.IsMemoryCell(variable); isMem && base == "mem" {
			v = st.AddMemoryVar(fn.Name, offset)
		} else {
			return 0, errs.New(errs.KindInvariant, "dense.internFact", fmt.Errorf("function %s: variable %s not registered", fn.Name, variable))
		}
	}

	track, _ := st.GetTrack(fn.Name, v.Name)

	return st.CacheFact(fn.Name, state.Fact{
		BelongsToVar: v.Name,
		Function:     fn.Name,
		PC:           pc,
		NextPC:       nextPC,
		Track:        track,
		IsTaut:       v.IsTaut,
		IsGlobal:     v.IsGlobal,
		IsMemory:     v.IsMemory,
		MemoryOffset: v.MemoryOffset,
	}), nil
}
