// Package naive implements the eager, worklist-free tabulation strategy
// (spec.md §4.3): for every function, every instruction, and every
// variable, materialize a fact and connect it to its successors via the
// dense normal flow function; also materialize call/return/call-to-return
// edges at every callsite against every candidate callee. This is the
// reference baseline, not meant to scale — meta.Naive's complexity estimate
// assumes this Θ(Σ|defs|·|insns|) construction.
package naive

import (
	"fmt"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/flow/dense"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

// Run eagerly materializes the full exploded supergraph for every function
// in prog.
func Run(st *state.State, g *graph.Graph, prog *ir.Program) error {
	resolvers := make(map[string]*blockresolver.Resolver, len(prog.Functions))
	for i := range prog.Functions {
		fn := &prog.Functions[i]
		if _, err := st.InitFunction(fn, 0); err != nil {
			return err
		}
		resolvers[fn.Name] = blockresolver.Build(fn)
	}

	for i := range prog.Functions {
		fn := &prog.Functions[i]
		br := resolvers[fn.Name]

		for _, v := range st.Vars(fn.Name) {
			for pc := 0; pc < len(fn.Instructions); pc++ {
				track, _ := st.GetTrack(fn.Name, v.Name)
				id := st.CacheFact(fn.Name, state.Fact{
					BelongsToVar: v.Name,
					Function:     fn.Name,
					PC:           pc,
					NextPC:       pc,
					Track:        track,
					IsTaut:       v.IsTaut,
					IsGlobal:     v.IsGlobal,
					IsMemory:     v.IsMemory,
					MemoryOffset: v.MemoryOffset,
				})

				switch instr := fn.Instructions[pc].(type) {
				case ir.Call:
					if err := wireCall(st, g, prog, fn, id, pc, instr.Callee, instr.Params); err != nil {
						return err
					}
				case ir.CallIndirect:
					for _, callee := range instr.Callees {
						if err := wireCall(st, g, prog, fn, id, pc, callee, instr.Params); err != nil {
							return err
						}
					}
				case ir.Return:
					// handled globally by wireReturns, against every callsite.
				default:
					if _, err := dense.Normal(st, g, br, fn, id); err != nil {
						return err
					}
				}
			}
		}
	}

	return wireReturns(st, g, prog)
}

// wireCall connects the call-site fact id to the callee's entry fact for
// every binding the spec's pass_args rule describes (taut, globals, memory,
// matching parameters), and a fact that none of them binds to its
// call-to-return successor at pc+1.
func wireCall(st *state.State, g *graph.Graph, prog *ir.Program, callerFn *ir.Function, id state.FactID, pc int, calleeName string, params []string) error {
	calleeFn := prog.FindFunction(calleeName)
	if calleeFn == nil {
		return errs.New(errs.KindInvariant, "naive.wireCall", fmt.Errorf("function %s not found", calleeName))
	}
	if _, err := st.InitFunction(calleeFn, 0); err != nil {
		return err
	}

	f := st.Fact(id)

	bind := func(variable string) error {
		cid, err := internFact(st, calleeFn, 0, 0, variable)
		if err != nil {
			return err
		}
		g.AddCallEdge(id, cid)

		return nil
	}

	// Union, not priority: a variable can be both a global and an actual
	// parameter at once (spec.md §4.2's "globals, memory, and parameters
	// flow through the callee" lists these independently).
	if f.IsTaut {
		return bind(ir.TautName)
	}
	bound := false
	if f.IsGlobal {
		bound = true
		if err := bind(f.BelongsToVar); err != nil {
			return err
		}
	}
	if f.IsMemory {
		bound = true
		if err := bind(ir.MemoryCellName(f.MemoryOffset)); err != nil {
			return err
		}
	}
	for i, actual := range params {
		if actual != f.BelongsToVar || i >= len(calleeFn.Params) {
			continue
		}
		bound = true
		if err := bind(calleeFn.Params[i]); err != nil {
			return err
		}
	}
	if !bound {
		rid, err := internFact(st, callerFn, pc, pc+1, f.BelongsToVar)
		if err != nil {
			return err
		}
		g.AddCallToReturnEdge(id, rid)
	}

	return nil
}

// wireReturns connects, for every Return instruction in every function,
// return edges back to every callsite across the whole program that calls
// that function — the "against every callee" eager construction.
func wireReturns(st *state.State, g *graph.Graph, prog *ir.Program) error {
	for i := range prog.Functions {
		callee := &prog.Functions[i]
		for pc, instr := range callee.Instructions {
			ret, ok := instr.(ir.Return)
			if !ok {
				continue
			}

			for j := range prog.Functions {
				caller := &prog.Functions[j]
				for callPC, callInstr := range caller.Instructions {
					dests, targets := callTargets(callInstr)
					for _, target := range targets {
						if target != callee.Name {
							continue
						}
						if err := wireOneReturn(st, g, callee, caller, pc, callPC, ret.Regs, dests); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	return nil
}

func wireOneReturn(st *state.State, g *graph.Graph, callee, caller *ir.Function, calleePC, callPC int, regs, dests []string) error {
	returnSitePC := callPC + 1

	for _, v := range st.Vars(callee.Name) {
		exitID, err := internFact(st, callee, calleePC, calleePC, v.Name)
		if err != nil {
			return err
		}

		// Union, not priority: see the matching note in engine.endProcedure.
		if v.IsTaut {
			toID, err := internFact(st, caller, callPC, returnSitePC, ir.TautName)
			if err != nil {
				return err
			}
			g.AddReturnEdge(exitID, toID)

			continue
		}
		if v.IsGlobal {
			toID, err := internFact(st, caller, callPC, returnSitePC, v.Name)
			if err != nil {
				return err
			}
			g.AddReturnEdge(exitID, toID)
		}
		if v.IsMemory {
			toID, err := internFact(st, caller, callPC, returnSitePC, ir.MemoryCellName(v.MemoryOffset))
			if err != nil {
				return err
			}
			g.AddReturnEdge(exitID, toID)
		}
		for i, r := range regs {
			if r != v.Name || i >= len(dests) {
				continue
			}
			toID, err := internFact(st, caller, callPC, returnSitePC, dests[i])
			if err != nil {
				return err
			}
			g.AddReturnEdge(exitID, toID)
		}
	}

	return nil
}

func callTargets(instr ir.Instruction) (dests, targets []string) {
	switch n := instr.(type) {
	case ir.Call:
		return n.Dests, []string{n.Callee}
	case ir.CallIndirect:
		return n.Dests, n.Callees
	default:
		return nil, nil
	}
}

func internFact(st *state.State, fn *ir.Function, pc, nextPC int, variable string) (state.FactID, error) {
	v, ok := st.GetVar(fn.Name, variable)
	if !ok {
		if base, offset, isMem := ir.IsMemoryCell(variable); isMem && base == "mem" {
			v = st.AddMemoryVar(fn.Name, offset)
		} else {
			return 0, errs.New(errs.KindInvariant, "naive.internFact", fmt.Errorf("function %s: variable %s not registered", fn.Name, variable))
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
