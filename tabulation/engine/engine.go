// Package engine implements the Reps-Horwitz-Sagiv worklist shared by the
// classical, fast, and sparse tabulation strategies (spec.md §4.4): path
// edges, the worklist, call/return handling, and procedure summaries. Only
// the flow functions (Initial/Normal) differ between callers — classical and
// fast pass the dense functions, sparse passes dense.Initial with a
// def-use-chain-backed Normal — so this package takes them as a FlowFuncs parameter rather than
// each strategy reimplementing the worklist.
package engine

import (
	"fmt"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

// FlowFuncs supplies the per-strategy transfer functions. Initial seeds the
// path/normal edges for a function entered at pc (spec.md §4.2); Normal
// computes the successor facts of from (spec.md §4.2/§4.5).
type FlowFuncs interface {
	Initial(fn *ir.Function, pc int) ([]state.FactID, error)
	Normal(fn *ir.Function, from state.FactID) ([]state.FactID, error)
}

// Resolvers lazily builds and caches one blockresolver.Resolver per
// function, shared across a Run.
type Resolvers struct {
	prog  *ir.Program
	cache map[string]*blockresolver.Resolver
}

// NewResolvers creates a Resolvers over prog.
func NewResolvers(prog *ir.Program) *Resolvers {
	return &Resolvers{prog: prog, cache: make(map[string]*blockresolver.Resolver)}
}

// For returns the Resolver for the named function, building it on first use.
func (r *Resolvers) For(function string) (*blockresolver.Resolver, *ir.Function, error) {
	fn := r.prog.FindFunction(function)
	if fn == nil {
		return nil, nil, errs.New(errs.KindInvariant, "engine.Resolvers.For", fmt.Errorf("function %s not found", function))
	}
	if br, ok := r.cache[function]; ok {
		return br, fn, nil
	}
	br := blockresolver.Build(fn)
	r.cache[function] = br

	return br, fn, nil
}

type pair struct{ d1, d2 state.FactID }

type endKey struct {
	function string
	entryPC  int
	variable string
}

type incomingKey struct {
	callee   string
	entryPC  int
	variable string
}

// Run executes the forward worklist loop starting at (entryFunction, entryPC),
// mutating st and g in place.
func Run(st *state.State, g *graph.Graph, prog *ir.Program, entryFunction string, entryPC int, ff FlowFuncs) error {
	resolvers := NewResolvers(prog)

	entryFn := prog.FindFunction(entryFunction)
	if entryFn == nil {
		return errs.New(errs.KindInvariant, "engine.Run", fmt.Errorf("function %s not found", entryFunction))
	}
	if _, err := st.InitFunction(entryFn, entryPC); err != nil {
		return err
	}

	endSummary := make(map[endKey][]state.FactID)
	incoming := make(map[incomingKey][]state.FactID)
	// reachedBy[d2] lists every d1 for which a (d1, d2) path edge exists —
	// used by end_procedure to extend every caller path edge that reached a
	// call fact, per spec.md §4.4.
	reachedBy := make(map[state.FactID][]state.FactID)

	var worklist []pair

	propagate := func(d1, d2 state.FactID) {
		if g.AddPathEdge(d1, d2) {
			reachedBy[d2] = append(reachedBy[d2], d1)
			worklist = append(worklist, pair{d1, d2})
		}
	}

	taut, err := st.GetTaut(entryFunction)
	if err != nil {
		return err
	}
	propagate(taut, taut)

	seeds, err := ff.Initial(entryFn, entryPC)
	if err != nil {
		return err
	}
	for _, id := range seeds {
		propagate(taut, id)
	}

	for len(worklist) > 0 {
		p := worklist[0]
		worklist = worklist[1:]
		d1, d2 := p.d1, p.d2

		f2 := st.Fact(d2)
		_, fn, err := resolvers.For(f2.Function)
		if err != nil {
			return err
		}
		pc := f2.NextPC

		if pc >= len(fn.Instructions) {
			if err := endProcedure(st, g, resolvers, fn, d1, d2, nil, endSummary, incoming, reachedBy, propagate); err != nil {
				return err
			}

			continue
		}

		instr := fn.Instructions[pc]
		switch n := instr.(type) {
		case ir.Call:
			if err := handleCall(st, g, resolvers, fn, d1, d2, n.Callee, n.Params, n.Dests, incoming, propagate); err != nil {
				return err
			}

		case ir.CallIndirect:
			for _, callee := range n.Callees {
				if err := handleCall(st, g, resolvers, fn, d1, d2, callee, n.Params, n.Dests, incoming, propagate); err != nil {
					return err
				}
			}

		case ir.Return:
			if err := endProcedure(st, g, resolvers, fn, d1, d2, n.Regs, endSummary, incoming, reachedBy, propagate); err != nil {
				return err
			}

		default:
			succs, err := ff.Normal(fn, d2)
			if err != nil {
				return err
			}
			for _, s := range succs {
				propagate(d1, s)
			}
		}
	}

	return nil
}

// handleCall implements pass_args plus the summary-edge shortcut and
// call-to-return edge, per spec.md §4.4.
func handleCall(st *state.State, g *graph.Graph, resolvers *Resolvers, callerFn *ir.Function, d1, d2 state.FactID, calleeName string, params, dests []string, incoming map[incomingKey][]state.FactID, propagate func(state.FactID, state.FactID)) error {
	_, calleeFn, err := resolvers.For(calleeName)
	if err != nil {
		return err
	}
	if _, err := st.InitFunction(calleeFn, 0); err != nil {
		return err
	}

	f2 := st.Fact(d2)
	pc := f2.NextPC
	bound := false

	bind := func(variable string) error {
		id, err := internFact(st, calleeFn, 0, 0, variable)
		if err != nil {
			return err
		}
		g.AddCallEdge(d2, id)
		incoming[incomingKey{calleeName, 0, variable}] = append(incoming[incomingKey{calleeName, 0, variable}], d2)
		propagate(id, id)

		return nil
	}

	// spec.md §4.2's Return truth table ("v is returned or global or
	// memory") is a disjunction, not a priority order: a register can be
	// simultaneously a global and an actual parameter, and both bindings
	// must fire. Taut is the one exception — it is a private sentinel
	// name, never also a real parameter or global.
	if f2.IsTaut {
		bound = true
		if err := bind(ir.TautName); err != nil {
			return err
		}
	} else {
		if f2.IsGlobal {
			bound = true
			if err := bind(f2.BelongsToVar); err != nil {
				return err
			}
		}
		if f2.IsMemory {
			bound = true
			if err := bind(ir.MemoryCellName(f2.MemoryOffset)); err != nil {
				return err
			}
		}
		for i, actual := range params {
			if actual != f2.BelongsToVar || i >= len(calleeFn.Params) {
				continue
			}
			bound = true
			if err := bind(calleeFn.Params[i]); err != nil {
				return err
			}
		}
	}

	// Apply any existing summary edges at this callsite without descending.
	for _, e := range g.EdgesFrom(graph.Summary, d2) {
		propagate(d1, e.To)
	}

	if !bound {
		id, err := internFact(st, callerFn, pc, pc+1, f2.BelongsToVar)
		if err != nil {
			return err
		}
		g.AddCallToReturnEdge(d2, id)
		propagate(d1, id)
	}

	return nil
}

// endProcedure implements handle_return/end_procedure: for every caller call
// fact recorded in incoming for this entry, emit the return and summary
// edges and extend every path edge that reached that call fact.
// returnedRegs is nil when pc ran off the end of the function with no
// explicit Return instruction.
func endProcedure(st *state.State, g *graph.Graph, resolvers *Resolvers, fn *ir.Function, d1, d2 state.FactID, returnedRegs []string, endSummary map[endKey][]state.FactID, incoming map[incomingKey][]state.FactID, reachedBy map[state.FactID][]state.FactID, propagate func(state.FactID, state.FactID)) error {
	f1 := st.Fact(d1)
	f2 := st.Fact(d2)

	ek := endKey{function: fn.Name, entryPC: f1.PC, variable: f1.BelongsToVar}
	endSummary[ek] = append(endSummary[ek], d2)

	ik := incomingKey{callee: fn.Name, entryPC: f1.PC, variable: f1.BelongsToVar}
	for _, callerCallFact := range incoming[ik] {
		cf := st.Fact(callerCallFact)
		_, callerFn, err := resolvers.For(cf.Function)
		if err != nil {
			return err
		}

		callPC := cf.NextPC
		callInstr := callerFn.Instructions[callPC]
		dests, _ := callDestsParams(callInstr)
		returnSitePC := callPC + 1

		var toIDs []state.FactID

		// Union, not priority: spec.md §4.2 says "v is returned or global
		// or memory" — a returned register can also be a global (as in
		// spec.md §8's S5), and must bind both as the continuing global
		// thread AND positionally into the call's declared dest.
		if f2.IsTaut {
			id, err := internFact(st, callerFn, callPC, returnSitePC, ir.TautName)
			if err != nil {
				return err
			}
			toIDs = append(toIDs, id)
		} else {
			if f2.IsGlobal {
				id, err := internFact(st, callerFn, callPC, returnSitePC, f2.BelongsToVar)
				if err != nil {
					return err
				}
				toIDs = append(toIDs, id)
			}
			if f2.IsMemory {
				id, err := internFact(st, callerFn, callPC, returnSitePC, ir.MemoryCellName(f2.MemoryOffset))
				if err != nil {
					return err
				}
				toIDs = append(toIDs, id)
			}
			for i, r := range returnedRegs {
				if r != f2.BelongsToVar || i >= len(dests) {
					continue
				}
				id, err := internFact(st, callerFn, callPC, returnSitePC, dests[i])
				if err != nil {
					return err
				}
				toIDs = append(toIDs, id)
			}
		}

		for _, to := range toIDs {
			g.AddReturnEdge(d2, to)
			g.AddSummaryEdge(callerCallFact, to)
			for _, callerD1 := range reachedBy[callerCallFact] {
				propagate(callerD1, to)
			}
		}
	}

	return nil
}

func callDestsParams(instr ir.Instruction) (dests, params []string) {
	switch n := instr.(type) {
	case ir.Call:
		return n.Dests, n.Params
	case ir.CallIndirect:
		return n.Dests, n.Params
	default:
		return nil, nil
	}
}

// internFact caches a fact for variable in fn at (pc, nextPC), resolving its
// registration (including on-demand memory-cell interning).
func internFact(st *state.State, fn *ir.Function, pc, nextPC int, variable string) (state.FactID, error) {
	v, ok := st.GetVar(fn.Name, variable)
	if !ok {
		if base, offset, isMem := ir.IsMemoryCell(variable); isMem && base == "mem" {
			v = st.AddMemoryVar(fn.Name, offset)
		} else {
			return 0, errs.New(errs.KindInvariant, "engine.internFact", fmt.Errorf("function %s: variable %s not registered", fn.Name, variable))
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
