// Package defuse implements the def-use chain consulted by the sparse
// tabulation variant (spec.md §4.6): rather than materializing a fact at
// every instruction a variable survives, it caches one interval fact per
// maximal run between a definition and its next redefinition, and collapses
// that interval to a point fact when the variable is consumed mid-run
// (state.Fact.ApplyBound).
//
// Scope computation follows every reachable successor of a definition site
// (Jump/Conditional/Table, resolved through the block resolver) and joins at
// confluences — a pc reached down more than one path is only ever walked
// once — per spec.md §4.6: "the scope walker follows all reachable
// successors and joins at confluences, producing one fact per maximal
// interval." A definition with divergent branches therefore caches one
// interval fact per distinct reachable redefinition/exit point, not just the
// first branch target.
package defuse

import (
	"fmt"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

type scopeKey struct{ function, variable string }

// Chain is the per-State def-use cache. It is not safe for concurrent use
// (spec.md §5: tabulation strategies other than meta.Naive's sum are
// single-threaded).
type Chain struct {
	st     *state.State
	scopes map[scopeKey][]state.FactID
}

// New creates an empty Chain over st.
func New(st *state.State) *Chain {
	return &Chain{st: st, scopes: make(map[scopeKey][]state.FactID)}
}

// CountAll reports the number of cached facts (meta.Sparse's reporting hook).
func (c *Chain) CountAll() int {
	n := 0
	for _, ids := range c.scopes {
		n += len(ids)
	}

	return n
}

// ForceRemoveIfOutdated drops the cached scope for (function, variable) if
// it no longer covers pc — i.e. variable was redefined at or before pc since
// the scope was cached. Called by the sparse normal flow function before
// re-querying a destination register it just defined (spec.md §4.2's
// sparse normal flow: "append_lhs" forces a rescope on the instruction's own
// destination).
func (c *Chain) ForceRemoveIfOutdated(fn *ir.Function, variable string, pc int) {
	key := scopeKey{fn.Name, variable}
	ids, ok := c.scopes[key]
	if !ok {
		return
	}
	for _, id := range ids {
		f := c.st.Fact(id)
		if pc >= f.PC {
			delete(c.scopes, key)

			return
		}
	}
}

// Cache precomputes and caches the scope for variable in fn, starting from
// its definition(s), without querying pc coverage.
func (c *Chain) Cache(br *blockresolver.Resolver, fn *ir.Function, variable string) error {
	key := scopeKey{fn.Name, variable}
	if _, ok := c.scopes[key]; ok {
		return nil
	}

	ids, err := c.buildScope(br, fn, variable)
	if err != nil {
		return err
	}
	c.scopes[key] = ids

	return nil
}

// DemandInclusive returns the facts for variable in fn covering pc (each
// interval is half-open: PC <= pc < NextPC), caching
// the intra-function scope on first demand (spec.md §4.6).
func (c *Chain) DemandInclusive(br *blockresolver.Resolver, fn *ir.Function, variable string, pc int) ([]state.FactID, error) {
	if err := c.Cache(br, fn, variable); err != nil {
		return nil, err
	}

	var out []state.FactID
	for _, id := range c.scopes[scopeKey{fn.Name, variable}] {
		f := c.st.Fact(id)
		if pc >= f.PC && pc < f.NextPC {
			out = append(out, id)
		}
	}

	return out, nil
}

// buildScope finds every pc at which variable is (re)defined (or, if never
// redefined, treats it as live from function entry — the parameter/global
// case) and, for each, walks forward until the next redefinition or the end
// of the function, caching one interval fact per run.
func (c *Chain) buildScope(br *blockresolver.Resolver, fn *ir.Function, variable string) ([]state.FactID, error) {
	defs := definitionPoints(fn, variable)
	if len(defs) == 0 {
		defs = []int{0}
	}

	v, ok := c.st.GetVar(fn.Name, variable)
	if !ok {
		if base, offset, isMem := ir.IsMemoryCell(variable); isMem && base == "mem" {
			v = c.st.AddMemoryVar(fn.Name, offset)
		} else {
			return nil, errs.New(errs.KindInvariant, "defuse.buildScope", fmt.Errorf("function %s: variable %s not registered", fn.Name, variable))
		}
	}
	track, _ := c.st.GetTrack(fn.Name, variable)

	var ids []state.FactID
	for _, d := range defs {
		ends, err := scopeEnds(br, fn, variable, d)
		if err != nil {
			return nil, err
		}
		for _, end := range ends {
			id := c.st.CacheFact(fn.Name, state.Fact{
				BelongsToVar: v.Name,
				Function:     fn.Name,
				PC:           d,
				NextPC:       end,
				Track:        track,
				IsTaut:       v.IsTaut,
				IsGlobal:     v.IsGlobal,
				IsMemory:     v.IsMemory,
				MemoryOffset: v.MemoryOffset,
			})
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// definitionPoints returns every pc at which variable is (re)defined.
func definitionPoints(fn *ir.Function, variable string) []int {
	var out []int
	for pc, instr := range fn.Instructions {
		if definesVariable(instr, variable) {
			out = append(out, pc)
		}
	}

	return out
}

func definesVariable(instr ir.Instruction, variable string) bool {
	switch n := instr.(type) {
	case ir.Const:
		return n.Dest == variable
	case ir.Assign:
		return n.Dest == variable
	case ir.Unop:
		return n.Dest == variable
	case ir.BinOp:
		return n.Dest == variable
	case ir.Phi:
		return n.Dest == variable
	case ir.Load:
		return n.Dest == variable
	case ir.Unknown:
		return n.Dest == variable
	case ir.Call:
		for _, d := range n.Dests {
			if d == variable {
				return true
			}
		}
	case ir.CallIndirect:
		for _, d := range n.Dests {
			if d == variable {
				return true
			}
		}
	case ir.Store:
		return ir.MemoryCellName(n.Offset) == variable
	}

	return false
}

// scopeEnds walks forward from d+1, following every reachable control-flow
// successor (Jump/Conditional/Table, resolved through br) and joining at
// confluences: a pc already visited down one path is never re-walked down
// another, so a function with a loop or a diamond terminates and each
// reachable exit point is reported at most once. An exit point is the next
// redefinition of variable, a Return, or the end of the instruction stream. An
// unresolved branch target is a hard error (spec.md §4.8), matching
// flow/dense's Normal.
func scopeEnds(br *blockresolver.Resolver, fn *ir.Function, variable string, d int) ([]int, error) {
	visited := make(map[int]bool)
	seenEnds := make(map[int]bool)
	var ends []int

	var walk func(pc int) error
	walk = func(pc int) error {
		if pc >= len(fn.Instructions) {
			if !seenEnds[len(fn.Instructions)] {
				seenEnds[len(fn.Instructions)] = true
				ends = append(ends, len(fn.Instructions))
			}

			return nil
		}
		if visited[pc] {
			return nil
		}
		visited[pc] = true

		instr := fn.Instructions[pc]
		if definesVariable(instr, variable) {
			if !seenEnds[pc] {
				seenEnds[pc] = true
				ends = append(ends, pc)
			}

			return nil
		}

		switch n := instr.(type) {
		case ir.Jump:
			target, err := br.Resolve(fn.Name, n.Target)
			if err != nil {
				return err
			}

			return walk(target)

		case ir.Conditional:
			for _, label := range n.Targets {
				target, err := br.Resolve(fn.Name, label)
				if err != nil {
					return err
				}
				if err := walk(target); err != nil {
					return err
				}
			}

			return nil

		case ir.Table:
			for _, label := range n.Targets {
				target, err := br.Resolve(fn.Name, label)
				if err != nil {
					return err
				}
				if err := walk(target); err != nil {
					return err
				}
			}

			return nil

		case ir.Return:
			if !seenEnds[pc] {
				seenEnds[pc] = true
				ends = append(ends, pc)
			}

			return nil

		default:
			return walk(pc + 1)
		}
	}

	if err := walk(d + 1); err != nil {
		return nil, err
	}

	return ends, nil
}
