package dense

import (
	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

// Initial seeds the path/normal edges for fn entered at pc (spec.md §4.2):
// it skips forward over instructions with no register effect (Block, Jump)
// until a taintable instruction is reached, then returns a self-fact for
// taut plus one fact for every register that instruction defines, each
// linked from the taut fact at pc by a Normal edge. The tabulator turns
// each returned id into a path edge (taut_entry, id).
func Initial(st *state.State, g *graph.Graph, br *blockresolver.Resolver, fn *ir.Function, pc int) ([]state.FactID, error) {
	taut, err := st.GetTaut(fn.Name)
	if err != nil {
		return nil, err
	}

	cur := pc
	for cur < len(fn.Instructions) {
		switch n := fn.Instructions[cur].(type) {
		case ir.Block:
			cur++

			continue
		case ir.Jump:
			target, err := br.Resolve(fn.Name, n.Target)
			if err != nil {
				return nil, err
			}
			cur = target

			continue
		}

		break
	}

	tautAt, err := internFact(st, fn, cur, cur, ir.TautName)
	if err != nil {
		return nil, err
	}
	g.AddNormal(taut, tautAt, false)

	out := []state.FactID{tautAt}

	if cur < len(fn.Instructions) {
		for _, dest := range definedRegisters(fn.Instructions[cur]) {
			// The defining instruction at cur has already produced dest's
			// value; dispatch continues at cur+1, not back into cur itself
			// (which would read dest as the instruction's own kill target).
			id, err := internFact(st, fn, cur, cur+1, dest)
			if err != nil {
				return nil, err
			}
			g.AddNormal(taut, id, false)
			out = append(out, id)
		}
	}

	return out, nil
}

// definedRegisters lists the registers an instruction defines, in source
// order (spec.md §4.2's Initial flow: "a path from taut to every variable
// defined by that instruction").
func definedRegisters(instr ir.Instruction) []string {
	switch n := instr.(type) {
	case ir.Const:
		return []string{n.Dest}
	case ir.Assign:
		return []string{n.Dest}
	case ir.Unop:
		return []string{n.Dest}
	case ir.BinOp:
		return []string{n.Dest}
	case ir.Phi:
		return []string{n.Dest}
	case ir.Load:
		return []string{n.Dest}
	case ir.Unknown:
		return []string{n.Dest}
	case ir.Call:
		return n.Dests
	case ir.CallIndirect:
		return n.Dests
	default:
		return nil
	}
}
