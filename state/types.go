// Package state owns the per-function fact cache described in spec.md §3 and
// §4.1: the canonical, append-only store of Facts (interned by stable
// FactID), the ordered Variable list per function (taut first), and the
// init_facts cache used to make State.InitFunction idempotent.
//
// Per spec.md §9's "Cyclic graph ownership" design note, Facts are modeled
// by a monotonic FactID into an append-only slice rather than being cloned
// inline into every edge (the original_source/ifds/src/icfg/graph.rs
// approach); graph.Edge carries FactID pairs that resolve back through this
// package.
package state

// FactID is a stable, monotonic identity for a Fact, valid for the lifetime
// of one State (spec.md §5: nothing is shared across analysis invocations).
type FactID uint64

// Fact is the central atom of the analysis: a variable at a program point,
// per spec.md §3.
type Fact struct {
	ID FactID

	// BelongsToVar is the variable name this fact concerns.
	BelongsToVar string
	// Function is the owning function's name.
	Function string
	// PC is the instruction index at which the fact is alive entering.
	PC int
	// NextPC is the instruction index after the associated transfer. Facts
	// produced by the dense flow functions have NextPC == PC+1 (or a branch
	// target); entry facts from InitFunction/AddStatement and the taut
	// self-fact seeded by Initial have NextPC == PC; sparse facts may have
	// NextPC far past PC, representing a half-open interval over which the
	// fact propagates unchanged (spec.md §4.5).
	NextPC int
	// Track is the column index of BelongsToVar within Function's ordered
	// definition list; an invariant of (Function, BelongsToVar). Track 0 is
	// always reserved for the taut variable.
	Track int

	IsTaut   bool
	IsGlobal bool
	IsMemory bool
	// MemoryOffset is meaningful only when IsMemory is true.
	MemoryOffset float64
}

// ApplyBound collapses a sparse interval fact to a point fact at its
// consumption pc (spec.md §4.5's apply_bound()): the returned Fact has
// PC == NextPC.
func (f Fact) ApplyBound() Fact {
	f.PC = f.NextPC

	return f
}

// Variable is a register tracked by the analysis for one function.
type Variable struct {
	Name     string
	Function string
	IsGlobal bool
	IsTaut   bool
	IsMemory bool
	// MemoryOffset is meaningful only when IsMemory is true.
	MemoryOffset float64
}

// FunctionMeta summarizes a registered function's shape.
type FunctionMeta struct {
	Name        string
	Definitions int
	ReturnCount int
}
