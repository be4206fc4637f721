// Package blockresolver builds the per-function {label -> pc} table
// consulted by branch instructions (spec.md §4.2, §9's "Block resolver"
// design note).
package blockresolver

import (
	"fmt"

	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/ir"
)

// Resolver maps a block label to the pc of its Block instruction, for one
// function.
type Resolver struct {
	pcByLabel map[string]int
}

// Build scans fn's instructions once for ir.Block markers.
func Build(fn *ir.Function) *Resolver {
	r := &Resolver{pcByLabel: make(map[string]int)}
	for pc, instr := range fn.Instructions {
		if b, ok := instr.(ir.Block); ok {
			r.pcByLabel[b.Label] = pc
		}
	}

	return r
}

// Resolve returns the pc of label, or a KindInvariant error if unresolved
// (spec.md §4.8: "unreachable block is a hard error").
func (r *Resolver) Resolve(function, label string) (int, error) {
	pc, ok := r.pcByLabel[label]
	if !ok {
		return 0, errs.New(errs.KindInvariant, "blockresolver.Resolve", fmt.Errorf("function %s: unresolved block label %q", function, label))
	}

	return pc, nil
}

// TryResolve returns the pc of label and true, or false if unresolved. Every
// branch instruction (Jump/Conditional/Table) treats an unresolved target as
// a hard error via Resolve instead (spec.md §4.8); spec.md §7's silent-skip
// carve-out is scoped to absent blocks in Block(_) bodies, which this IR
// never resolves (ir.Block carries no successor). Kept as a low-level
// soft-lookup primitive for callers that want to probe without erroring.
func (r *Resolver) TryResolve(label string) (int, bool) {
	pc, ok := r.pcByLabel[label]

	return pc, ok
}
