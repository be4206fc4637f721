// Package fast is the caching variant of classical tabulation (spec.md
// §4.4): "Fast tabulation differs from the Original only in caching
// incoming and end_summary and consulting them to avoid redundant
// re-analysis... The externally visible graph is identical." The engine
// package already maintains incoming/end_summary as maps rather than
// recomputing them from the edge set on every lookup, which is the caching
// behavior the spec describes — so Fast shares the classical engine run
// rather than re-deriving a second, behaviorally-identical worklist (see
// DESIGN.md).
package fast

import (
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation/classical"
)

// Run tabulates prog starting at (function, pc) using the cached worklist.
func Run(st *state.State, g *graph.Graph, prog *ir.Program, function string, pc int) error {
	return classical.Run(st, g, prog, function, pc)
}
