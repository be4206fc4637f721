// Package tabulation selects among the four tabulation strategies
// (spec.md §4.3–§4.5) at runtime — a supplement to the distilled spec, which
// leaves the choice an open question (spec.md §9): "the source contains both
// original and fast tabulation variants plus a sparse variant... an
// implementation should expose all three behind a strategy selector."
package tabulation

import (
	"fmt"

	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation/classical"
	"github.com/kperifds/wasmtaint/tabulation/fast"
	"github.com/kperifds/wasmtaint/tabulation/naive"
	"github.com/kperifds/wasmtaint/tabulation/sparse"
)

// Strategy names one of the four tabulation constructions.
type Strategy int

const (
	Naive Strategy = iota
	Classical
	Fast
	Sparse
)

func (s Strategy) String() string {
	switch s {
	case Naive:
		return "naive"
	case Classical:
		return "classical"
	case Fast:
		return "fast"
	case Sparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name from the CLI (spec.md §9's supplement).
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "naive":
		return Naive, nil
	case "classical":
		return Classical, nil
	case "fast":
		return Fast, nil
	case "sparse":
		return Sparse, nil
	default:
		return 0, errs.New(errs.KindRequest, "tabulation.ParseStrategy", fmt.Errorf("unknown strategy %q", name))
	}
}

// Run builds the exploded supergraph for prog into st and g using strategy.
// function and pc are ignored by Naive, which tabulates every function
// eagerly.
func Run(strategy Strategy, st *state.State, g *graph.Graph, prog *ir.Program, function string, pc int) error {
	switch strategy {
	case Naive:
		return naive.Run(st, g, prog)
	case Classical:
		return classical.Run(st, g, prog, function, pc)
	case Fast:
		return fast.Run(st, g, prog, function, pc)
	case Sparse:
		return sparse.Run(st, g, prog, function, pc)
	default:
		return errs.New(errs.KindRequest, "tabulation.Run", fmt.Errorf("unknown strategy %v", strategy))
	}
}
