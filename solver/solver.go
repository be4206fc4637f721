// Package solver extracts taint results from a tabulated Graph/State pair
// (spec.md §4.7): a linear path-edge projection (IfdsSolver) for the
// classical/fast/sparse graphs, and a BFS variant for the naive graph.
package solver

import (
	"fmt"
	"strings"

	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/state"
)

// Request names a taint query: function and pc are always required,
// Variable only when extracting (as opposed to just building the graph).
type Request struct {
	Function string
	PC       int
	Variable *string
}

// Validate checks the request shape (spec.md §4.7: "variable... must begin
// with %").
func (r Request) Validate() error {
	if r.Variable != nil && !strings.HasPrefix(*r.Variable, "%") {
		return errs.New(errs.KindRequest, "solver.Request.Validate", fmt.Errorf("variable %q must begin with %%", *r.Variable))
	}

	return nil
}

// Taint is one reported tainted program point.
type Taint struct {
	Function string
	PC       int
	Variable string
}

// Solver extracts taints from a tabulated Graph/State.
type Solver interface {
	AllSinks(req Request) ([]Taint, error)
	SinksVar(req Request) (map[string]struct{}, error)
	IsTaint(req Request, resp Taint) (bool, error)
}

// IfdsSolver implements the linear path-edge projection (spec.md §4.7).
type IfdsSolver struct {
	St *state.State
	G  *graph.Graph
}

// AllSinks filters Path edges whose From fact's PC equals req.PC and whose
// To fact belongs to req.Function, projecting out To and dropping tauts.
func (s IfdsSolver) AllSinks(req Request) ([]Taint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out []Taint
	for _, e := range s.G.Edges() {
		if e.Kind != graph.Path {
			continue
		}
		from := s.St.Fact(e.From)
		if from.PC != req.PC {
			continue
		}
		to := s.St.Fact(e.To)
		if to.Function != req.Function || to.IsTaut {
			continue
		}
		out = append(out, Taint{Function: to.Function, PC: to.PC, Variable: to.BelongsToVar})
	}

	return out, nil
}

// SinksVar projects AllSinks to the set of distinct variable names.
func (s IfdsSolver) SinksVar(req Request) (map[string]struct{}, error) {
	sinks, err := s.AllSinks(req)
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(sinks))
	for _, t := range sinks {
		out[t.Variable] = struct{}{}
	}

	return out, nil
}

// IsTaint reports whether resp is among req's sinks.
func (s IfdsSolver) IsTaint(req Request, resp Taint) (bool, error) {
	sinks, err := s.AllSinks(req)
	if err != nil {
		return false, err
	}
	for _, t := range sinks {
		if t == resp {
			return true, nil
		}
	}

	return false, nil
}

// Bfs implements GraphReachability by breadth-first search over every edge
// kind, intended for use against the naive graph (spec.md §4.7).
type Bfs struct {
	St *state.State
	G  *graph.Graph
}

// AllSinks starting from the fact (req.Function, req.PC, *req.Variable),
// BFS every successor over any edge kind and report reached non-taut facts.
func (b Bfs) AllSinks(req Request) ([]Taint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Variable == nil {
		return nil, errs.New(errs.KindRequest, "solver.Bfs.AllSinks", fmt.Errorf("variable required for taint extraction"))
	}

	start, ok := b.findFact(req.Function, req.PC, *req.Variable)
	if !ok {
		return nil, nil
	}

	visited := map[state.FactID]struct{}{start: {}}
	queue := []state.FactID{start}

	var out []Taint
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, kind := range []graph.Kind{graph.Normal, graph.Call, graph.Return, graph.CallToReturn, graph.Path, graph.Summary} {
			for _, e := range b.G.EdgesFrom(kind, cur) {
				if _, seen := visited[e.To]; seen {
					continue
				}
				visited[e.To] = struct{}{}
				queue = append(queue, e.To)

				f := b.St.Fact(e.To)
				if f.IsTaut {
					continue
				}
				out = append(out, Taint{Function: f.Function, PC: f.PC, Variable: f.BelongsToVar})
			}
		}
	}

	return out, nil
}

// SinksVar projects AllSinks to the set of distinct variable names.
func (b Bfs) SinksVar(req Request) (map[string]struct{}, error) {
	sinks, err := b.AllSinks(req)
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(sinks))
	for _, t := range sinks {
		out[t.Variable] = struct{}{}
	}

	return out, nil
}

// IsTaint reports whether resp is reachable from req.
func (b Bfs) IsTaint(req Request, resp Taint) (bool, error) {
	sinks, err := b.AllSinks(req)
	if err != nil {
		return false, err
	}
	for _, t := range sinks {
		if t == resp {
			return true, nil
		}
	}

	return false, nil
}

func (b Bfs) findFact(function string, pc int, variable string) (state.FactID, bool) {
	for _, id := range b.St.GetFactsAt(function, pc) {
		f := b.St.Fact(id)
		if f.BelongsToVar == variable {
			return id, true
		}
	}

	return 0, false
}
