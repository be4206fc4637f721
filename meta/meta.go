// Package meta reports the size statistics spec.md §9 carries over from
// original_source/ifds/src/meta.rs: an estimate of the exploded graph's
// size, the number of path edges actually materialized, and (for the sparse
// strategy) how many def-use facts were cached. Meta is JSON-serializable so
// cmd/ide can emit it as a report alongside the taint results.
package meta

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kperifds/wasmtaint/defuse"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
)

// Meta is the JSON-serializable statistics record.
type Meta struct {
	EstimatedExplodedGraphSize *uint64 `json:"estimated_exploded_graph_size,omitempty"`
	NumberPathEdges            *uint64 `json:"number_path_edges,omitempty"`
	SparseRelevantInstructions *uint64 `json:"sparse_relevant_instructions,omitempty"`
}

// Naive estimates Θ(Σ|defs(f)|·|insns(f)|) without constructing the graph,
// summing per-function products concurrently via errgroup — the one point
// spec.md §5 permits parallelism, mirroring the original's rayon par_iter.
func Naive(ctx context.Context, program *ir.Program) (Meta, error) {
	sums := make([]uint64, len(program.Functions))

	g, _ := errgroup.WithContext(ctx)
	for i := range program.Functions {
		i := i
		g.Go(func() error {
			fn := &program.Functions[i]
			sums[i] = uint64(fn.NumDefinitions()) * uint64(fn.NumInstructions())

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Meta{}, err
	}

	var total uint64
	for _, s := range sums {
		total += s
	}

	return Meta{EstimatedExplodedGraphSize: &total}, nil
}

// Fast extends Naive with the number of path edges materialized in g.
func Fast(ctx context.Context, program *ir.Program, g *graph.Graph, st *state.State) (Meta, error) {
	m, err := Naive(ctx, program)
	if err != nil {
		return Meta{}, err
	}

	var numPath uint64
	for _, e := range g.Edges() {
		if e.Kind == graph.Path {
			numPath++
		}
	}
	m.NumberPathEdges = &numPath

	return m, nil
}

// Sparse extends Fast with the def-use chain's cached fact count.
func Sparse(ctx context.Context, program *ir.Program, g *graph.Graph, st *state.State, dc *defuse.Chain) (Meta, error) {
	m, err := Fast(ctx, program, g, st)
	if err != nil {
		return Meta{}, err
	}

	n := uint64(dc.CountAll())
	m.SparseRelevantInstructions = &n

	return m, nil
}
