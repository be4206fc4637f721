// Command ide is the CLI front-end for the taint-analysis engine: it reads
// an IR program, tabulates it with the requested strategy, and prints the
// extracted taints together with a meta report as JSON.
//
// CLI argument parsing sits outside the engine's scope (spec.md §1), so
// this command uses only the standard library's flag package rather than a
// third-party CLI framework.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/meta"
	"github.com/kperifds/wasmtaint/solver"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation"
)

// Exit codes (spec.md §4.8's failure semantics, surfaced at the CLI boundary).
const (
	exitOK           = 0
	exitInvalidInput = 1
	exitSolverError  = 2
)

type report struct {
	Strategy string        `json:"strategy"`
	Taints   []solver.Taint `json:"taints"`
	Meta     meta.Meta     `json:"meta,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("ide", flag.ContinueOnError)
	fs.SetOutput(stderr)

	input := fs.String("input", "", "path to the IR source file")
	output := fs.String("output", "", "path to write the JSON report (default: stdout)")
	strategyName := fs.String("strategy", "classical", "tabulation strategy: naive, classical, fast, sparse")
	function := fs.String("function", "", "entry function name")
	pc := fs.Int("pc", 0, "entry pc within function")
	variable := fs.String("variable", "", "variable to extract taints for (must begin with %)")
	verbose := fs.Bool("verbose", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}

	level := slog.LevelWarn
	if *verbose || os.Getenv("IDE_LOG") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *input == "" {
		fmt.Fprintln(stderr, "ide: --input is required")

		return exitInvalidInput
	}
	if *function == "" {
		fmt.Fprintln(stderr, "ide: --function is required")

		return exitInvalidInput
	}

	src, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(stderr, "ide: reading %s: %v\n", *input, err)

		return exitInvalidInput
	}

	prog, err := ir.Parse(string(src))
	if err != nil {
		fmt.Fprintf(stderr, "ide: parsing %s: %v\n", *input, err)

		return exitInvalidInput
	}

	strategy, err := tabulation.ParseStrategy(*strategyName)
	if err != nil {
		fmt.Fprintf(stderr, "ide: %v\n", err)

		return exitInvalidInput
	}

	st := state.New()
	g := graph.New()

	logger.Debug("tabulating", "strategy", strategy.String(), "function", *function, "pc", *pc)

	if err := tabulation.Run(strategy, st, g, prog, *function, *pc); err != nil {
		fmt.Fprintf(stderr, "ide: tabulation failed: %v\n", err)

		return solverExitCode(err)
	}

	req := solver.Request{Function: *function, PC: *pc}
	if *variable != "" {
		req.Variable = variable
	}

	var taints []solver.Taint
	if strategy == tabulation.Naive {
		taints, err = (solver.Bfs{St: st, G: g}).AllSinks(req)
	} else {
		taints, err = (solver.IfdsSolver{St: st, G: g}).AllSinks(req)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ide: solver failed: %v\n", err)

		return solverExitCode(err)
	}

	m, err := meta.Fast(context.Background(), prog, g, st)
	if err != nil {
		fmt.Fprintf(stderr, "ide: meta failed: %v\n", err)

		return solverExitCode(err)
	}

	rep := report{Strategy: strategy.String(), Taints: taints, Meta: m}

	out := stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(stderr, "ide: creating %s: %v\n", *output, err)

			return exitInvalidInput
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(stderr, "ide: encoding report: %v\n", err)

		return exitSolverError
	}

	return exitOK
}

func solverExitCode(err error) int {
	if errs.Is(err, errs.KindParse) || errs.Is(err, errs.KindShape) {
		return exitInvalidInput
	}

	return exitSolverError
}
