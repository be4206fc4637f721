package tabulation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/graph"
	"github.com/kperifds/wasmtaint/ir"
	"github.com/kperifds/wasmtaint/state"
	"github.com/kperifds/wasmtaint/tabulation"
)

func TestParseStrategyRoundTrip(t *testing.T) {
	for _, name := range []string{"naive", "classical", "fast", "sparse"} {
		s, err := tabulation.ParseStrategy(name)
		require.NoError(t, err)
		require.Equal(t, name, s.String())
	}

	_, err := tabulation.ParseStrategy("bogus")
	require.Error(t, err)
}

func TestRunDispatchesEveryStrategy(t *testing.T) {
	src := `
define main (param %0) (result 1) (define %0 %1) {
	%1 = %0
	RETURN %1;
};
`
	prog, err := ir.Parse(src)
	require.NoError(t, err)

	for _, s := range []tabulation.Strategy{tabulation.Naive, tabulation.Classical, tabulation.Fast, tabulation.Sparse} {
		st := state.New()
		g := graph.New()
		require.NoError(t, tabulation.Run(s, st, g, prog, "main", 0), "strategy %s", s)
		require.NotZero(t, g.EdgeCount(), "strategy %s produced no edges", s)
	}
}
