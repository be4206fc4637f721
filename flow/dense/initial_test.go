package dense_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/flow/dense"
	"github.com/kperifds/wasmtaint/ir"
)

func TestInitialSkipsBlockAndSeedsDefinedRegisters(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Block{Label: "entry"},
			ir.Const{Dest: "%0", Value: 1},
		},
	}
	st, g, br := setup(t, fn)

	out, err := dense.Initial(st, g, br, fn, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// out[0] is the taut self-fact, dispatched again at the Const
	// instruction (pc 1) since taut is never killed by it.
	taut := st.Fact(out[0])
	require.True(t, taut.IsTaut)
	require.Equal(t, 1, taut.PC)
	require.Equal(t, 1, taut.NextPC)

	// out[1] is %0, already produced by the Const at pc 1, so dispatch
	// continues at pc 2 rather than re-reading the Const as its own kill.
	v0 := st.Fact(out[1])
	require.Equal(t, "%0", v0.BelongsToVar)
	require.Equal(t, 1, v0.PC)
	require.Equal(t, 2, v0.NextPC)
}

func TestInitialWithNoTaintableInstructionSeedsTautOnly(t *testing.T) {
	fn := &ir.Function{
		Name:        "f",
		Definitions: []string{"%0"},
		Instructions: []ir.Instruction{
			ir.Block{Label: "entry"},
		},
	}
	st, g, br := setup(t, fn)

	out, err := dense.Initial(st, g, br, fn, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, st.Fact(out[0]).IsTaut)
}
