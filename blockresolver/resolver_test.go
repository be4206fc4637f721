package blockresolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kperifds/wasmtaint/blockresolver"
	"github.com/kperifds/wasmtaint/ir"
)

func TestBuildAndResolve(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Instructions: []ir.Instruction{
			ir.Const{Dest: "%0", Value: 1},
			ir.Block{Label: "loop"},
			ir.Jump{Target: "loop"},
		},
	}

	r := blockresolver.Build(fn)

	pc, err := r.Resolve("f", "loop")
	require.NoError(t, err)
	require.Equal(t, 1, pc)

	_, err = r.Resolve("f", "missing")
	require.Error(t, err)
}

func TestTryResolve(t *testing.T) {
	fn := &ir.Function{
		Instructions: []ir.Instruction{
			ir.Block{Label: "entry"},
		},
	}
	r := blockresolver.Build(fn)

	pc, ok := r.TryResolve("entry")
	require.True(t, ok)
	require.Equal(t, 0, pc)

	_, ok = r.TryResolve("nope")
	require.False(t, ok)
}
