package wasmenc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Asraelite/witx-bindgen/api"
)

func TestFuncBytesAppendsEnd(t *testing.T) {
	f := NewFunc(nil).LocalGet(0)
	got := f.Bytes()
	require.Equal(t, byte(opEnd), got[len(got)-1])
}

func TestFuncLocalsGroupedIntoRuns(t *testing.T) {
	f := NewFunc([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI64})
	got := f.encodeLocals()
	// 2 runs: (2 x i32), (1 x i64)
	require.Equal(t, []byte{0x02, 0x02, api.ValueTypeI32, 0x01, api.ValueTypeI64}, got)
}

func TestTableGrowEmitsMiscPrefix(t *testing.T) {
	f := NewFunc(nil).TableGrow(0)
	require.Equal(t, []byte{miscPrefix, miscTableGrow, 0x00}, f.code)
}

func TestI32LoadEmitsMemArg(t *testing.T) {
	f := NewFunc(nil).I32Load(MemArg{Align: 2, Offset: 8})
	require.Equal(t, []byte{opI32Load, 0x02, 0x08}, f.code)
}

func TestBlockNestingEmitsMatchingEnds(t *testing.T) {
	f := NewFunc(nil).
		Block(BlockVoid).
		Unreachable().
		End()
	got := f.Bytes()
	require.Equal(t, []byte{0x00, opBlock, BlockVoid, opUnreachable, opEnd, opEnd}, got)
}
