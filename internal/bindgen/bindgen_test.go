package bindgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Asraelite/witx-bindgen/internal/arena"
	"github.com/Asraelite/witx-bindgen/internal/enginelink"
	"github.com/Asraelite/witx-bindgen/internal/idl"
)

func smwFunc(t *testing.T) func(string) uint32 {
	t.Helper()
	return func(name string) uint32 {
		idx, err := enginelink.ExportIndex(name)
		require.NoError(t, err)
		return idx
	}
}

func newTestRuntime(t *testing.T) *Runtime {
	return NewRuntime(smwFunc(t), arena.New(), 0)
}

func TestGetArgImportYieldsJSOperand(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 1, nil)
	require.NoError(t, b.Emit([]idl.Instr{{Kind: idl.InstrGetArg, Nth: 0}}))
	require.Equal(t, Operand{OperandJS, 0}, b.stack[0])
}

func TestGetArgExportYieldsWasmOperand(t *testing.T) {
	b := New(newTestRuntime(t), idl.Export, 1, nil)
	require.NoError(t, b.Emit([]idl.Instr{{Kind: idl.InstrGetArg, Nth: 0}}))
	require.Equal(t, Operand{OperandWasm, 0}, b.stack[0])
}

func TestToWasmU32ConvertsJSToLocal(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 1, nil)
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrGetArg, Nth: 0},
		{Kind: idl.InstrToWasmU32},
	}))
	require.Equal(t, OperandWasm, b.stack[0].Kind)
	require.Equal(t, uint32(3), b.stack[0].Idx, "first scratch local after 3 JSNative params")
	require.Len(t, b.localTypes, 1)
}

func TestToJSU32ConvertsLocalToJS(t *testing.T) {
	b := New(newTestRuntime(t), idl.Export, 1, nil)
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrGetArg, Nth: 0},
		{Kind: idl.InstrToJSU32},
	}))
	require.Equal(t, Operand{OperandJS, 0}, b.stack[0])
}

func TestCallWasmResolvesImportAndPushesResult(t *testing.T) {
	resolved := false
	resolve := func(module, name string) (uint32, error) {
		resolved = true
		require.Equal(t, "host", module)
		require.Equal(t, "add_one", name)
		return 42, nil
	}
	b := New(newTestRuntime(t), idl.Import, 1, resolve)
	amtOne := 4
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrGetArg, Nth: 0},
		{Kind: idl.InstrToWasmU32},
		{
			Kind:       idl.InstrCallWasm,
			WasmModule: "host",
			WasmName:   "add_one",
			WasmParams: []idl.Type{idl.U32()},
			WasmResult: resultPtr(idl.U32()),
		},
	}))
	require.True(t, resolved)
	require.Equal(t, OperandWasm, b.stack[0].Kind)
	_ = amtOne
}

func resultPtr(t idl.Type) *idl.Type { return &t }

func TestCallWasmPopsBothOperandsOfAListParam(t *testing.T) {
	resolve := func(module, name string) (uint32, error) { return 7, nil }
	b := New(newTestRuntime(t), idl.Import, 1, resolve)
	body := []idl.Instr{
		{Kind: idl.InstrIterElem},
		{Kind: idl.InstrToWasmU32},
		{Kind: idl.InstrIterBasePointer},
		{Kind: idl.InstrI32Store, Offset: 0},
	}
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrGetArg, Nth: 0},
		{Kind: idl.InstrListLower, Element: idl.U32(), Body: body},
		{
			Kind:       idl.InstrCallWasm,
			WasmModule: "host",
			WasmName:   "h",
			WasmParams: []idl.Type{idl.List(idl.U32())},
		},
	}))
	// CallWasm must consume both the ptr and length operands ListLower
	// pushed, leaving nothing stray on the stack.
	require.Empty(t, b.stack)
}

func TestCallWasmWithoutResolverErrors(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 1, nil)
	err := b.Emit([]idl.Instr{
		{Kind: idl.InstrGetArg, Nth: 0},
		{Kind: idl.InstrToWasmU32},
		{Kind: idl.InstrCallWasm, WasmModule: "host", WasmName: "f", WasmParams: []idl.Type{idl.U32()}},
	})
	require.Error(t, err)
}

func TestListLowerSplicesBodyInsideLoop(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 1, nil)
	body := []idl.Instr{
		{Kind: idl.InstrIterElem},
		{Kind: idl.InstrToWasmU32},
		{Kind: idl.InstrIterBasePointer},
		{Kind: idl.InstrI32Store, Offset: 0},
	}
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrGetArg, Nth: 0},
		{Kind: idl.InstrListLower, Element: idl.U32(), Body: body},
	}))
	// ListLower leaves (ptr, length) wasm operands on the stack.
	require.Len(t, b.stack, 2)
	require.Equal(t, OperandWasm, b.stack[0].Kind)
	require.Equal(t, OperandWasm, b.stack[1].Kind)
	require.Empty(t, b.iterElemStack)
	require.Empty(t, b.iterBasePointerStack)
}

func TestListLiftSplicesBodyInsideLoop(t *testing.T) {
	b := New(newTestRuntime(t), idl.Export, 0, nil)
	body := []idl.Instr{
		{Kind: idl.InstrIterBasePointer},
		{Kind: idl.InstrI32Load, Offset: 0},
		{Kind: idl.InstrToJSU32},
	}
	// Simulate a (ptr, length) wasm pair already on the stack, as
	// InstrListLift expects from a preceding CallWasm/GetArg pair.
	b.push(OperandWasm, 0)
	b.push(OperandWasm, 1)
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrListLift, Element: idl.U32(), Body: body, HasFree: true},
	}))
	require.Len(t, b.stack, 1)
	require.Equal(t, OperandJS, b.stack[0].Kind)
}

func TestCallInterfaceMallocsAndCopiesFunctionName(t *testing.T) {
	rt := newTestRuntime(t)
	b := New(rt, idl.Export, 1, nil)
	fn := idl.Function{Name: "greet", Params: nil, Results: []idl.Param{{Name: "r", Type: idl.U32()}}}
	require.NoError(t, b.Emit([]idl.Instr{
		{Kind: idl.InstrCallInterface, CallFunc: &fn},
	}))
	require.Equal(t, "greet", string(rt.Arena.Bytes()))
	require.Len(t, b.stack, 1)
	require.Equal(t, OperandJS, b.stack[0].Kind)
}

func TestReturnImportPushesReturnValuesThenTrue(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 0, nil)
	b.push(OperandJS, 0)
	require.NoError(t, b.Emit([]idl.Instr{{Kind: idl.InstrReturn, Amt: 1}}))
	require.Empty(t, b.stack)
	f := b.Finish()
	bytes := f.Bytes()
	require.NotEmpty(t, bytes)
}

func TestReturnExportReturnsWasmLocals(t *testing.T) {
	b := New(newTestRuntime(t), idl.Export, 1, nil)
	b.push(OperandWasm, 0)
	require.NoError(t, b.Emit([]idl.Instr{{Kind: idl.InstrReturn, Amt: 1}}))
	require.Empty(t, b.stack)
}

func TestFinishPanicsWithUnclosedBlock(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 0, nil)
	b.pushBlock()
	require.Panics(t, func() { b.Finish() })
}

func TestPopFromEmptyStackPanics(t *testing.T) {
	b := New(newTestRuntime(t), idl.Import, 0, nil)
	require.Panics(t, func() { b.popWasm() })
}

func TestUnwrapWrongKindPanics(t *testing.T) {
	op := Operand{Kind: OperandJS, Idx: 0}
	require.Panics(t, func() { op.UnwrapWasm() })
}
