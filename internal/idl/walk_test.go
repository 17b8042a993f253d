package idl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u32Fn(name string) Function {
	return Function{
		Name:    name,
		Params:  []Param{{Name: "x", Type: U32()}},
		Results: []Param{{Name: "ret", Type: U32()}},
	}
}

func TestWalkImportU32Shape(t *testing.T) {
	instrs, err := Walk("host", u32Fn("add_one"), Import)
	require.NoError(t, err)

	require.Equal(t, InstrGetArg, instrs[0].Kind)
	require.Equal(t, InstrToWasmU32, instrs[1].Kind)
	require.Equal(t, InstrCallWasm, instrs[2].Kind)
	require.Equal(t, "host", instrs[2].WasmModule)
	require.Equal(t, "add_one", instrs[2].WasmName)
	require.Equal(t, InstrToJSU32, instrs[3].Kind)
	require.Equal(t, InstrReturn, instrs[len(instrs)-1].Kind)
	require.Equal(t, 1, instrs[len(instrs)-1].Amt)
}

func TestWalkExportU32Shape(t *testing.T) {
	instrs, err := Walk("", u32Fn("add_one"), Export)
	require.NoError(t, err)

	require.Equal(t, InstrGetArg, instrs[0].Kind)
	require.Equal(t, InstrToJSU32, instrs[1].Kind)
	require.Equal(t, InstrCallInterface, instrs[2].Kind)
	require.Equal(t, InstrToWasmU32, instrs[3].Kind)
	require.Equal(t, InstrReturn, instrs[len(instrs)-1].Kind)
}

func TestWalkStringParamUsesListCanonLower(t *testing.T) {
	fn := Function{Name: "log", Params: []Param{{Name: "msg", Type: String()}}}
	instrs, err := Walk("host", fn, Import)
	require.NoError(t, err)
	require.Equal(t, InstrListCanonLower, instrs[1].Kind)
}

func TestWalkListU32UsesListLowerWithBody(t *testing.T) {
	fn := Function{Name: "sum", Params: []Param{{Name: "xs", Type: List(U32())}}}
	instrs, err := Walk("host", fn, Import)
	require.NoError(t, err)
	require.Equal(t, InstrListLower, instrs[1].Kind)
	require.Len(t, instrs[1].Body, 4)
}

func TestWalkUnsupportedTypeErrors(t *testing.T) {
	fn := Function{Name: "bad", Params: []Param{{Name: "x", Type: U8()}}}
	_, err := Walk("host", fn, Import)
	require.Error(t, err)
}

func TestWalkExportStringResultFlattensReturnAmt(t *testing.T) {
	fn := Function{Name: "g", Params: []Param{{Name: "s", Type: String()}}, Results: []Param{{Name: "r", Type: String()}}}
	instrs, err := Walk("", fn, Export)
	require.NoError(t, err)
	last := instrs[len(instrs)-1]
	require.Equal(t, InstrReturn, last.Kind)
	require.Equal(t, 2, last.Amt, "a string result flattens to (ptr, len), two wasm values")
}

func TestTypeSizeAlign(t *testing.T) {
	require.Equal(t, uint32(1), U8().Size())
	require.Equal(t, uint32(4), U32().Size())
	require.Equal(t, uint32(8), U64().Size())
	require.Equal(t, uint32(8), String().Size())
	require.Equal(t, uint32(8), List(U32()).Size())
}
