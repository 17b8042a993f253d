// Package initgen synthesizes the single wizer.initialize bootstrap
// function every emitted glue module exports: it brings the embedded
// engine up, feeds it the user's script, and registers one JS module per
// IDL-imported module so the script's top-level imports resolve to our
// import glue.
package initgen

import (
	"github.com/Asraelite/witx-bindgen/api"
	"github.com/Asraelite/witx-bindgen/internal/bindgen"
	"github.com/Asraelite/witx-bindgen/internal/wasmenc"
)

// ImportFunc is one function an IDL-imported module exposes: which
// import-glue function index the bootstrap should register into the
// indirect function table (so the embedded JS can call back out) and how
// many arguments it takes.
type ImportFunc struct {
	Name          string
	GlueFuncIndex uint32
	NumArgs       uint32
}

// ImportModule groups the functions one IDL-imported module declares.
// Order here is preserved into the generated bootstrap and the table
// layout it produces - callers should pass a stable order (e.g. the
// order the module's interface declared them), not iterate a map.
type ImportModule struct {
	Name  string
	Funcs []ImportFunc
}

// the fixed local slots the bootstrap function uses; it takes no
// parameters, so these are also its absolute local indices.
const (
	localJSName       = 0
	localJS           = 1
	localModuleName   = 2
	localModuleBuilder = 3
	localTableSize    = 4
	localFuncName     = 5
	localRetPtr       = 6
)

// Build synthesizes the bootstrap function body. jsNameOffset/jsOffset
// are arena offsets (the caller must already have written the script's
// name and body into rt.Arena); tableIdx is the index of the indirect
// function table import-glue functions get registered into.
func Build(rt *bindgen.Runtime, tableIdx uint32, jsNameOffset, jsNameLen, jsOffset, jsLen uint32, modules []ImportModule) *wasmenc.Func {
	f := wasmenc.NewFunc([]api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
	})

	// The WASI reactor ABI requires _initialize to run before any other
	// export.
	f.Call(rt.SMWFunc("_initialize"))

	rt.MallocStaticSize(f, jsNameLen, localJSName)
	rt.MallocStaticSize(f, jsLen, localJS)
	rt.CopyToEngine(f, jsNameOffset, localJSName, jsNameLen)
	rt.CopyToEngine(f, jsOffset, localJS, jsLen)

	// Reserve the return-pointer scratch area and point the return
	// pointer global at it. RetPtrAreaSize is recorded in bytes, the
	// unit MallocStaticSize takes (see Runtime.BumpRetPtrAreaSize's
	// callers).
	rt.MallocStaticSize(f, rt.RetPtrAreaSize(), localRetPtr)
	f.LocalGet(localRetPtr).GlobalSet(rt.RetPtrGlobal)

	f.Call(rt.SMWFunc("SMW_initialize_engine"))

	for _, m := range modules {
		rt.MallocStaticSize(f, uint32(len(m.Name)), localModuleName)
		modOffset := rt.Arena.AddString(m.Name)
		rt.CopyToEngine(f, modOffset, localModuleName, uint32(len(m.Name)))

		f.LocalGet(localModuleName).I32Const(int32(len(m.Name))).
			Call(rt.SMWFunc("SMW_new_module_builder")).LocalSet(localModuleBuilder)

		// Grow the indirect function table to make room for this
		// module's functions, trapping if growth failed.
		f.RefNullFunc().I32Const(int32(len(m.Funcs))).TableGrow(tableIdx).
			LocalTee(localTableSize).I32Const(-1).I32Eq().
			If(wasmenc.BlockVoid).Unreachable().End()

		for i, fn := range m.Funcs {
			rt.MallocStaticSize(f, uint32(len(fn.Name)), localFuncName)
			fnOffset := rt.Arena.AddString(fn.Name)
			rt.CopyToEngine(f, fnOffset, localFuncName, uint32(len(fn.Name)))

			f.I32Const(int32(i)).LocalGet(localTableSize).I32Add().
				RefFunc(fn.GlueFuncIndex).TableSet(tableIdx)

			f.LocalGet(localModuleBuilder).LocalGet(localFuncName).
				I32Const(int32(len(fn.Name))).
				I32Const(int32(i)).LocalGet(localTableSize).I32Add().
				I32Const(int32(fn.NumArgs)).
				Call(rt.SMWFunc("SMW_module_builder_add_export"))
		}

		f.LocalGet(localModuleBuilder).Call(rt.SMWFunc("SMW_finish_module_builder"))
	}

	f.LocalGet(localJSName).LocalGet(localJS).I32Const(int32(jsLen)).
		Call(rt.SMWFunc("SMW_eval_module"))

	return f
}
