// Package bindgen is the glue body synthesizer: it walks the canonical-ABI
// instruction stream idl.Walk produces for one function and emits the
// wasm bytecode of the corresponding import- or export-glue body,
// translating between the embedded JS engine's value representation and
// the canonical ABI's flat memory representation one instruction at a
// time.
package bindgen

import (
	"github.com/Asraelite/witx-bindgen/internal/arena"
	"github.com/Asraelite/witx-bindgen/internal/wasmenc"
)

// Two-memory invariant: memory 0 is always the embedded engine's own
// linear memory (aliased from the spidermonkey instance), memory 1 is
// always this glue module's own memory, backing the data-segment arena.
const (
	EngineMemory uint32 = 0
	GlueMemory   uint32 = 1
)

// Runtime is the shared view into generator state that both the glue body
// synthesizer and the initializer synthesizer need: how to find an
// engine-export's function index, where the return-pointer scratch global
// lives, the data-segment arena, and the running high-water mark of how
// many bytes the return-pointer scratch area needs.
type Runtime struct {
	// SMWFunc resolves an engine export descriptor name (see
	// enginelink.Exports) to its function index in the emitted module.
	SMWFunc func(name string) uint32

	Arena *arena.Arena

	// RetPtrGlobal is the index of the mutable i32 global that always
	// points at a scratch area of engine memory used to receive
	// out-of-band results from engine intrinsics like
	// SMW_string_canon_lower (which writes a (ptr, len) pair there).
	RetPtrGlobal uint32

	retPtrAreaSize uint32
}

// NewRuntime constructs a Runtime. retPtrGlobal is the index of the
// pre-declared scratch-pointer global.
func NewRuntime(smwFunc func(string) uint32, a *arena.Arena, retPtrGlobal uint32) *Runtime {
	return &Runtime{SMWFunc: smwFunc, Arena: a, RetPtrGlobal: retPtrGlobal}
}

// BumpRetPtrAreaSize records that some instruction needs the scratch area
// to hold at least n bytes, growing the running requirement monotonically.
func (r *Runtime) BumpRetPtrAreaSize(n uint32) {
	if n > r.retPtrAreaSize {
		r.retPtrAreaSize = n
	}
}

// RetPtrAreaSize returns the largest requirement any instruction recorded.
func (r *Runtime) RetPtrAreaSize() uint32 {
	return r.retPtrAreaSize
}

// MallocStaticSize emits `(local.set result (call $SMW_malloc (i32.const size)))`.
func (r *Runtime) MallocStaticSize(f *wasmenc.Func, size uint32, result uint32) {
	f.I32Const(int32(size)).Call(r.SMWFunc("SMW_malloc")).LocalSet(result)
}

// MallocDynamicSize emits `(local.set result (call $SMW_malloc (local.get sizeLocal)))`.
func (r *Runtime) MallocDynamicSize(f *wasmenc.Func, sizeLocal, result uint32) {
	f.LocalGet(sizeLocal).Call(r.SMWFunc("SMW_malloc")).LocalSet(result)
}

// CopyToEngine emits a cross-memory copy from this glue module's own
// memory (the data-segment arena, at fromOffset) into the engine's memory
// (at the address held in toLocal), length bytes long.
func (r *Runtime) CopyToEngine(f *wasmenc.Func, fromOffset uint32, toLocal uint32, length uint32) {
	f.LocalGet(toLocal).I32Const(int32(fromOffset)).I32Const(int32(length)).
		MemoryCopy(EngineMemory, GlueMemory)
}

// ClearJSOperands emits a call to SMW_clear_operands.
func (r *Runtime) ClearJSOperands(f *wasmenc.Func) {
	f.Call(r.SMWFunc("SMW_clear_operands"))
}
