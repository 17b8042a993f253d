package bindgen

import (
	"fmt"

	"github.com/Asraelite/witx-bindgen/api"
	"github.com/Asraelite/witx-bindgen/internal/idl"
	"github.com/Asraelite/witx-bindgen/internal/wasmenc"
)

// OperandKind tags which side of the call boundary an Operand lives on.
type OperandKind int

const (
	// OperandWasm is the n'th wasm local.
	OperandWasm OperandKind = iota
	// OperandJS is the n'th JS value in the embedded engine's operand
	// vector (see the SMW_push_arg/SMW_fill_operands/SMW_call family).
	OperandJS
)

// Operand is a value living on Bindgen's operand stack: either a wasm
// local index or a slot in the engine's JS operand vector, depending on
// which side of the call boundary produced it.
//
// When generating import glue we lower arguments (JS -> wasm) and lift
// results (wasm -> JS), so GetArg yields JS operands and CallWasm yields
// wasm operands. Generating export glue inverts this.
type Operand struct {
	Kind OperandKind
	Idx  uint32
}

// UnwrapWasm panics if the operand isn't a wasm local.
func (o Operand) UnwrapWasm() uint32 {
	if o.Kind != OperandWasm {
		panic(fmt.Errorf("bindgen: UnwrapWasm on a JS operand"))
	}
	return o.Idx
}

// UnwrapJS panics if the operand isn't a JS operand-vector slot.
func (o Operand) UnwrapJS() uint32 {
	if o.Kind != OperandJS {
		panic(fmt.Errorf("bindgen: UnwrapJS on a wasm operand"))
	}
	return o.Idx
}

type freeEntry struct {
	Ptr, Len, Align uint32
}

// Bindgen walks one function's idl.Instr stream and synthesizes its glue
// body, one instruction at a time, exactly mirroring the original
// gen-spidermonkey Bindgen visitor's stack discipline: a single operand
// stack threaded through the whole walk, a stack of code-capturing blocks
// for list element bodies, and a to-free list drained at the end of each
// CallWasm.
type Bindgen struct {
	rt  *Runtime
	dir idl.Direction

	// ResolveImportFunc resolves a CallWasm instruction's (module, name)
	// to the function index of the real IDL-imported wasm function.
	// Only consulted in Import direction.
	ResolveImportFunc func(module, name string) (uint32, error)

	localTypes  []api.ValueType
	paramOffset uint32
	jsCount     uint32

	blocks []*wasmenc.Func

	stack []Operand

	iterElemStack        []uint32
	iterBasePointerStack []uint32

	toFree []freeEntry
}

// New starts a Bindgen for one function. For import glue, wasmParamCount
// is the number of JS arguments the glue receives (its own wasm parameters
// are always the JSNative calling convention's 3: cx, argc, vp); for
// export glue it is the IDL function's own lowered parameter count.
func New(rt *Runtime, dir idl.Direction, wasmParamCount uint32, resolveImportFunc func(module, name string) (uint32, error)) *Bindgen {
	b := &Bindgen{rt: rt, dir: dir, ResolveImportFunc: resolveImportFunc}

	switch dir {
	case idl.Import:
		b.paramOffset = 3
		b.jsCount = wasmParamCount
	case idl.Export:
		b.paramOffset = wasmParamCount
		b.jsCount = 0
	}

	b.blocks = []*wasmenc.Func{wasmenc.NewFunc(nil)}

	if dir == idl.Import && wasmParamCount > 0 {
		// Seed the engine's JS value operand vector with our arguments
		// before any GetArg can read them back out.
		b.blocks[0].LocalGet(1).LocalGet(2).Call(rt.SMWFunc("SMW_fill_operands"))
	}

	return b
}

// Emit walks instrs in order, dispatching each to its handler.
func (b *Bindgen) Emit(instrs []idl.Instr) error {
	for _, instr := range instrs {
		if err := b.emitOne(instr); err != nil {
			return err
		}
	}
	return nil
}

// Finish asserts every pushed block has been closed and returns the
// completed function body, ready for (*wasmenc.Func).Bytes().
func (b *Bindgen) Finish() *wasmenc.Func {
	if len(b.blocks) != 1 {
		panic(fmt.Errorf("bindgen: %d blocks still open at finish", len(b.blocks)-1))
	}
	f := wasmenc.NewFunc(b.localTypes)
	f.AppendCode(b.blocks[0].CodeBytes())
	return f
}

func (b *Bindgen) cur() *wasmenc.Func { return b.blocks[len(b.blocks)-1] }

func (b *Bindgen) pushBlock() { b.blocks = append(b.blocks, wasmenc.NewFunc(nil)) }

func (b *Bindgen) popBlockCode() []byte {
	n := len(b.blocks)
	code := b.blocks[n-1].CodeBytes()
	b.blocks = b.blocks[:n-1]
	return code
}

// runBlock captures a nested per-element body (e.g. ListLower/ListLift's
// Body) into its own block, running it against the same operand stack,
// and returns the resulting code bytes. This mirrors push_block/emit
// body/pop_block/finish_block in the original visitor, collapsed into
// one call since our instruction stream is already fully flattened.
func (b *Bindgen) runBlock(body []idl.Instr) ([]byte, error) {
	b.pushBlock()
	if err := b.Emit(body); err != nil {
		return nil, err
	}
	return b.popBlockCode(), nil
}

func (b *Bindgen) push(kind OperandKind, idx uint32) { b.stack = append(b.stack, Operand{kind, idx}) }

func (b *Bindgen) pop() Operand {
	n := len(b.stack)
	if n == 0 {
		panic(fmt.Errorf("bindgen: pop from empty operand stack"))
	}
	op := b.stack[n-1]
	b.stack = b.stack[:n-1]
	return op
}

func (b *Bindgen) popWasm() uint32 { return b.pop().UnwrapWasm() }
func (b *Bindgen) popJS() uint32   { return b.pop().UnwrapJS() }

func (b *Bindgen) nextJS() uint32 {
	js := b.jsCount
	b.jsCount++
	return js
}

// newLocal declares a fresh wasm local of type t and returns its index.
func (b *Bindgen) newLocal(t api.ValueType) uint32 {
	idx := b.paramOffset + uint32(len(b.localTypes))
	b.localTypes = append(b.localTypes, t)
	return idx
}

func (b *Bindgen) popIterElem() uint32 {
	n := len(b.iterElemStack)
	v := b.iterElemStack[n-1]
	b.iterElemStack = b.iterElemStack[:n-1]
	return v
}

func (b *Bindgen) popIterBasePointer() uint32 {
	n := len(b.iterBasePointerStack)
	v := b.iterBasePointerStack[n-1]
	b.iterBasePointerStack = b.iterBasePointerStack[:n-1]
	return v
}

func (b *Bindgen) emitOne(instr idl.Instr) error {
	switch instr.Kind {
	case idl.InstrGetArg:
		switch b.dir {
		case idl.Import:
			b.push(OperandJS, uint32(instr.Nth))
		case idl.Export:
			b.push(OperandWasm, uint32(instr.Nth))
		}

	case idl.InstrToWasmU32: // I32FromU32
		js := b.popJS()
		local := b.newLocal(api.ValueTypeI32)
		b.cur().I32Const(int32(js)).Call(b.rt.SMWFunc("SMW_i32_from_u32")).LocalSet(local)
		b.push(OperandWasm, local)

	case idl.InstrToJSU32: // U32FromI32
		local := b.popWasm()
		result := b.nextJS()
		b.cur().LocalGet(local).I32Const(int32(result)).Call(b.rt.SMWFunc("SMW_u32_from_i32"))
		b.push(OperandJS, result)

	case idl.InstrListCanonLower:
		js := b.popJS()
		ptr := b.newLocal(api.ValueTypeI32)
		length := b.newLocal(api.ValueTypeI32)
		b.rt.BumpRetPtrAreaSize(8)

		cur := b.cur()
		cur.GlobalGet(b.rt.RetPtrGlobal).I32Const(int32(js)).Call(b.rt.SMWFunc("SMW_string_canon_lower"))
		cur.GlobalGet(b.rt.RetPtrGlobal).I32Load(wasmenc.MemArg{Offset: 0}).LocalSet(ptr)
		cur.GlobalGet(b.rt.RetPtrGlobal).I32Load(wasmenc.MemArg{Offset: 4}).LocalSet(length)

		if !instr.HasRealloc {
			b.toFree = append(b.toFree, freeEntry{ptr, length, instr.Element.Align()})
		}
		b.push(OperandWasm, ptr)
		b.push(OperandWasm, length)

	case idl.InstrListCanonLift:
		length := b.popWasm()
		ptr := b.popWasm()
		result := b.nextJS()

		cur := b.cur()
		cur.LocalGet(ptr).LocalGet(length).I32Const(int32(result)).Call(b.rt.SMWFunc("SMW_string_canon_lift"))
		if instr.HasFree {
			cur.LocalGet(ptr).LocalGet(length).I32Const(int32(instr.Element.Align())).
				Call(b.rt.SMWFunc("canonical_abi_free"))
		}
		b.push(OperandJS, result)

	case idl.InstrListLower:
		iterable := b.popJS()
		blockCode, err := b.runBlock(instr.Body)
		if err != nil {
			return err
		}
		iterElem := b.popIterElem()
		iterBasePointer := b.popIterBasePointer()

		length := b.newLocal(api.ValueTypeI32)
		index := b.newLocal(api.ValueTypeI32)
		ptr := b.newLocal(api.ValueTypeI32)
		size := instr.Element.Size()

		cur := b.cur()
		cur.I32Const(int32(iterable)).Call(b.rt.SMWFunc("SMW_spread_into_array")).LocalSet(length)
		b.rt.MallocDynamicSize(cur, length, ptr)

		cur.I32Const(0).LocalSet(index)
		cur.Block(wasmenc.BlockVoid)
		cur.Loop(wasmenc.BlockVoid)
		cur.LocalGet(index).LocalGet(length).I32GeU().BrIf(1)
		cur.I32Const(int32(iterable)).LocalGet(index).I32Const(int32(iterElem)).
			Call(b.rt.SMWFunc("SMW_get_array_element"))
		cur.LocalGet(index).I32Const(int32(size)).I32Mul().LocalGet(ptr).I32Add().LocalSet(iterBasePointer)
		cur.AppendCode(blockCode)
		cur.LocalGet(index).I32Const(1).I32Add().LocalSet(index)
		cur.Br(0).End().End()

		if !instr.HasRealloc {
			b.toFree = append(b.toFree, freeEntry{ptr, length, instr.Element.Align()})
		}
		b.push(OperandWasm, ptr)
		b.push(OperandWasm, length)

	case idl.InstrListLift:
		length := b.popWasm()
		ptr := b.popWasm()
		blockCode, err := b.runBlock(instr.Body)
		if err != nil {
			return err
		}
		elemResult := b.pop().UnwrapJS()
		iterBasePointer := b.popIterBasePointer()

		index := b.newLocal(api.ValueTypeI32)
		size := instr.Element.Size()
		align := instr.Element.Align()
		result := b.nextJS()

		cur := b.cur()
		cur.I32Const(int32(result)).Call(b.rt.SMWFunc("SMW_new_array"))
		cur.Block(wasmenc.BlockVoid)
		cur.I32Const(0).LocalSet(index)
		cur.Loop(wasmenc.BlockVoid)
		cur.LocalGet(index).LocalGet(length).I32GeU().BrIf(1)
		cur.LocalGet(index).I32Const(int32(size)).I32Mul().LocalGet(ptr).I32Add().LocalSet(iterBasePointer)
		cur.AppendCode(blockCode)
		cur.I32Const(int32(result)).I32Const(int32(elemResult)).Call(b.rt.SMWFunc("SMW_array_push"))
		cur.I32Const(1).LocalGet(index).I32Add().LocalSet(index)
		cur.Br(0).End().End()

		if instr.HasFree {
			cur.LocalGet(ptr).LocalGet(length).I32Const(int32(align)).Call(b.rt.SMWFunc("canonical_abi_free"))
		}
		b.push(OperandJS, result)

	case idl.InstrIterElem:
		js := b.nextJS()
		b.iterElemStack = append(b.iterElemStack, js)
		b.push(OperandJS, js)

	case idl.InstrIterBasePointer:
		local := b.newLocal(api.ValueTypeI32)
		b.iterBasePointerStack = append(b.iterBasePointerStack, local)
		b.push(OperandWasm, local)

	case idl.InstrI32Load:
		addr := b.popWasm()
		local := b.newLocal(api.ValueTypeI32)
		b.cur().LocalGet(addr).I32Load(wasmenc.MemArg{Offset: instr.Offset}).LocalSet(local)
		b.push(OperandWasm, local)

	case idl.InstrI32Store:
		addr := b.popWasm()
		val := b.popWasm()
		b.cur().LocalGet(addr).LocalGet(val).I32Store(wasmenc.MemArg{Offset: instr.Offset})

	case idl.InstrCallWasm:
		// Each logical IDL param may flatten to more than one wasm operand
		// (a list-like param lowers to a (ptr, len) pair), so the pop count
		// is the flattened operand count, not len(instr.WasmParams).
		n := 0
		for _, t := range instr.WasmParams {
			if t.IsListLike() {
				n += 2
			} else {
				n++
			}
		}
		locals := make([]uint32, n)
		for i := 0; i < n; i++ {
			locals[i] = b.popWasm()
		}
		cur := b.cur()
		for i := n - 1; i >= 0; i-- {
			cur.LocalGet(locals[i])
		}

		if b.ResolveImportFunc == nil {
			return fmt.Errorf("bindgen: CallWasm %s.%s with no import resolver configured", instr.WasmModule, instr.WasmName)
		}
		funcIdx, err := b.ResolveImportFunc(instr.WasmModule, instr.WasmName)
		if err != nil {
			return err
		}
		cur.Call(funcIdx)

		if instr.WasmResult != nil {
			result := b.newLocal(api.ValueTypeI32)
			cur.LocalSet(result)
			b.push(OperandWasm, result)
		}

		for _, e := range b.toFree {
			cur.LocalGet(e.Ptr).LocalGet(e.Len).I32Const(int32(e.Align)).Call(b.rt.SMWFunc("canonical_abi_free"))
		}
		b.toFree = nil

	case idl.InstrCallInterface:
		fn := instr.CallFunc
		if fn == nil {
			return fmt.Errorf("bindgen: CallInterface with no function")
		}
		n := len(fn.Params)
		args := make([]uint32, n)
		for i := 0; i < n; i++ {
			args[i] = b.popJS()
		}
		cur := b.cur()
		for i := n - 1; i >= 0; i-- {
			cur.I32Const(int32(args[i])).Call(b.rt.SMWFunc("SMW_push_arg"))
		}

		nameLocal := b.newLocal(api.ValueTypeI32)
		b.rt.MallocStaticSize(cur, uint32(len(fn.Name))+1, nameLocal)
		nameOffset := b.rt.Arena.AddString(fn.Name)
		b.rt.CopyToEngine(cur, nameOffset, nameLocal, uint32(len(fn.Name)))

		firstResult := int32(-1)
		if len(fn.Results) > 0 {
			js := b.nextJS()
			firstResult = int32(js)
			b.push(OperandJS, js)
			for i := 1; i < len(fn.Results); i++ {
				b.push(OperandJS, b.nextJS())
			}
		}

		cur.LocalGet(nameLocal).I32Const(int32(len(fn.Name))).I32Const(int32(len(fn.Results))).
			I32Const(firstResult).Call(b.rt.SMWFunc("SMW_call"))

	case idl.InstrReturn:
		switch b.dir {
		case idl.Import:
			if instr.Amt != 0 {
				vals := make([]uint32, instr.Amt)
				for i := 0; i < instr.Amt; i++ {
					vals[i] = b.popJS()
				}
				cur := b.cur()
				for i := instr.Amt - 1; i >= 0; i-- {
					cur.I32Const(int32(vals[i])).Call(b.rt.SMWFunc("SMW_push_return_value"))
				}
				cur.LocalGet(1).LocalGet(2).Call(b.rt.SMWFunc("SMW_finish_returns"))
			}
			b.rt.ClearJSOperands(b.cur())
			b.cur().I32Const(1).Return()

		case idl.Export:
			b.rt.ClearJSOperands(b.cur())
			vals := make([]uint32, instr.Amt)
			for i := 0; i < instr.Amt; i++ {
				vals[i] = b.popWasm()
			}
			cur := b.cur()
			for i := instr.Amt - 1; i >= 0; i-- {
				cur.LocalGet(vals[i])
			}
			cur.Return()
		}

	default:
		return fmt.Errorf("bindgen: unsupported instruction kind %v", instr.Kind)
	}

	return nil
}
