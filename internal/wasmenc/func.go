package wasmenc

import (
	"github.com/Asraelite/witx-bindgen/api"
	"github.com/Asraelite/witx-bindgen/internal/leb128"
)

// MemArg is the (align, offset) pair every memory load/store carries.
// Align is the power-of-two log2 alignment hint, not the alignment itself.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// Func incrementally builds a single function body: its locals
// declaration followed by its instruction stream. Every instruction
// returns Func so calls can be chained.
type Func struct {
	locals []api.ValueType // additional locals beyond the parameters
	code   []byte
}

// NewFunc starts a function body with the given additional locals (beyond
// its parameters, which the type section already accounts for and which
// don't need redeclaring here).
func NewFunc(locals []api.ValueType) *Func {
	return &Func{locals: locals}
}

// Bytes finishes the body (always appending the function body's closing
// End after the instructions emitted so far) and returns the encoded
// function body, locals header included, ready for
// ModuleBuilder.AddFunction.
func (f *Func) Bytes() []byte {
	var out []byte
	out = append(out, f.encodeLocals()...)
	out = append(out, f.code...)
	out = append(out, opEnd)
	return out
}

// encodeLocals groups consecutive identical local types into runs, as the
// binary format requires.
func (f *Func) encodeLocals() []byte {
	type run struct {
		t     api.ValueType
		count uint32
	}
	var runs []run
	for _, t := range f.locals {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{t, 1})
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(runs)))...)
	for _, r := range runs {
		out = append(out, leb128.EncodeUint32(r.count)...)
		out = append(out, r.t)
	}
	return out
}

func (f *Func) emit(op byte, args ...byte) *Func {
	f.code = append(f.code, op)
	f.code = append(f.code, args...)
	return f
}

func (f *Func) emitU32(op byte, v uint32) *Func {
	return f.emit(op, leb128.EncodeUint32(v)...)
}

// Raw appends already-encoded instruction bytes verbatim, for cases this
// builder doesn't have a dedicated helper for.
func (f *Func) Raw(b ...byte) *Func {
	f.code = append(f.code, b...)
	return f
}

func (f *Func) Unreachable() *Func { return f.emit(opUnreachable) }
func (f *Func) Drop() *Func        { return f.emit(opDrop) }
func (f *Func) Return() *Func      { return f.emit(opReturn) }

func (f *Func) Block(blockType byte) *Func { return f.emit(opBlock, blockType) }
func (f *Func) Loop(blockType byte) *Func  { return f.emit(opLoop, blockType) }
func (f *Func) If(blockType byte) *Func    { return f.emit(opIf, blockType) }
func (f *Func) Else() *Func                { return f.emit(opElse) }
func (f *Func) End() *Func                 { return f.emit(opEnd) }

func (f *Func) Br(depth uint32) *Func   { return f.emitU32(opBr, depth) }
func (f *Func) BrIf(depth uint32) *Func { return f.emitU32(opBrIf, depth) }

func (f *Func) Call(funcIdx uint32) *Func { return f.emitU32(opCall, funcIdx) }

func (f *Func) LocalGet(idx uint32) *Func  { return f.emitU32(opLocalGet, idx) }
func (f *Func) LocalSet(idx uint32) *Func  { return f.emitU32(opLocalSet, idx) }
func (f *Func) LocalTee(idx uint32) *Func  { return f.emitU32(opLocalTee, idx) }
func (f *Func) GlobalGet(idx uint32) *Func { return f.emitU32(opGlobalGet, idx) }
func (f *Func) GlobalSet(idx uint32) *Func { return f.emitU32(opGlobalSet, idx) }

func (f *Func) TableGet(tableIdx uint32) *Func { return f.emitU32(opTableGet, tableIdx) }
func (f *Func) TableSet(tableIdx uint32) *Func { return f.emitU32(opTableSet, tableIdx) }

// TableGrow emits table.grow for tableIdx. Stack: [initValue:funcref n:i32] -> [i32]
// (the previous size, or -1 if growth failed).
func (f *Func) TableGrow(tableIdx uint32) *Func {
	f.code = append(f.code, miscPrefix, miscTableGrow)
	f.code = append(f.code, leb128.EncodeUint32(tableIdx)...)
	return f
}

func (f *Func) I32Const(v int32) *Func { return f.emit(opI32Const, leb128.EncodeInt32(v)...) }
func (f *Func) I64Const(v int64) *Func { return f.emit(opI64Const, leb128.EncodeInt64(v)...) }

func (f *Func) I32Load(m MemArg) *Func { return f.emitMem(opI32Load, m) }
func (f *Func) I64Load(m MemArg) *Func { return f.emitMem(opI64Load, m) }

func (f *Func) I32Store(m MemArg) *Func { return f.emitMem(opI32Store, m) }
func (f *Func) I64Store(m MemArg) *Func { return f.emitMem(opI64Store, m) }

func (f *Func) emitMem(op byte, m MemArg) *Func {
	f.code = append(f.code, op)
	f.code = append(f.code, leb128.EncodeUint32(m.Align)...)
	f.code = append(f.code, leb128.EncodeUint32(m.Offset)...)
	return f
}

func (f *Func) I32Eq() *Func  { return f.emit(opI32Eq) }
func (f *Func) I32GeU() *Func { return f.emit(opI32GeU) }
func (f *Func) I32Add() *Func { return f.emit(opI32Add) }
func (f *Func) I32Mul() *Func { return f.emit(opI32Mul) }

func (f *Func) RefNullFunc() *Func      { return f.emit(opRefNull, refTypeFunc) }
func (f *Func) RefFunc(idx uint32) *Func { return f.emitU32(opRefFunc, idx) }

// MemoryCopy emits memory.copy from srcMem into dstMem. Stack:
// [destAddr:i32 srcAddr:i32 len:i32] -> [].
func (f *Func) MemoryCopy(dstMem, srcMem uint32) *Func {
	f.code = append(f.code, miscPrefix, miscMemoryCopy)
	f.code = append(f.code, leb128.EncodeUint32(dstMem)...)
	f.code = append(f.code, leb128.EncodeUint32(srcMem)...)
	return f
}

// AddLocal declares one more local of type t beyond paramCount real
// parameters, returning the local index it will occupy, so a scratch
// local can be added while the function is being built one instruction
// at a time.
func (f *Func) AddLocal(t api.ValueType, paramCount uint32) uint32 {
	idx := paramCount + uint32(len(f.locals))
	f.locals = append(f.locals, t)
	return idx
}

// CodeBytes returns the instruction bytes emitted so far, without a
// locals header or trailing End - for capturing a sub-block of code to
// splice into another Func under construction.
func (f *Func) CodeBytes() []byte {
	return f.code
}

// AppendCode appends another Func's CodeBytes verbatim, for splicing a
// captured sub-block into this one.
func (f *Func) AppendCode(code []byte) *Func {
	f.code = append(f.code, code...)
	return f
}
