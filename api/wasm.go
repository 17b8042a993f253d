// Package api includes constants and types shared between the glue
// synthesis engine and its callers.
//
// Unlike a WebAssembly runtime's api package, this one has no notion of an
// instantiated Module, Function, Memory, or Global: this module never
// executes WebAssembly, it only emits it. What survives from that lineage
// is the wire vocabulary - the value types and external kinds every
// section of an emitted module is expressed in.
package api

import "fmt"

// ExternType classifies imports and exports with their respective types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
	// ExternTypeModule and ExternTypeInstance are the two entity kinds the
	// module-linking proposal adds alongside the four kinds above. This
	// module only ever uses ExternTypeInstance, for the single imported
	// "spidermonkey" instance (see internal/enginelink); embed mode, which
	// would also need ExternTypeModule, is unimplemented.
	ExternTypeModule   ExternType = 0x04
	ExternTypeInstance ExternType = 0x05
)

// ExternTypeName returns the name of the given ExternType as a string.
//
// Note: This returns "unknown", if an undefined ExternType value is passed.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	case ExternTypeModule:
		return "module"
	case ExternTypeInstance:
		return "instance"
	}
	return "unknown"
}

// ValueType describes a numeric type used in WebAssembly 1.0 (20191205).
// The core this spec describes works exclusively in terms of these four
// scalar types; compound canonical-ABI values (strings, lists) are always
// decomposed into some combination of I32 before they reach the wire.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the type name of the given ValueType as a string.
// These type names match the names used in the WebAssembly text format.
//
// Note: This returns "unknown", if an undefined ValueType value is passed.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// Signature is the wire shape of a function: its parameter and result
// value types, plus an optional sequence of extra "return pointer" value
// types the canonical ABI appends when a function's logical results don't
// fit in the wasm result list (multi-value returns, lists, strings).
//
// Two Signatures are equal iff all three components are element-wise
// equal; RetPtr participates in equality even though it never appears in
// the wasm function type, because two functions with the same
// params/results but different out-of-band multi-value shapes are not
// interchangeable at a call site that writes through the scratch area.
type Signature struct {
	Params  []ValueType
	Results []ValueType
	RetPtr  []ValueType
}

// Equal reports whether s and other describe the same wire shape.
func (s Signature) Equal(other Signature) bool {
	return valueTypesEqual(s.Params, other.Params) &&
		valueTypesEqual(s.Results, other.Results) &&
		valueTypesEqual(s.RetPtr, other.RetPtr)
}

func valueTypesEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders the signature in a wat-like shorthand, e.g. "(i32,i32)->(i32)".
func (s Signature) String() string {
	return fmt.Sprintf("(%s)->(%s)", joinTypes(s.Params), joinTypes(s.Results))
}

func joinTypes(ts []ValueType) string {
	out := ""
	for i, t := range ts {
		if i > 0 {
			out += ","
		}
		out += ValueTypeName(t)
	}
	return out
}
