package wasmenc

import (
	"github.com/Asraelite/witx-bindgen/api"
	"github.com/Asraelite/witx-bindgen/internal/leb128"
)

// Limits describes a table or memory's size bounds, in table elements or
// 64KiB pages respectively.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded
}

func (l Limits) encode() []byte {
	if l.Max == nil {
		return append([]byte{limitsNoMax}, leb128.EncodeUint32(l.Min)...)
	}
	out := []byte{limitsMax}
	out = append(out, leb128.EncodeUint32(l.Min)...)
	out = append(out, leb128.EncodeUint32(*l.Max)...)
	return out
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type importTable struct {
	module, name string
	limits       Limits
}

type importMemory struct {
	module, name string
	limits       Limits
}

type importGlobal struct {
	module, name string
	valType      api.ValueType
	mutable      bool
}

// importInstance is a module-linking instance import. Unlike the other
// import kinds, it carries a single bare name rather than a module/field
// pair - the module-linking proposal's one-level import naming.
type importInstance struct {
	name    string
	typeIdx uint32
}

type definedGlobal struct {
	valType   api.ValueType
	mutable   bool
	initExpr  []byte
}

// InstanceTypeExport describes one export an instance type declares: a
// function member (naming its interned type index), a memory member, or a
// table member. See spec.md §4.4's engine linker.
type InstanceTypeExport struct {
	Name string
	Kind api.ExternType // ExternTypeFunc, ExternTypeMemory, or ExternTypeTable
	// FuncTypeIdx is meaningful only when Kind == ExternTypeFunc.
	FuncTypeIdx uint32
	// Limits is meaningful only when Kind == ExternTypeMemory or
	// ExternTypeTable.
	Limits Limits
}

type typeKind byte

const (
	typeKindFunc typeKind = iota
	typeKindInstance
)

// typeEntry is one type-section entry: either a function type (the
// WebAssembly 1.0 case) or an instance type (the module-linking proposal's
// addition, used only by the engine linker).
type typeEntry struct {
	kind    typeKind
	sig     api.Signature
	exports []InstanceTypeExport
}

type aliasKind byte

const (
	aliasKindFunc aliasKind = iota
	aliasKindTable
	aliasKindMemory
)

// aliasEntry is one alias-section entry: "alias named export of instance
// at instanceIdx into my own index space", the only alias sort this
// encoder emits.
type aliasEntry struct {
	kind        aliasKind
	instanceIdx uint32
	name        string
}

type export struct {
	name string
	kind api.ExternType
	idx  uint32
}

type elemSegment struct {
	tableIdx    uint32
	offsetExpr  []byte
	funcIndices []uint32
}

type dataSegment struct {
	memIdx     uint32
	offsetExpr []byte
	data       []byte
}

// ModuleBuilder assembles a complete WebAssembly binary module section by
// section. Every Add* method returns the index the added item occupies in
// its index space, accounting for the imports that always precede
// module-defined items of the same kind.
type ModuleBuilder struct {
	types   []typeEntry
	typeIdx map[string]uint32 // signature string -> interned type index

	importFuncs     []importFunc
	importTables    []importTable
	importMemorys   []importMemory
	importGlobals   []importGlobal
	importInstances []importInstance

	aliases          []aliasEntry
	aliasFuncCount   uint32
	aliasTableCount  uint32
	aliasMemoryCount uint32

	funcTypes []uint32 // type index per defined function, parallel to funcBodies
	funcBodies [][]byte

	tables  []Limits
	memorys []Limits
	globals []definedGlobal

	exports []export
	elems   []elemSegment
	datas   []dataSegment
}

// NewModuleBuilder returns an empty builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{typeIdx: map[string]uint32{}}
}

// InternType returns the type index for sig, adding a new type section
// entry only if an equal signature hasn't been interned yet.
func (b *ModuleBuilder) InternType(sig api.Signature) uint32 {
	key := sig.String() + retPtrKey(sig.RetPtr)
	if idx, ok := b.typeIdx[key]; ok {
		return idx
	}
	idx := uint32(len(b.types))
	b.types = append(b.types, typeEntry{kind: typeKindFunc, sig: sig})
	b.typeIdx[key] = idx
	return idx
}

// AddInstanceType declares a new instance type exporting exports and
// returns its index in the type index space that function types and
// instance types share. Unlike InternType, instance types are never
// deduplicated - the engine linker declares exactly one per run, so there
// is nothing to share.
func (b *ModuleBuilder) AddInstanceType(exports []InstanceTypeExport) uint32 {
	idx := uint32(len(b.types))
	b.types = append(b.types, typeEntry{kind: typeKindInstance, exports: exports})
	return idx
}

func retPtrKey(rp []api.ValueType) string {
	s := "|"
	for _, t := range rp {
		s += api.ValueTypeName(t) + ","
	}
	return s
}

// AddImportFunc declares a function import and returns its function index.
func (b *ModuleBuilder) AddImportFunc(module, name string, typeIdx uint32) uint32 {
	idx := uint32(len(b.importFuncs))
	b.importFuncs = append(b.importFuncs, importFunc{module, name, typeIdx})
	return idx
}

// AddImportTable declares a table import and returns its table index.
func (b *ModuleBuilder) AddImportTable(module, name string, limits Limits) uint32 {
	idx := uint32(len(b.importTables))
	b.importTables = append(b.importTables, importTable{module, name, limits})
	return idx
}

// AddImportMemory declares a memory import and returns its memory index.
func (b *ModuleBuilder) AddImportMemory(module, name string, limits Limits) uint32 {
	idx := uint32(len(b.importMemorys))
	b.importMemorys = append(b.importMemorys, importMemory{module, name, limits})
	return idx
}

// AddImportGlobal declares a global import and returns its global index.
func (b *ModuleBuilder) AddImportGlobal(module, name string, valType api.ValueType, mutable bool) uint32 {
	idx := uint32(len(b.importGlobals))
	b.importGlobals = append(b.importGlobals, importGlobal{module, name, valType, mutable})
	return idx
}

// AddImportInstance declares an import of a single instance, under the
// module-linking proposal's one-level import naming (a bare name, not a
// module/field pair), and returns its instance index.
func (b *ModuleBuilder) AddImportInstance(name string, typeIdx uint32) uint32 {
	idx := uint32(len(b.importInstances))
	b.importInstances = append(b.importInstances, importInstance{name, typeIdx})
	return idx
}

// AddAliasMemory aliases the named memory export of the instance at
// instanceIdx into this module's memory index space, immediately after any
// directly-imported memories, and returns the assigned memory index.
func (b *ModuleBuilder) AddAliasMemory(instanceIdx uint32, name string) uint32 {
	idx := uint32(len(b.importMemorys)) + b.aliasMemoryCount
	b.aliases = append(b.aliases, aliasEntry{aliasKindMemory, instanceIdx, name})
	b.aliasMemoryCount++
	return idx
}

// AddAliasTable aliases the named table export of the instance at
// instanceIdx into this module's table index space, immediately after any
// directly-imported tables, and returns the assigned table index.
func (b *ModuleBuilder) AddAliasTable(instanceIdx uint32, name string) uint32 {
	idx := uint32(len(b.importTables)) + b.aliasTableCount
	b.aliases = append(b.aliases, aliasEntry{aliasKindTable, instanceIdx, name})
	b.aliasTableCount++
	return idx
}

// AddAliasFunc aliases the named function export of the instance at
// instanceIdx into this module's function index space, immediately after
// any directly-imported functions, and returns the assigned function
// index.
func (b *ModuleBuilder) AddAliasFunc(instanceIdx uint32, name string) uint32 {
	idx := uint32(len(b.importFuncs)) + b.aliasFuncCount
	b.aliases = append(b.aliases, aliasEntry{aliasKindFunc, instanceIdx, name})
	b.aliasFuncCount++
	return idx
}

// AddFunction defines a module-local function with the given type and
// already-finished body bytes (see Func.Bytes), returning its function
// index in the combined import+alias+defined function index space.
func (b *ModuleBuilder) AddFunction(typeIdx uint32, body []byte) uint32 {
	idx := uint32(len(b.importFuncs)) + b.aliasFuncCount + uint32(len(b.funcTypes))
	b.funcTypes = append(b.funcTypes, typeIdx)
	b.funcBodies = append(b.funcBodies, body)
	return idx
}

// AddTable defines a module-local table (always funcref) and returns its
// table index in the combined import+alias+defined table index space.
func (b *ModuleBuilder) AddTable(limits Limits) uint32 {
	idx := uint32(len(b.importTables)) + b.aliasTableCount + uint32(len(b.tables))
	b.tables = append(b.tables, limits)
	return idx
}

// AddMemory defines a module-local memory and returns its memory index in
// the combined import+alias+defined memory index space.
func (b *ModuleBuilder) AddMemory(limits Limits) uint32 {
	idx := uint32(len(b.importMemorys)) + b.aliasMemoryCount + uint32(len(b.memorys))
	b.memorys = append(b.memorys, limits)
	return idx
}

// AddGlobal defines a module-local global with a constant initializer
// expression (already-finished body bytes including the trailing End) and
// returns its global index.
func (b *ModuleBuilder) AddGlobal(valType api.ValueType, mutable bool, initExpr []byte) uint32 {
	idx := uint32(len(b.importGlobals) + len(b.globals))
	b.globals = append(b.globals, definedGlobal{valType, mutable, initExpr})
	return idx
}

// AddExport exports idx (interpreted according to kind's index space)
// under name.
func (b *ModuleBuilder) AddExport(name string, kind api.ExternType, idx uint32) {
	b.exports = append(b.exports, export{name, kind, idx})
}

// AddElement appends an active element segment initializing tableIdx at
// offsetExpr (a constant expression, including trailing End) with
// funcIndices.
func (b *ModuleBuilder) AddElement(tableIdx uint32, offsetExpr []byte, funcIndices []uint32) {
	b.elems = append(b.elems, elemSegment{tableIdx, offsetExpr, funcIndices})
}

// AddData appends an active data segment initializing memIdx at
// offsetExpr (a constant expression, including trailing End) with data.
// It returns the segment's position, useful only for diagnostics - data
// segments have no index space callers otherwise observe.
func (b *ModuleBuilder) AddData(memIdx uint32, offsetExpr []byte, data []byte) int {
	idx := len(b.datas)
	b.datas = append(b.datas, dataSegment{memIdx, offsetExpr, data})
	return idx
}

// ConstI32Expr builds an (i32.const v) initializer/offset expression
// terminated with End.
func ConstI32Expr(v int32) []byte {
	out := append([]byte{opI32Const}, leb128.EncodeInt32(v)...)
	return append(out, opEnd)
}

// Encode serializes the module to its final binary form.
func (b *ModuleBuilder) Encode() []byte {
	out := make([]byte, 0, 4096)
	out = appendUint32LE(out, Magic)
	out = appendUint32LE(out, Version)

	if len(b.types) > 0 {
		out = appendSection(out, sectionType, b.encodeTypeSection())
	}
	if len(b.importFuncs)+len(b.importTables)+len(b.importMemorys)+len(b.importGlobals)+len(b.importInstances) > 0 {
		out = appendSection(out, sectionImport, b.encodeImportSection())
	}
	// Embedded modules/instances (sectionModule, sectionInstance) would go
	// here for embed mode; this encoder only ever emits aliases against a
	// directly-imported instance (see enginelink.LinkImportMode).
	if len(b.aliases) > 0 {
		out = appendSection(out, sectionAlias, b.encodeAliasSection())
	}
	if len(b.funcTypes) > 0 {
		out = appendSection(out, sectionFunction, b.encodeFunctionSection())
	}
	if len(b.tables) > 0 {
		out = appendSection(out, sectionTable, b.encodeTableSection())
	}
	if len(b.memorys) > 0 {
		out = appendSection(out, sectionMemory, b.encodeMemorySection())
	}
	if len(b.globals) > 0 {
		out = appendSection(out, sectionGlobal, b.encodeGlobalSection())
	}
	if len(b.exports) > 0 {
		out = appendSection(out, sectionExport, b.encodeExportSection())
	}
	if len(b.elems) > 0 {
		out = appendSection(out, sectionElement, b.encodeElementSection())
	}
	if len(b.funcBodies) > 0 {
		out = appendSection(out, sectionCode, b.encodeCodeSection())
	}
	if len(b.datas) > 0 {
		out = appendSection(out, sectionData, b.encodeDataSection())
	}
	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func appendUint32LE(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendName(out []byte, name string) []byte {
	out = append(out, leb128.EncodeUint32(uint32(len(name)))...)
	return append(out, name...)
}

func (b *ModuleBuilder) encodeTypeSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.types)))...)
	for _, t := range b.types {
		switch t.kind {
		case typeKindFunc:
			s = append(s, funcTypeForm)
			s = append(s, leb128.EncodeUint32(uint32(len(t.sig.Params)))...)
			s = append(s, t.sig.Params...)
			s = append(s, leb128.EncodeUint32(uint32(len(t.sig.Results)))...)
			s = append(s, t.sig.Results...)
		case typeKindInstance:
			s = append(s, instanceTypeForm)
			s = append(s, leb128.EncodeUint32(uint32(len(t.exports)))...)
			for _, e := range t.exports {
				s = appendName(s, e.Name)
				s = append(s, e.Kind)
				switch e.Kind {
				case api.ExternTypeFunc:
					s = append(s, leb128.EncodeUint32(e.FuncTypeIdx)...)
				case api.ExternTypeMemory:
					s = append(s, e.Limits.encode()...)
				case api.ExternTypeTable:
					s = append(s, refTypeFunc)
					s = append(s, e.Limits.encode()...)
				}
			}
		}
	}
	return s
}

func (b *ModuleBuilder) encodeImportSection() []byte {
	var s []byte
	total := len(b.importFuncs) + len(b.importTables) + len(b.importMemorys) + len(b.importGlobals) + len(b.importInstances)
	s = append(s, leb128.EncodeUint32(uint32(total))...)
	for _, f := range b.importFuncs {
		s = appendName(s, f.module)
		s = appendName(s, f.name)
		s = append(s, api.ExternTypeFunc)
		s = append(s, leb128.EncodeUint32(f.typeIdx)...)
	}
	for _, t := range b.importTables {
		s = appendName(s, t.module)
		s = appendName(s, t.name)
		s = append(s, api.ExternTypeTable)
		s = append(s, refTypeFunc)
		s = append(s, t.limits.encode()...)
	}
	for _, m := range b.importMemorys {
		s = appendName(s, m.module)
		s = appendName(s, m.name)
		s = append(s, api.ExternTypeMemory)
		s = append(s, m.limits.encode()...)
	}
	for _, g := range b.importGlobals {
		s = appendName(s, g.module)
		s = appendName(s, g.name)
		s = append(s, api.ExternTypeGlobal)
		s = append(s, g.valType)
		s = append(s, mutByte(g.mutable))
	}
	for _, inst := range b.importInstances {
		s = appendName(s, inst.name)
		s = append(s, api.ExternTypeInstance)
		s = append(s, leb128.EncodeUint32(inst.typeIdx)...)
	}
	return s
}

func (b *ModuleBuilder) encodeAliasSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.aliases)))...)
	for _, a := range b.aliases {
		s = append(s, aliasSortInstanceExport)
		s = append(s, leb128.EncodeUint32(a.instanceIdx)...)
		s = append(s, aliasKindExternType(a.kind))
		s = appendName(s, a.name)
	}
	return s
}

func aliasKindExternType(k aliasKind) api.ExternType {
	switch k {
	case aliasKindFunc:
		return api.ExternTypeFunc
	case aliasKindTable:
		return api.ExternTypeTable
	case aliasKindMemory:
		return api.ExternTypeMemory
	}
	panic("wasmenc: unknown alias kind")
}

func mutByte(mutable bool) byte {
	if mutable {
		return 0x01
	}
	return 0x00
}

func (b *ModuleBuilder) encodeFunctionSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.funcTypes)))...)
	for _, t := range b.funcTypes {
		s = append(s, leb128.EncodeUint32(t)...)
	}
	return s
}

func (b *ModuleBuilder) encodeTableSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.tables)))...)
	for _, t := range b.tables {
		s = append(s, refTypeFunc)
		s = append(s, t.encode()...)
	}
	return s
}

func (b *ModuleBuilder) encodeMemorySection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.memorys)))...)
	for _, m := range b.memorys {
		s = append(s, m.encode()...)
	}
	return s
}

func (b *ModuleBuilder) encodeGlobalSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.globals)))...)
	for _, g := range b.globals {
		s = append(s, g.valType)
		s = append(s, mutByte(g.mutable))
		s = append(s, g.initExpr...)
	}
	return s
}

func (b *ModuleBuilder) encodeExportSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.exports)))...)
	for _, e := range b.exports {
		s = appendName(s, e.name)
		s = append(s, e.kind)
		s = append(s, leb128.EncodeUint32(e.idx)...)
	}
	return s
}

func (b *ModuleBuilder) encodeElementSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.elems)))...)
	for _, e := range b.elems {
		s = append(s, leb128.EncodeUint32(e.tableIdx)...)
		s = append(s, e.offsetExpr...)
		s = append(s, leb128.EncodeUint32(uint32(len(e.funcIndices)))...)
		for _, fi := range e.funcIndices {
			s = append(s, leb128.EncodeUint32(fi)...)
		}
	}
	return s
}

func (b *ModuleBuilder) encodeCodeSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.funcBodies)))...)
	for _, body := range b.funcBodies {
		s = append(s, leb128.EncodeUint32(uint32(len(body)))...)
		s = append(s, body...)
	}
	return s
}

func (b *ModuleBuilder) encodeDataSection() []byte {
	var s []byte
	s = append(s, leb128.EncodeUint32(uint32(len(b.datas)))...)
	for _, d := range b.datas {
		s = append(s, leb128.EncodeUint32(d.memIdx)...)
		s = append(s, d.offsetExpr...)
		s = append(s, leb128.EncodeUint32(uint32(len(d.data)))...)
		s = append(s, d.data...)
	}
	return s
}
