// Package wasmenc encodes the WebAssembly 1.0 binary module format: the
// section framing, the signature/index spaces, and the small slice of
// instruction opcodes the glue synthesis engine actually emits.
//
// It does not attempt to be a general-purpose assembler - opcodes absent
// from the instruction set this codebase emits (SIMD, atomics, GC, tail
// calls) are left out rather than carried as unused vocabulary.
package wasmenc

// Magic and Version open every binary module.
const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x01
)

// Section IDs, in the order they must appear (barring custom sections,
// which may appear anywhere and which this encoder never emits).
const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionTable    byte = 4
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionElement  byte = 9
	sectionCode     byte = 10
	sectionData     byte = 11
	// Module-linking proposal sections (spec.md §4.7). Module and Instance
	// only matter for embed mode (see enginelink.EmbedSpidermonkey), which
	// this encoder never emits; Alias is load-bearing for import mode, the
	// only linking strategy implemented. Unlike the IDs above, the alias
	// section is not placed by ID: Encode writes it right after the import
	// section and before the function section.
	sectionModule   byte = 14
	sectionInstance byte = 15
	sectionAlias    byte = 16
)

// funcTypeForm is the leading byte of every function type in the type
// section.
const funcTypeForm byte = 0x60

// instanceTypeForm is the leading byte of an instance type in the type
// section - the module-linking proposal's sibling to funcTypeForm, used by
// the engine linker's instance type (internal/enginelink.LinkImportMode).
const instanceTypeForm byte = 0x7f

// aliasSortInstanceExport is the alias-target discriminant for "alias one
// named export of an already-imported instance" - the only alias sort this
// encoder emits (outer-module aliases, used by embed mode, are not).
const aliasSortInstanceExport byte = 0x00

const (
	limitsNoMax byte = 0x00
	limitsMax   byte = 0x01
)

const refTypeFunc byte = 0x70

// Opcodes. Named the way the instruction appears in the text format.
const (
	opUnreachable byte = 0x00
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opElse        byte = 0x05
	opEnd         byte = 0x0b
	opBr          byte = 0x0c
	opBrIf        byte = 0x0d
	opReturn      byte = 0x0f
	opCall        byte = 0x10

	opDrop byte = 0x1a

	opLocalGet  byte = 0x20
	opLocalSet  byte = 0x21
	opLocalTee  byte = 0x22
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24

	opTableGet byte = 0x25
	opTableSet byte = 0x26

	// table.grow is encoded as the two-byte sequence (miscPrefix, miscTableGrow).
	miscPrefix     byte = 0xfc
	miscTableGrow  byte = 0x0f

	opI32Load byte = 0x28
	opI64Load byte = 0x29

	opI32Store byte = 0x36
	opI64Store byte = 0x37

	opI32Const byte = 0x41
	opI64Const byte = 0x42

	opI32Eq  byte = 0x46
	opI32GeU byte = 0x4f

	opI32Add byte = 0x6a
	opI32Mul byte = 0x6c

	opRefNull byte = 0xd0
	opRefFunc byte = 0xd2

	// memory.copy is encoded as the four-byte sequence (miscPrefix,
	// miscMemoryCopy, dst mem idx, src mem idx).
	miscMemoryCopy byte = 0x0a
)

// BlockVoid is the block-type byte for a block/loop with no result.
const BlockVoid byte = 0x40
