// Package enginelink links the embedded JS engine (spidermonkey.wasm,
// "SMW") into the glue module. It owns the fixed engine export descriptor
// - the table of every function SMW exports, in the order the glue module
// aliases them - and the import-mode linking strategy described in
// spec.md §4.4: declare an instance type, import a single instance of it,
// then alias its members into the glue module's own index spaces.
//
// Embed-mode (inlining the whole engine module rather than importing an
// instance of it) is declared but not implemented; see EmbedSpidermonkey.
package enginelink

import (
	"fmt"

	"github.com/Asraelite/witx-bindgen/api"
	"github.com/Asraelite/witx-bindgen/internal/wasmenc"
)

// InstanceName is the name of the imported spidermonkey.wasm instance in
// import mode.
const InstanceName = "spidermonkey"

// MemoryExportName and TableExportName are the names SMW exports its
// linear memory and indirect function table under.
const (
	MemoryExportName = "memory"
	TableExportName  = "__indirect_function_table"
)

// Export describes one function SMW exports.
type Export struct {
	Name string
	Sig  api.Signature
}

// Exports is the fixed, compile-time-constant list of every function
// spidermonkey.wasm exports, in aliasing order. This is the authoritative
// engine export descriptor referenced throughout spec.md §6.
var Exports = []Export{
	{"_initialize", sig(nil, nil)},
	{"canonical_abi_free", sig(i32n(3), nil)},
	{"canonical_abi_realloc", sig(i32n(4), i32n(1))},
	{"SMW_initialize_engine", sig(nil, nil)},
	{"SMW_new_module_builder", sig(i32n(2), i32n(1))},
	{"SMW_module_builder_add_export", sig(i32n(5), nil)},
	{"SMW_finish_module_builder", sig(i32n(1), nil)},
	{"SMW_eval_module", sig(i32n(3), nil)},
	{"SMW_malloc", sig(i32n(1), i32n(1))},
	{"SMW_fill_operands", sig(i32n(2), nil)},
	{"SMW_clear_operands", sig(nil, nil)},
	{"SMW_push_arg", sig(i32n(1), nil)},
	{"SMW_call", sig(i32n(4), nil)},
	{"SMW_push_return_value", sig(i32n(1), nil)},
	{"SMW_finish_returns", sig(i32n(2), nil)},
	{"SMW_i32_from_u32", sig(i32n(1), i32n(1))},
	{"SMW_u32_from_i32", sig(i32n(2), nil)},
	{"SMW_string_canon_lower", sig(i32n(2), nil)},
	{"SMW_string_canon_lift", sig(i32n(3), nil)},
	{"SMW_spread_into_array", sig(i32n(1), i32n(1))},
	{"SMW_get_array_element", sig(i32n(3), nil)},
	{"SMW_array_push", sig(i32n(2), nil)},
	{"SMW_new_array", sig(i32n(1), nil)},
	{"dump_i32", sig(i32n(1), i32n(1))},
}

func sig(params, results []api.ValueType) api.Signature {
	return api.Signature{Params: params, Results: results}
}

func i32n(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

// ExportIndex returns the position of name within Exports, by construction
// the offset of that function within the engine-export partition of the
// function index space (see indexspace.Accountant.EngineExportFunc).
func ExportIndex(name string) (uint32, error) {
	for i, e := range Exports {
		if e.Name == name {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("enginelink: no such SMW export %q", name)
}

// LinkImportMode builds an instance type declaring every function in
// Exports as a function member, a memory member, and a
// TableExportName-named function-reference table member; imports a single
// instance of that type under InstanceName; and then aliases the
// instance's memory, table, and every function (in that order - the
// "Engine-instance aliasing" design note's fixed order) into the
// corresponding index space. It returns the function index each engine
// export was assigned (in Exports order), the memory index, and the table
// index.
//
// This is the only linking strategy spec.md fully specifies; embed mode
// is a declared non-goal of this milestone (see EmbedSpidermonkey).
func LinkImportMode(b *wasmenc.ModuleBuilder) (funcIdx []uint32, memIdx, tableIdx uint32) {
	instExports := make([]wasmenc.InstanceTypeExport, 0, len(Exports)+2)
	for _, e := range Exports {
		typeIdx := b.InternType(e.Sig)
		instExports = append(instExports, wasmenc.InstanceTypeExport{
			Name:        e.Name,
			Kind:        api.ExternTypeFunc,
			FuncTypeIdx: typeIdx,
		})
	}
	instExports = append(instExports,
		wasmenc.InstanceTypeExport{Name: MemoryExportName, Kind: api.ExternTypeMemory, Limits: wasmenc.Limits{Min: 1}},
		wasmenc.InstanceTypeExport{Name: TableExportName, Kind: api.ExternTypeTable, Limits: wasmenc.Limits{Min: 0}},
	)

	instanceTypeIdx := b.AddInstanceType(instExports)
	instanceIdx := b.AddImportInstance(InstanceName, instanceTypeIdx)

	memIdx = b.AddAliasMemory(instanceIdx, MemoryExportName)
	tableIdx = b.AddAliasTable(instanceIdx, TableExportName)

	funcIdx = make([]uint32, len(Exports))
	for i, e := range Exports {
		funcIdx[i] = b.AddAliasFunc(instanceIdx, e.Name)
	}
	return funcIdx, memIdx, tableIdx
}

// EmbedSpidermonkey would inline the whole spidermonkey.wasm binary into a
// module-linking Module section, instantiate it via an Instance section,
// and alias its exports exactly as LinkImportMode does for an imported
// instance, per spec.md §4.4's embed mode. wasmenc's type/import/alias
// support (used by LinkImportMode) covers aliasing an already-instantiated
// instance, but it has no Module-section encoding for embedding a child
// module's bytes nor an Instance-section encoding for instantiating one
// with arguments - both non-trivial additions this milestone defers. Left
// unimplemented here; the caller API only offers import mode
// (ImportSpidermonkey).
func EmbedSpidermonkey() error {
	return fmt.Errorf("enginelink: embed mode is not implemented; use import mode")
}
