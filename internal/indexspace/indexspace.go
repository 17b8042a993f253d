// Package indexspace computes the function-index-space layout of the
// emitted glue module. The module's function index space is partitioned,
// in order, into: the IDL's own imported functions, the engine's aliased
// exports (a compile-time constant set, see enginelink), the import-glue
// bodies (one per IDL import, registered into the indirect function table
// so the embedded JS can call back out), the export-glue bodies (one per
// IDL export, which become this module's own exports), and finally the
// single bootstrap function.
//
// Every partition's base offset depends on the sizes of the partitions
// before it, so nothing outside preprocessAll is allowed to ask for an
// index until every partition's size is known.
package indexspace

import "fmt"

// Accountant computes function indices once the shape of every partition
// is known. It is a programmer error to query it before Preprocess.
type Accountant struct {
	numIDLImports   uint32
	numEngineExport uint32
	numImportGlue   uint32
	numExportGlue   uint32

	finalized bool
}

// New returns an Accountant that panics if queried before Preprocess.
func New() *Accountant {
	return &Accountant{}
}

// Preprocess fixes the size of every partition. numIDLImports and
// numExportGlue (one export-glue body per IDL export) come from walking
// the IDL interfaces; numEngineExport is the engine export descriptor's
// fixed length (see enginelink.Exports). The import-glue partition always
// has exactly one body per IDL import, so numImportGlue == numIDLImports.
func (a *Accountant) Preprocess(numIDLImports, numEngineExport, numExportGlue uint32) {
	a.numIDLImports = numIDLImports
	a.numEngineExport = numEngineExport
	a.numImportGlue = numIDLImports
	a.numExportGlue = numExportGlue
	a.finalized = true
}

func (a *Accountant) requireFinalized() {
	if !a.finalized {
		panic(fmt.Errorf("indexspace: queried before Preprocess"))
	}
}

// IDLImportBase is always 0: IDL imports are declared first.
func (a *Accountant) IDLImportBase() uint32 {
	a.requireFinalized()
	return 0
}

// EngineExportBase is where the engine's aliased functions begin.
func (a *Accountant) EngineExportBase() uint32 {
	a.requireFinalized()
	return a.numIDLImports
}

// ImportGlueBase is where the per-IDL-import glue bodies begin.
func (a *Accountant) ImportGlueBase() uint32 {
	a.requireFinalized()
	return a.numIDLImports + a.numEngineExport
}

// ExportGlueBase is where the per-IDL-export glue bodies begin.
func (a *Accountant) ExportGlueBase() uint32 {
	a.requireFinalized()
	return a.ImportGlueBase() + a.numImportGlue
}

// BootstrapIndex is the single wizer.initialize function's index, the
// very last function in the index space.
func (a *Accountant) BootstrapIndex() uint32 {
	a.requireFinalized()
	return a.ExportGlueBase() + a.numExportGlue
}

// Total is the number of function-index-space slots, including the
// bootstrap function.
func (a *Accountant) Total() uint32 {
	a.requireFinalized()
	return a.BootstrapIndex() + 1
}

// IDLImportFunc returns the function index of the i'th IDL import.
func (a *Accountant) IDLImportFunc(i uint32) uint32 {
	return a.inRange(a.IDLImportBase(), a.numIDLImports, i, "IDL import")
}

// EngineExportFunc returns the function index of the i'th engine export,
// in the same order as enginelink.Exports.
func (a *Accountant) EngineExportFunc(i uint32) uint32 {
	return a.inRange(a.EngineExportBase(), a.numEngineExport, i, "engine export")
}

// ImportGlueFunc returns the function index of the i'th import-glue body.
func (a *Accountant) ImportGlueFunc(i uint32) uint32 {
	return a.inRange(a.ImportGlueBase(), a.numImportGlue, i, "import glue")
}

// ExportGlueFunc returns the function index of the i'th export-glue body.
func (a *Accountant) ExportGlueFunc(i uint32) uint32 {
	return a.inRange(a.ExportGlueBase(), a.numExportGlue, i, "export glue")
}

func (a *Accountant) inRange(base, count, i uint32, what string) uint32 {
	a.requireFinalized()
	if i >= count {
		panic(fmt.Errorf("indexspace: %s index %d out of range (have %d)", what, i, count))
	}
	return base + i
}
