// Package witxbindgen assembles the glue-module synthesis engine's
// internal packages into the Caller API spec.md §6 describes: construct
// a Generator, preprocess every interface, register each imported and
// exported function, then finish the module to bytes.
package witxbindgen

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Asraelite/witx-bindgen/api"
	"github.com/Asraelite/witx-bindgen/internal/arena"
	"github.com/Asraelite/witx-bindgen/internal/bindgen"
	"github.com/Asraelite/witx-bindgen/internal/enginelink"
	"github.com/Asraelite/witx-bindgen/internal/idl"
	"github.com/Asraelite/witx-bindgen/internal/indexspace"
	"github.com/Asraelite/witx-bindgen/internal/initgen"
	"github.com/Asraelite/witx-bindgen/internal/scriptcheck"
	"github.com/Asraelite/witx-bindgen/internal/wasmenc"
)

// scriptNativeSig is the fixed JSNative calling convention every
// import-glue body is exposed to the embedded engine under: (cx, argc,
// vp) -> bool.
var scriptNativeSig = api.Signature{
	Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
	Results: []api.ValueType{api.ValueTypeI32},
}

// ImportSpec names the functions one IDL-imported interface declares.
// Order is preserved into the emitted bootstrap's table layout.
type ImportSpec struct {
	Interface string
	Funcs     []idl.Function
}

type flatImport struct {
	iface string
	fn    idl.Function
}

// Generator drives one glue-module synthesis run. It is not safe for
// concurrent use; spec.md §5 mandates single-threaded, synchronous
// operation throughout.
type Generator struct {
	cfg Config
	log *zap.Logger

	mb   *wasmenc.ModuleBuilder
	acct *indexspace.Accountant
	rt   *bindgen.Runtime

	engineFuncIdx []uint32
	engineMemIdx  uint32
	engineTblIdx  uint32
	retPtrGlobal  uint32

	preprocessed bool
	finished     bool

	imports     []flatImport
	idlImportFn []uint32 // function index of each flatImport's real wasm import, parallel to imports

	exportFuncs []idl.Function
	exportIface string

	importedCount int
	exportedCount int

	warnedNamePerCall bool
	warnedNoCallNFast bool
}

// New validates cfg and constructs a Generator. ScriptSource is checked
// for JS syntax errors up front (see internal/scriptcheck) so a malformed
// script fails here rather than producing a module the engine would
// later fail to evaluate.
func New(cfg Config) (*Generator, error) {
	if !cfg.ImportSpidermonkey {
		if err := enginelink.EmbedSpidermonkey(); err != nil {
			return nil, newErr(KindUnsupported, "Config.ImportSpidermonkey is false", err)
		}
	}
	if err := scriptcheck.Validate(cfg.ScriptName, cfg.ScriptSource); err != nil {
		return nil, newErr(KindInput, "embedded script failed syntax validation", err)
	}
	if s := stem(cfg.ScriptName); s == "" || !utf8.ValidString(s) {
		return nil, newErr(KindInput, fmt.Sprintf("script path %q has no usable stem", cfg.ScriptName), nil)
	}

	log := cfg.logger()
	mb := wasmenc.NewModuleBuilder()
	a := arena.New()

	g := &Generator{
		cfg:  cfg,
		log:  log,
		mb:   mb,
		acct: indexspace.New(),
	}

	smwFunc := func(name string) uint32 {
		idx, err := enginelink.ExportIndex(name)
		if err != nil {
			programmerPanic(err.Error())
		}
		return g.acct.EngineExportFunc(idx)
	}
	g.rt = bindgen.NewRuntime(smwFunc, a, 0) // global index patched in PreprocessAll

	return g, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// OutputName returns the output filename: the script's stem plus ".wasm".
func (g *Generator) OutputName() string {
	return stem(g.cfg.ScriptName) + ".wasm"
}

// PreprocessAll is pass 1: it fixes the function-index-space partition
// sizes, declares every IDL-imported function and the engine's own
// imports, and reserves the return-pointer global. It is a programmer
// error to call this more than once, or to call Import/Export/FinishAll
// before it.
func (g *Generator) PreprocessAll(imports []ImportSpec, exports []idl.Function) error {
	if g.preprocessed {
		programmerPanic("PreprocessAll called more than once")
	}

	for _, spec := range imports {
		for _, fn := range spec.Funcs {
			g.imports = append(g.imports, flatImport{iface: spec.Interface, fn: fn})
		}
	}
	g.exportFuncs = exports

	numIDLImports := uint32(len(g.imports))
	numExportGlue := uint32(len(g.exportFuncs))

	g.idlImportFn = make([]uint32, numIDLImports)
	for i, imp := range g.imports {
		params, err := flattenParams(imp.fn.Params)
		if err != nil {
			return newErr(KindUnsupported, fmt.Sprintf("import %s.%s", imp.iface, imp.fn.Name), err)
		}
		results, err := flattenResultTypes(imp.fn.Results)
		if err != nil {
			return newErr(KindUnsupported, fmt.Sprintf("import %s.%s", imp.iface, imp.fn.Name), err)
		}
		if len(results) > 1 {
			return newErr(KindUnsupported, fmt.Sprintf("import %s.%s", imp.iface, imp.fn.Name),
				fmt.Errorf("multi-value import results are unsupported"))
		}
		typeIdx := g.mb.InternType(api.Signature{Params: params, Results: results})
		g.idlImportFn[i] = g.mb.AddImportFunc(imp.iface, imp.fn.Name, typeIdx)
	}

	engineFuncIdx, memIdx, tblIdx := enginelink.LinkImportMode(g.mb)
	g.engineFuncIdx = engineFuncIdx
	g.engineMemIdx = memIdx
	g.engineTblIdx = tblIdx

	g.acct.Preprocess(numIDLImports, uint32(len(enginelink.Exports)), numExportGlue)

	g.retPtrGlobal = g.mb.AddGlobal(api.ValueTypeI32, true, wasmenc.ConstI32Expr(0))
	g.rt.RetPtrGlobal = g.retPtrGlobal

	g.preprocessed = true
	g.log.Info("preprocessed",
		zap.Int("imports", len(g.imports)),
		zap.Int("exports", len(g.exportFuncs)),
	)
	return nil
}

// PreprocessOne is a per-interface hook kept for parity with spec.md's
// two-pass preprocessing (§2); every size/alignment fact this generator
// needs is already available from idl.Type.Size/Align, so there is no
// additional per-interface state to compute here beyond recording which
// interface owns the exported functions (enforcing the at-most-one-export
// -interface invariant).
func (g *Generator) PreprocessOne(ifaceName string, dir idl.Direction) error {
	if !g.preprocessed {
		programmerPanic("PreprocessOne called before PreprocessAll")
	}
	if dir == idl.Export {
		if g.exportIface != "" && g.exportIface != ifaceName {
			programmerPanic("at most one exported interface is permitted per run")
		}
		g.exportIface = ifaceName
	}
	return nil
}

// Import synthesizes one import-glue body: the trampoline the embedded
// engine calls, under the JSNative calling convention, to invoke the
// real IDL-imported wasm function fn.
func (g *Generator) Import(fn idl.Function) error {
	if !g.preprocessed {
		programmerPanic("Import called before PreprocessAll")
	}
	i := g.importedCount
	if i >= len(g.imports) {
		programmerPanic("Import called more times than PreprocessAll's import count")
	}
	imp := g.imports[i]
	if imp.fn.Name != fn.Name {
		return newErr(KindInput, fmt.Sprintf("Import call %d: expected %q, got %q", i, imp.fn.Name, fn.Name), nil)
	}

	instrs, err := idl.Walk(imp.iface, imp.fn, idl.Import)
	if err != nil {
		return newErr(KindUnsupported, fmt.Sprintf("import %s.%s", imp.iface, fn.Name), err)
	}

	wasmParamCount := uint32(len(imp.fn.Params))
	resolve := func(module, name string) (uint32, error) {
		for j, other := range g.imports {
			if other.iface == module && other.fn.Name == name {
				return g.idlImportFn[j], nil
			}
		}
		return 0, fmt.Errorf("witxbindgen: CallWasm references unknown import %s.%s", module, name)
	}

	bg := bindgen.New(g.rt, idl.Import, wasmParamCount, resolve)
	if err := bg.Emit(instrs); err != nil {
		return newErr(KindUnsupported, fmt.Sprintf("import %s.%s", imp.iface, fn.Name), err)
	}
	body := bg.Finish().Bytes()

	typeIdx := g.mb.InternType(scriptNativeSig)
	idx := g.mb.AddFunction(typeIdx, body)
	if idx != g.acct.ImportGlueFunc(uint32(i)) {
		programmerPanic("import glue body registered out of order")
	}

	g.importedCount++
	g.log.Debug("import glue synthesized", zap.String("interface", imp.iface), zap.String("func", fn.Name))
	return nil
}

// Export synthesizes one export-glue body: the function external callers
// invoke directly, which lifts its wasm arguments to JS values, calls the
// embedded script's like-named top-level function, and lowers the result
// back.
func (g *Generator) Export(fn idl.Function) error {
	if !g.preprocessed {
		programmerPanic("Export called before PreprocessAll")
	}
	i := g.exportedCount
	if i >= len(g.exportFuncs) {
		programmerPanic("Export called more times than PreprocessAll's export count")
	}
	if g.exportFuncs[i].Name != fn.Name {
		return newErr(KindInput, fmt.Sprintf("Export call %d: expected %q, got %q", i, g.exportFuncs[i].Name, fn.Name), nil)
	}
	fn = g.exportFuncs[i]

	instrs, err := idl.Walk("", fn, idl.Export)
	if err != nil {
		return newErr(KindUnsupported, fmt.Sprintf("export %s", fn.Name), err)
	}

	params, err := flattenParams(fn.Params)
	if err != nil {
		return newErr(KindUnsupported, fmt.Sprintf("export %s", fn.Name), err)
	}
	results, err := flattenResultTypes(fn.Results)
	if err != nil {
		return newErr(KindUnsupported, fmt.Sprintf("export %s", fn.Name), err)
	}
	wireSig := api.Signature{Params: params, Results: results}

	bg := bindgen.New(g.rt, idl.Export, uint32(len(params)), nil)
	g.warnOncePerCallNameMalloc()
	g.warnOnceNoCallNFastPath()
	if err := bg.Emit(instrs); err != nil {
		return newErr(KindUnsupported, fmt.Sprintf("export %s", fn.Name), err)
	}
	body := bg.Finish().Bytes()

	typeIdx := g.mb.InternType(wireSig)
	idx := g.mb.AddFunction(typeIdx, body)
	if idx != g.acct.ExportGlueFunc(uint32(i)) {
		programmerPanic("export glue body registered out of order")
	}
	g.mb.AddExport(fn.Name, api.ExternTypeFunc, idx)

	g.exportedCount++
	g.log.Debug("export glue synthesized", zap.String("func", fn.Name))
	return nil
}

func (g *Generator) warnOncePerCallNameMalloc() {
	if g.warnedNamePerCall {
		return
	}
	g.warnedNamePerCall = true
	g.log.Warn("interface call names are re-malloc'd and re-copied on every invocation; pre-allocating them in the bootstrap is a future optimization")
}

func (g *Generator) warnOnceNoCallNFastPath() {
	if g.warnedNoCallNFast {
		return
	}
	g.warnedNoCallNFast = true
	g.log.Warn("SMW_call is a single general-purpose dispatch; specialized call_0..call_n variants would avoid the push_arg/push_return_value loops for small arities")
}

// FinishAll is pass 3: it synthesizes the bootstrap, lays the arena's
// accumulated bytes into the glue module's own memory, re-exports the
// engine's memory and canonical ABI allocator functions, and writes the
// complete binary module to w. It is a programmer error to call this
// before every Import/Export call PreprocessAll promised has happened, or
// to call it more than once.
func (g *Generator) FinishAll(w io.Writer) error {
	if !g.preprocessed {
		programmerPanic("FinishAll called before PreprocessAll")
	}
	if g.finished {
		programmerPanic("FinishAll called more than once")
	}
	if g.importedCount != len(g.imports) {
		programmerPanic(fmt.Sprintf("FinishAll called with %d/%d imports registered", g.importedCount, len(g.imports)))
	}
	if g.exportedCount != len(g.exportFuncs) {
		programmerPanic(fmt.Sprintf("FinishAll called with %d/%d exports registered", g.exportedCount, len(g.exportFuncs)))
	}

	jsNameOffset := g.rt.Arena.AddString(g.cfg.ScriptName)
	jsOffset := g.rt.Arena.AddString(g.cfg.ScriptSource)

	modules := map[string]*initgen.ImportModule{}
	var order []string
	for i, imp := range g.imports {
		m, ok := modules[imp.iface]
		if !ok {
			m = &initgen.ImportModule{Name: imp.iface}
			modules[imp.iface] = m
			order = append(order, imp.iface)
		}
		m.Funcs = append(m.Funcs, initgen.ImportFunc{
			Name:          imp.fn.Name,
			GlueFuncIndex: g.acct.ImportGlueFunc(uint32(i)),
			NumArgs:       uint32(len(imp.fn.Params)),
		})
	}
	importModules := make([]initgen.ImportModule, 0, len(order))
	for _, name := range order {
		importModules = append(importModules, *modules[name])
	}

	bootstrap := initgen.Build(g.rt, g.engineTblIdx,
		jsNameOffset, uint32(len(g.cfg.ScriptName)),
		jsOffset, uint32(len(g.cfg.ScriptSource)),
		importModules)

	bootstrapType := g.mb.InternType(api.Signature{})
	bootstrapIdx := g.mb.AddFunction(bootstrapType, bootstrap.Bytes())
	if bootstrapIdx != g.acct.BootstrapIndex() {
		programmerPanic("bootstrap function registered out of order")
	}
	g.mb.AddExport("wizer.initialize", api.ExternTypeFunc, bootstrapIdx)

	if n := g.rt.Arena.MinPages(); n > 0 {
		glueMemIdx := g.mb.AddMemory(wasmenc.Limits{Min: n})
		g.mb.AddData(glueMemIdx, wasmenc.ConstI32Expr(0), g.rt.Arena.Bytes())
	}

	g.mb.AddExport("memory", api.ExternTypeMemory, g.engineMemIdx)
	for _, name := range []string{"canonical_abi_realloc", "canonical_abi_free"} {
		idx, err := enginelink.ExportIndex(name)
		if err != nil {
			programmerPanic(err.Error())
		}
		g.mb.AddExport(name, api.ExternTypeFunc, g.acct.EngineExportFunc(idx))
	}

	g.finished = true
	out := g.mb.Encode()
	g.log.Info("module encoded", zap.Int("size_bytes", len(out)))
	if _, err := w.Write(out); err != nil {
		return newErr(KindInput, "writing output module", err)
	}
	return nil
}

func flattenParams(params []idl.Param) ([]api.ValueType, error) {
	var out []api.ValueType
	for _, p := range params {
		switch {
		case p.Type.Kind == idl.KindU32:
			out = append(out, api.ValueTypeI32)
		case p.Type.IsListLike():
			out = append(out, api.ValueTypeI32, api.ValueTypeI32)
		default:
			return nil, fmt.Errorf("unsupported parameter type kind %v", p.Type.Kind)
		}
	}
	return out, nil
}

func flattenResultTypes(results []idl.Param) ([]api.ValueType, error) {
	var out []api.ValueType
	for _, r := range results {
		switch {
		case r.Type.Kind == idl.KindU32:
			out = append(out, api.ValueTypeI32)
		case r.Type.IsListLike():
			out = append(out, api.ValueTypeI32, api.ValueTypeI32)
		default:
			return nil, fmt.Errorf("unsupported result type kind %v", r.Type.Kind)
		}
	}
	return out, nil
}
