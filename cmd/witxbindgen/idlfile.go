package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Asraelite/witx-bindgen/internal/idl"
	witxbindgen "github.com/Asraelite/witx-bindgen"
)

// idlFile is the on-disk shape of the YAML IDL description this CLI reads.
// The real IDL parser and its Interface/Function/Type model are out of this
// module's scope (spec.md §1 names them an external collaborator); this is
// just enough surface for the generate command to drive the Generator
// end-to-end against a hand-written file instead of Go literals.
type idlFile struct {
	Interfaces []idlInterface `yaml:"interfaces"`
}

type idlInterface struct {
	Name    string    `yaml:"name"`
	Imports []idlFunc `yaml:"imports"`
	Exports []idlFunc `yaml:"exports"`
}

type idlFunc struct {
	Name    string     `yaml:"name"`
	Params  []idlParam `yaml:"params"`
	Results []idlParam `yaml:"results"`
}

type idlParam struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func loadIDLFile(path string) (imports []witxbindgen.ImportSpec, exports []idl.Function, exportIface string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("reading IDL file: %w", err)
	}

	var f idlFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, "", fmt.Errorf("parsing IDL file: %w", err)
	}

	for _, iface := range f.Interfaces {
		if len(iface.Imports) > 0 {
			spec := witxbindgen.ImportSpec{Interface: iface.Name}
			for _, fn := range iface.Imports {
				converted, err := convertFunc(fn)
				if err != nil {
					return nil, nil, "", fmt.Errorf("interface %q import %q: %w", iface.Name, fn.Name, err)
				}
				spec.Funcs = append(spec.Funcs, converted)
			}
			imports = append(imports, spec)
		}
		if len(iface.Exports) > 0 {
			if exportIface != "" && exportIface != iface.Name {
				return nil, nil, "", fmt.Errorf("more than one interface declares exports (%q and %q); only one exported interface is supported per run", exportIface, iface.Name)
			}
			exportIface = iface.Name
			for _, fn := range iface.Exports {
				converted, err := convertFunc(fn)
				if err != nil {
					return nil, nil, "", fmt.Errorf("interface %q export %q: %w", iface.Name, fn.Name, err)
				}
				exports = append(exports, converted)
			}
		}
	}
	return imports, exports, exportIface, nil
}

func convertFunc(fn idlFunc) (idl.Function, error) {
	out := idl.Function{Name: fn.Name}
	for _, p := range fn.Params {
		t, err := convertType(p.Type)
		if err != nil {
			return idl.Function{}, fmt.Errorf("param %q: %w", p.Name, err)
		}
		out.Params = append(out.Params, idl.Param{Name: p.Name, Type: t})
	}
	for _, r := range fn.Results {
		t, err := convertType(r.Type)
		if err != nil {
			return idl.Function{}, fmt.Errorf("result %q: %w", r.Name, err)
		}
		out.Results = append(out.Results, idl.Param{Name: r.Name, Type: t})
	}
	return out, nil
}

func convertType(name string) (idl.Type, error) {
	switch name {
	case "u8":
		return idl.U8(), nil
	case "u16":
		return idl.U16(), nil
	case "u32":
		return idl.U32(), nil
	case "u64":
		return idl.U64(), nil
	case "s8":
		return idl.S8(), nil
	case "s16":
		return idl.S16(), nil
	case "s32":
		return idl.S32(), nil
	case "s64":
		return idl.S64(), nil
	case "char":
		return idl.Char(), nil
	case "string":
		return idl.String(), nil
	case "list<u32>":
		return idl.List(idl.U32()), nil
	default:
		return idl.Type{}, fmt.Errorf("unsupported IDL type %q", name)
	}
}
