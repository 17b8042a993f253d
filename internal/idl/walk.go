package idl

import "fmt"

// Direction mirrors witx2::abi::LiftLower: which side of a call boundary
// a glue function is standing on decides whether GetArg hands back the
// function's own wasm locals or JS-held call arguments, and in turn
// which conversions run on the way in and out.
type Direction int

const (
	// Import is LowerArgsLiftResults: this is import glue, invoked from
	// the embedded JS with JS-held arguments that must be lowered to wasm
	// values before calling the real wasm import, then the call's wasm
	// results must be lifted back to JS values to hand back to JS.
	Import Direction = iota
	// Export is LiftArgsLowerResults: this is export glue, invoked by an
	// external caller with real wasm arguments that must be lifted to JS
	// values before calling the JS implementation, then the JS results
	// must be lowered back to wasm values to return to the caller.
	Export
)

// InstrKind enumerates the canonical-ABI instructions this stand-in
// walker emits - exactly the subset the original gen-spidermonkey source
// implements (every other witx2::abi::Instruction variant is a todo!()
// there), plus the two scalar conversions it actually wires up.
type InstrKind int

const (
	InstrGetArg InstrKind = iota
	InstrToWasmU32
	InstrToJSU32
	InstrListCanonLower
	InstrListCanonLift
	InstrListLower
	InstrListLift
	InstrIterElem
	InstrIterBasePointer
	InstrI32Load
	InstrI32Store
	InstrCallWasm
	InstrCallInterface
	InstrReturn
)

// Instr is one step of the canonical-ABI instruction stream that drives
// bindgen.Bindgen.Emit. Fields are populated according to Kind; each
// field's comment below names the kinds that read it.
type Instr struct {
	Kind InstrKind

	Nth int // GetArg

	Offset uint32 // I32Load, I32Store

	Element   Type // ListCanonLower, ListCanonLift, ListLower, ListLift
	HasFree   bool // ListCanonLift, ListLift: caller must free the source buffer
	HasRealloc bool // ListCanonLower, ListLower: realloc was supplied (no free needed downstream)
	Body      []Instr // ListLower, ListLift: per-element instruction body

	WasmModule string        // CallWasm
	WasmName   string        // CallWasm
	WasmParams []Type        // CallWasm
	WasmResult *Type         // CallWasm, nil if void

	CallFunc *Function // CallInterface

	Amt int // Return: number of values being returned
}

// Walk produces the canonical-ABI instruction stream for fn in the given
// direction. module is the IDL module name fn.Name's actual wasm import
// lives under (only consulted for Import direction's CallWasm step).
//
// Only api U32 parameters/results, String, and List(U32) are supported -
// this mirrors exactly the type coverage the original Rust bindgen
// shipped (every other conversion was left as a todo!() there too), not
// a limitation invented for this port.
func Walk(module string, fn Function, dir Direction) ([]Instr, error) {
	var instrs []Instr

	for i, p := range fn.Params {
		instrs = append(instrs, Instr{Kind: InstrGetArg, Nth: i})
		var conv []Instr
		var err error
		switch dir {
		case Import:
			conv, err = towardWasm(p.Type, dir)
		case Export:
			conv, err = towardJS(p.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("idl: param %q of %q: %w", p.Name, fn.Name, err)
		}
		instrs = append(instrs, conv...)
	}

	switch dir {
	case Import:
		var resultTy *Type
		if len(fn.Results) == 1 {
			resultTy = &fn.Results[0].Type
		} else if len(fn.Results) > 1 {
			return nil, fmt.Errorf("idl: %q: multiple results are unsupported", fn.Name)
		}
		instrs = append(instrs, Instr{
			Kind:       InstrCallWasm,
			WasmModule: module,
			WasmName:   fn.Name,
			WasmParams: paramTypes(fn.Params),
			WasmResult: resultTy,
		})
		for _, r := range fn.Results {
			conv, err := towardJS(r.Type)
			if err != nil {
				return nil, fmt.Errorf("idl: result of %q: %w", fn.Name, err)
			}
			instrs = append(instrs, conv...)
		}
	case Export:
		instrs = append(instrs, Instr{Kind: InstrCallInterface, CallFunc: &fn})
		for _, r := range fn.Results {
			conv, err := towardWasm(r.Type, dir)
			if err != nil {
				return nil, fmt.Errorf("idl: result of %q: %w", fn.Name, err)
			}
			instrs = append(instrs, conv...)
		}
	default:
		return nil, fmt.Errorf("idl: unknown direction %v", dir)
	}

	// Return's amt counts JS operands for Import (one per logical result,
	// since every result is lifted to exactly one JS value regardless of
	// its wire width) but counts flattened wasm values for Export (a
	// list-like result lowers to two wasm operands - ptr and len - that
	// both need returning).
	amt := len(fn.Results)
	if dir == Export {
		amt = 0
		for _, r := range fn.Results {
			if r.Type.IsListLike() {
				amt += 2
			} else {
				amt++
			}
		}
	}
	instrs = append(instrs, Instr{Kind: InstrReturn, Amt: amt})
	return instrs, nil
}

func paramTypes(ps []Param) []Type {
	out := make([]Type, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

// towardWasm converts the operand on top of the stack toward a wasm
// value: JS->wasm when dir == Import (lowering a param) or dir == Export
// (lowering a JS result back to wasm before Return).
func towardWasm(t Type, dir Direction) ([]Instr, error) {
	switch {
	case t.Kind == KindU32:
		return []Instr{{Kind: InstrToWasmU32}}, nil
	case t.Kind == KindString:
		return []Instr{{Kind: InstrListCanonLower, Element: Char()}}, nil
	case t.Kind == KindList && t.Element != nil && t.Element.Kind == KindU32:
		body := []Instr{
			{Kind: InstrIterElem},
			{Kind: InstrToWasmU32},
			{Kind: InstrIterBasePointer},
			{Kind: InstrI32Store, Offset: 0},
		}
		return []Instr{{Kind: InstrListLower, Element: U32(), Body: body}}, nil
	default:
		return nil, fmt.Errorf("unsupported type kind %v for %v direction", t.Kind, dir)
	}
}

// towardJS converts the operand on top of the stack toward a JS value:
// wasm->JS, used for import-glue results and export-glue params.
func towardJS(t Type) ([]Instr, error) {
	switch {
	case t.Kind == KindU32:
		return []Instr{{Kind: InstrToJSU32}}, nil
	case t.Kind == KindString:
		return []Instr{{Kind: InstrListCanonLift, Element: Char(), HasFree: true}}, nil
	case t.Kind == KindList && t.Element != nil && t.Element.Kind == KindU32:
		body := []Instr{
			{Kind: InstrIterBasePointer},
			{Kind: InstrI32Load, Offset: 0},
			{Kind: InstrToJSU32},
		}
		return []Instr{{Kind: InstrListLift, Element: U32(), Body: body, HasFree: true}}, nil
	default:
		return nil, fmt.Errorf("unsupported type kind %v", t.Kind)
	}
}
