package scriptcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedScript(t *testing.T) {
	err := Validate("ok.js", "export function f(x) { return x + 1; }")
	require.NoError(t, err)
}

func TestValidateRejectsSyntaxError(t *testing.T) {
	err := Validate("bad.js", "function f(x) { return x + ")
	require.Error(t, err)
}
