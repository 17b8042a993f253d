package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asraelite/witx-bindgen/internal/idl"
)

func writeIDLFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadIDLFileParsesImportsAndExports(t *testing.T) {
	path := writeIDLFile(t, `
interfaces:
  - name: host
    imports:
      - name: add_one
        params:
          - name: x
            type: u32
        results:
          - name: r
            type: u32
  - name: guest
    exports:
      - name: greet
        params:
          - name: s
            type: string
        results:
          - name: r
            type: string
`)

	imports, exports, exportIface, err := loadIDLFile(path)
	require.NoError(t, err)

	require.Len(t, imports, 1)
	assert.Equal(t, "host", imports[0].Interface)
	require.Len(t, imports[0].Funcs, 1)
	assert.Equal(t, "add_one", imports[0].Funcs[0].Name)
	assert.Equal(t, idl.U32(), imports[0].Funcs[0].Params[0].Type)

	assert.Equal(t, "guest", exportIface)
	require.Len(t, exports, 1)
	assert.Equal(t, "greet", exports[0].Name)
	assert.Equal(t, idl.String(), exports[0].Results[0].Type)
}

func TestLoadIDLFileRejectsUnknownType(t *testing.T) {
	path := writeIDLFile(t, `
interfaces:
  - name: host
    imports:
      - name: f
        params:
          - name: x
            type: bignum
`)
	_, _, _, err := loadIDLFile(path)
	require.Error(t, err)
}

func TestLoadIDLFileRejectsTwoExportInterfaces(t *testing.T) {
	path := writeIDLFile(t, `
interfaces:
  - name: a
    exports:
      - name: f
  - name: b
    exports:
      - name: g
`)
	_, _, _, err := loadIDLFile(path)
	require.Error(t, err)
}

func TestLoadIDLFileRejectsMissingFile(t *testing.T) {
	_, _, _, err := loadIDLFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
