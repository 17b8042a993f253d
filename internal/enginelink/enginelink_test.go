package enginelink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Asraelite/witx-bindgen/internal/wasmenc"
)

func TestExportsIsStable(t *testing.T) {
	require.Equal(t, 24, len(Exports))
	require.Equal(t, "_initialize", Exports[0].Name)
	require.Equal(t, "dump_i32", Exports[len(Exports)-1].Name)
}

func TestExportIndexFound(t *testing.T) {
	idx, err := ExportIndex("SMW_malloc")
	require.NoError(t, err)
	require.Equal(t, uint32(8), idx)
}

func TestExportIndexNotFound(t *testing.T) {
	_, err := ExportIndex("nonexistent")
	require.Error(t, err)
}

func TestLinkImportModeAssignsOneIndexPerExport(t *testing.T) {
	b := wasmenc.NewModuleBuilder()
	funcIdx, memIdx, tableIdx := LinkImportMode(b)

	require.Len(t, funcIdx, len(Exports))
	for i, idx := range funcIdx {
		require.Equal(t, uint32(i), idx)
	}
	require.Equal(t, uint32(0), memIdx)
	require.Equal(t, uint32(0), tableIdx)
}

func TestEmbedSpidermonkeyUnimplemented(t *testing.T) {
	require.Error(t, EmbedSpidermonkey())
}
