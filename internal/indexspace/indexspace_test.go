package indexspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryBeforePreprocessPanics(t *testing.T) {
	a := New()
	require.Panics(t, func() { a.IDLImportBase() })
}

func TestLayoutOrder(t *testing.T) {
	a := New()
	a.Preprocess(2, 20, 3)

	require.Equal(t, uint32(0), a.IDLImportBase())
	require.Equal(t, uint32(2), a.EngineExportBase())
	require.Equal(t, uint32(22), a.ImportGlueBase())
	require.Equal(t, uint32(24), a.ExportGlueBase())
	require.Equal(t, uint32(27), a.BootstrapIndex())
	require.Equal(t, uint32(28), a.Total())
}

func TestIndexHelpersOffsetWithinPartition(t *testing.T) {
	a := New()
	a.Preprocess(2, 20, 3)

	require.Equal(t, uint32(0), a.IDLImportFunc(0))
	require.Equal(t, uint32(1), a.IDLImportFunc(1))
	require.Equal(t, uint32(2), a.EngineExportFunc(0))
	require.Equal(t, uint32(22), a.ImportGlueFunc(0))
	require.Equal(t, uint32(23), a.ImportGlueFunc(1))
	require.Equal(t, uint32(24), a.ExportGlueFunc(0))
	require.Equal(t, uint32(26), a.ExportGlueFunc(2))
}

func TestOutOfRangeIndexPanics(t *testing.T) {
	a := New()
	a.Preprocess(2, 20, 3)
	require.Panics(t, func() { a.IDLImportFunc(2) })
	require.Panics(t, func() { a.ExportGlueFunc(3) })
}
