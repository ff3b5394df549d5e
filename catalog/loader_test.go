package catalog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestLoadSpreadsheet(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"Numero", "Clave", "Nombre", "Siglas", "Clasificacion"},
		{"2.1", "MUN_001", "Municipio Uno", "MUN1", "Ayuntamiento"},
		{"2.2", "", "Sin clave", "", ""},
		{"2.3", "MUN_003", "", "", ""},
		{"2.4", " MUN_004 ", "Municipio Cuatro", "", ""},
	})

	entries, err := LoadSpreadsheet(buf, ScopeMunicipal)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		Ordinal:        "2.1",
		Key:            "MUN_001",
		Name:           "Municipio Uno",
		ShortCode:      "MUN1",
		Classification: "Ayuntamiento",
		Scope:          ScopeMunicipal,
		Active:         true,
	}, entries[0])
	assert.Equal(t, "MUN_004", entries[1].Key)
}

func TestLoadSpreadsheet_NotAWorkbook(t *testing.T) {
	_, err := LoadSpreadsheet(bytes.NewBufferString("not a zip"), ScopeState)
	require.Error(t, err)
}
