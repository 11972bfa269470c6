package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("stock.xlsx"))
	assert.True(t, Supported("STOCK.XLS"))
	assert.True(t, Supported("stock.csv"))
	assert.False(t, Supported("stock.pdf"))
	assert.False(t, Supported("stock"))
}

func TestRead_CSV(t *testing.T) {
	data := "\ufeffProduct Type,Product Name,Length,\n" +
		"\n" +
		"blankets,Blanket A,10,extra\n" +
		",,,\n" +
		"ink,Cyan\n"

	tbl, err := Read("upload.csv", strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Product Type", "Product Name", "Length", ""}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, map[string]string{"Product Type": "blankets", "Product Name": "Blanket A", "Length": "10"}, tbl.Rows[0])
	assert.Equal(t, map[string]string{"Product Type": "ink", "Product Name": "Cyan", "Length": ""}, tbl.Rows[1])
}

func TestRead_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sh := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sh, "A1", &[]any{"productType", "productName", "sqMtr"}))
	require.NoError(t, f.SetSheetRow(sh, "A2", &[]any{"underpacking", "U 0.3", 12.5}))
	require.NoError(t, f.SetSheetRow(sh, "A4", &[]any{"chemicals", "Fountain"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := Read("upload.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"productType", "productName", "sqMtr"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "12.5", tbl.Rows[0]["sqMtr"])
	assert.Equal(t, "Fountain", tbl.Rows[1]["productName"])
	assert.Equal(t, "", tbl.Rows[1]["sqMtr"])
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read("upload.txt", strings.NewReader("a,b"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRead_CorruptXLSX(t *testing.T) {
	_, err := Read("upload.xlsx", strings.NewReader("not a zip"))
	assert.Error(t, err)
}

func TestToTable_DuplicateHeaderKeepsFirst(t *testing.T) {
	tbl := toTable([][]string{
		{"", ""},
		{"name", "name"},
		{"a", "b"},
	})
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "a", tbl.Rows[0]["name"])
}
