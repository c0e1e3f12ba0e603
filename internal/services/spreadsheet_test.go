package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeXLSX saves rows to a new workbook, starting at startRow (1-based).
func writeXLSX(t *testing.T, startRow int, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, startRow+i)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}

	path := filepath.Join(t.TempDir(), "upload.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet("balance.xlsx"))
	assert.True(t, IsSpreadsheet("BALANCE.XLS"))
	assert.False(t, IsSpreadsheet("balance.csv"))
	assert.False(t, IsSpreadsheet("balance"))
}

func TestReadFirstSheet_XLSX(t *testing.T) {
	path := writeXLSX(t, 1, [][]any{
		{"Código", "Valor", "Fecha"},
		{110505.0, 1234.5, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	})

	rows, err := ReadFirstSheet(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Código", "Valor", "Fecha"}, rows[0])
	assert.Equal(t, "110505", rows[1][0])
	assert.Equal(t, "1234.5", rows[1][1])
	assert.Equal(t, "2024-06-01", cleanDate(rows[1][2]))
}

func TestReadFirstSheet_Unsupported(t *testing.T) {
	_, err := ReadFirstSheet("data.csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadFirstSheet_MissingFile(t *testing.T) {
	_, err := ReadFirstSheet(filepath.Join(t.TempDir(), "nope.xls"))
	assert.Error(t, err)
}

func TestCleanDecimal(t *testing.T) {
	tests := map[string]string{
		"":           "0",
		"nan":        "0",
		"NaN":        "0",
		"abc":        "0",
		"1,234.56":   "1234.56",
		" -10.5 ":    "-10.5",
		"1.5E+3":     "1500",
		"1000000.00": "1000000",
	}
	for in, want := range tests {
		got := cleanDecimal(in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "input %q got %s", in, got)
	}
}

func TestCleanDate(t *testing.T) {
	tests := map[string]string{
		"01/06/2024":          "2024-06-01",
		"2024-06-30":          "2024-06-30",
		"2024-06-30 00:00:00": "2024-06-30",
		"45444":               "2024-06-01",
		"":                    "",
		"nan":                 "",
		"junio":               "",
		"31/02/2024":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanDate(in), "input %q", in)
	}
}

func TestHeaderIndex(t *testing.T) {
	idx := headerIndex([]string{" Nivel ", "", "Nivel", "Saldo final"})
	assert.Equal(t, 0, idx["Nivel"])
	assert.Equal(t, 3, idx["Saldo final"])
	assert.Len(t, idx, 2)
}
