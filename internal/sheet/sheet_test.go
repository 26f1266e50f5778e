package sheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/ranking"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sh.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadSamples(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Kreise": {
			{"AGS", "Arbeitslosenquote"},
			{"11000", "9,1"},
			{"05315", "8,4"},
			{"09162", "-"},
			{"", "1,0"},
			{"02000", "1.234,5"},
		},
	})

	samples, err := ReadSamples(path, Options{SkipRows: 1, DecimalComma: true})
	require.NoError(t, err)
	require.Len(t, samples, 4)

	byID := indicator.FromSlice(samples)
	assert.InDelta(t, 9.1, *byID["11000"].Value, 1e-9)
	assert.InDelta(t, 8.4, *byID["05315"].Value, 1e-9)
	assert.Nil(t, byID["09162"].Value)
	assert.InDelta(t, 1234.5, *byID["02000"].Value, 1e-9)
}

func TestReadSamples_Columns(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Berlin", "42.5", "11000"},
		},
	})

	samples, err := ReadSamples(path, Options{RegionCol: 2, ValueCol: 1})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "11000", samples[0].RegionID)
	assert.InDelta(t, 42.5, *samples[0].Value, 1e-9)
}

func TestReadSamples_BadValue(t *testing.T) {
	_, err := ParseSamples([][]string{{"11000", "viele"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 region 11000")
}

func TestReadRows_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Daten": {{"a", "b"}},
	})

	rows, err := ReadRows(path, Options{SheetName: "Daten"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)

	_, err = ReadRows(path, Options{SheetName: "Fehlt"})
	assert.Error(t, err)

	_, err = ReadRows(path, Options{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadRows_MissingFile(t *testing.T) {
	_, err := ReadRows(filepath.Join(t.TempDir(), "nope.xlsx"), Options{})
	assert.Error(t, err)
}

func TestWriteRanking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranking.xlsx")
	key := indicator.Key{Indicator: "crime", SubMetric: "cases", Year: 2023}
	entries := []ranking.Entry{
		{RegionID: "11000", Name: "Berlin", Value: 300, Rank: 1, Percentage: 100},
		{RegionID: "05315", Name: "Köln", Value: 120, Rank: 2, Percentage: 40},
	}

	require.NoError(t, WriteRanking(path, key, indicator.Metric{Label: "Fälle: gesamt"}, entries))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, "Fälle gesamt", f.Sheets[0].Name)

	rows, err := ReadRows(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0][0])
	assert.Equal(t, "Köln", rows[1][2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Ranking", sheetName("[]"))
	assert.Len(t, []rune(sheetName("Anteil der Haushalte mit Kindern unter 18 Jahren")), 31)
}
