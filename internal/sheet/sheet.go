// Package sheet reads indicator tables from XLSX workbooks and writes
// rankings back out.
package sheet

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/ranking"
)

// Options selects the sheet and columns holding region ids and values.
type Options struct {
	SheetIndex   int    // default 0
	SheetName    string // if set, overrides SheetIndex
	SkipRows     int    // header rows to skip
	RegionCol    int    // default 0
	ValueCol     int    // default 1
	DecimalComma bool   // values use "," as the decimal separator
}

// ReadRows returns every row of the selected sheet as strings.
func ReadRows(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: open %s", path)
	}

	sh, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sh.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// ReadSamples reads region/value pairs. Blank values and the statistical
// office placeholders "-", "." and "x" become missing samples; rows without
// a region id are dropped.
func ReadSamples(path string, opts Options) ([]indicator.Sample, error) {
	rows, err := ReadRows(path, opts)
	if err != nil {
		return nil, err
	}
	return ParseSamples(rows, opts)
}

// ParseSamples converts rows to samples. See ReadSamples.
func ParseSamples(rows [][]string, opts Options) ([]indicator.Sample, error) {
	regionCol, valueCol := opts.RegionCol, opts.ValueCol
	if regionCol == 0 && valueCol == 0 {
		valueCol = 1
	}

	out := make([]indicator.Sample, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		region := cell(row, regionCol)
		if region == "" {
			skipped++
			continue
		}
		v, err := parseValue(cell(row, valueCol), opts.DecimalComma)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: row %d region %s", i+opts.SkipRows+1, region)
		}
		out = append(out, indicator.Sample{RegionID: region, Value: v})
	}
	if skipped > 0 {
		zap.L().Debug("sheet: rows without region id dropped", zap.Int("rows", skipped))
	}
	return out, nil
}

func parseValue(raw string, decimalComma bool) (*float64, error) {
	switch raw {
	case "", "-", ".", "x", "X", "...":
		return nil, nil
	}
	if decimalComma {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse value %q", raw)
	}
	return &v, nil
}

// WriteRanking saves entries as a one-sheet workbook.
func WriteRanking(path string, key indicator.Key, metric indicator.Metric, entries []ranking.Entry) error {
	f := xlsx.NewFile()
	name := metric.Label
	if name == "" {
		name = key.Indicator
	}
	sh, err := f.AddSheet(sheetName(name))
	if err != nil {
		return eris.Wrap(err, "sheet: add sheet")
	}

	header := sh.AddRow()
	for _, h := range []string{"Rank", "Region", "Name", "Value", "Percent"} {
		header.AddCell().SetString(h)
	}
	for _, e := range entries {
		row := sh.AddRow()
		row.AddCell().SetInt(e.Rank)
		row.AddCell().SetString(e.RegionID)
		row.AddCell().SetString(e.Name)
		row.AddCell().SetFloat(e.Value)
		row.AddCell().SetFloat(e.Percentage)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "sheet: save %s", path)
	}
	return nil
}

// sheetName trims to the 31 characters Excel allows and drops the
// characters it rejects.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	if s == "" {
		s = "Ranking"
	}
	return s
}

func pickSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sh, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("sheet: %q not found", opts.SheetName)
		}
		return sh, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("sheet: index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
