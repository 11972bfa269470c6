// Package sheet reads uploaded stock sheets (.xlsx, .xls, .csv) into rows
// keyed by header. Only the first worksheet is read.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx, .xls or .csv")

type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Supported reports whether the file name has a readable extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}

// Read picks the decoder from the file name extension.
func Read(name string, r io.ReadSeeker) (*Table, error) {
	var (
		grid [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		grid, err = readXLSX(r)
	case ".xls":
		grid, err = readXLS(r)
	case ".csv":
		grid, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return toTable(grid), nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(r io.ReadSeeker) ([][]string, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, nil
	}
	var grid [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return grid, nil
}

// toTable uses the first non-blank row as headers. Blank rows and columns
// without a header are dropped.
func toTable(grid [][]string) *Table {
	t := &Table{}
	start := -1
	for i, row := range grid {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return t
	}
	for _, h := range grid[start] {
		t.Headers = append(t.Headers, strings.TrimSpace(h))
	}
	for _, row := range grid[start+1:] {
		if blank(row) {
			continue
		}
		rec := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if h == "" {
				continue
			}
			if _, seen := rec[h]; seen {
				continue
			}
			if j < len(row) {
				rec[h] = strings.TrimSpace(row[j])
			} else {
				rec[h] = ""
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
