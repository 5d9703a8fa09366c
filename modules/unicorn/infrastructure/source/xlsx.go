package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
)

// XLSXSource reads a worksheet whose first row is the header.
type XLSXSource struct {
	Path string
	// Sheet defaults to the first worksheet of the workbook.
	Sheet string
}

// Cells are read raw so number formats do not leak into values: a date cell
// comes back as its serial and is rendered as an ISO date here.
func (s *XLSXSource) Extract(ctx context.Context) ([]snapshot.RawRow, error) {
	f, err := excelize.OpenFile(s.Path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: %w", s.Path, ErrMissingHeader)
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s[%s]: %w", s.Path, sheet, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%s[%s]: %w", s.Path, sheet, ErrMissingHeader)
	}
	header, err := normalizeHeader(cells[0])
	if err != nil {
		return nil, fmt.Errorf("%s[%s]: %w", s.Path, sheet, err)
	}
	dateCols := dateColumns(header)
	date1904 := uses1904Dates(f)

	var rows []snapshot.RawRow
	for i, rowCells := range cells[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, col := range dateCols {
			if col < len(rowCells) {
				rowCells[col] = serialToDate(rowCells[col], date1904)
			}
		}
		// Worksheet rows are 1-based and the header takes the first.
		if row, ok := rowFromCells(i+2, header, rowCells); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s[%s]: %w", s.Path, sheet, ErrEmptySnapshot)
	}
	return rows, nil
}

func dateColumns(header []string) []int {
	var cols []int
	for i, name := range header {
		if f, ok := snapshot.CanonicalField(name); ok && f == snapshot.FieldDateJoined {
			cols = append(cols, i)
		}
	}
	return cols
}

func uses1904Dates(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}

// serialToDate renders an Excel date serial as 2006-01-02. Text cells are
// returned unchanged for the coercion layer to parse.
func serialToDate(raw string, date1904 bool) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return raw
	}
	t, err := excelize.ExcelDateToTime(v, date1904)
	if err != nil {
		return raw
	}
	return t.Format(time.DateOnly)
}
