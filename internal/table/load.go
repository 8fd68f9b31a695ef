package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
	"github.com/xuri/excelize/v2"
	"github.com/xuri/nfp"

	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/storage"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load fetches the file from h and parses it. Read failures keep the kind
// reported by the handle; undecodable content fails with
// storage.KindParseError.
func Load(ctx context.Context, h storage.Handle, entry listing.FileEntry) (*Table, error) {
	data, err := h.Read(ctx, entry.Key)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data, entry.Extension)
	if err != nil {
		return nil, storage.NewError(storage.KindParseError, "load", fmt.Errorf("%s: %w", entry.FullPath, err))
	}
	return t, nil
}

// Parse decodes data according to ext ("csv", "xls" or "xlsx"). The first
// row is always the header. Empty input yields an empty table.
func Parse(data []byte, ext string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch listing.Extension("." + ext) {
	case "csv":
		records, err = readCSV(data)
	case "xlsx":
		records, err = readXLSX(data)
	case "xls":
		records, err = readXLS(data)
	default:
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return &Table{Columns: []Column{}, Rows: [][]string{}}, nil
	}
	return build(records[0], records[1:]), nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	return records, nil
}

// readXLSX returns the cell values of the first sheet. Numbers keep their
// stored value so that number formats do not hide them from type inference;
// cells with a date or time format use their formatted text instead.
func readXLSX(data []byte) (records [][]string, err error) {
	if len(data) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("xlsx: corrupt workbook: %v", r)
		}
	}()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
	}
	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
	}

	dates := make(map[int]bool)
	for r, row := range raw {
		for c, val := range row {
			if _, ok := parseNumber(val); !ok || r >= len(formatted) || c >= len(formatted[r]) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("xlsx: %w", err)
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("xlsx: %s: %w", cell, err)
			}
			isDate, seen := dates[styleID]
			if !seen {
				isDate = dateStyle(f, styleID)
				dates[styleID] = isDate
			}
			if isDate {
				row[c] = formatted[r][c]
			}
		}
	}
	return raw, nil
}

// dateStyle reports whether the style formats numbers as a date or time.
func dateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return dateFormatCode(*style.CustomNumFmt)
	}
	id := style.NumFmt
	return (14 <= id && id <= 22) || (27 <= id && id <= 36) || (45 <= id && id <= 47) || (50 <= id && id <= 58)
}

func dateFormatCode(code string) bool {
	parser := nfp.NumberFormatParser()
	for _, section := range parser.Parse(code) {
		for _, token := range section.Items {
			if token.TType == nfp.TokenTypeDateTimes || token.TType == nfp.TokenTypeElapsedDateTimes {
				return true
			}
		}
	}
	return false
}

// readXLS returns the cell values of the first sheet of a legacy BIFF
// workbook. The reader indexes sector chains straight from the file, so a
// corrupt compound file panics instead of failing.
func readXLS(data []byte) (records [][]string, err error) {
	if len(data) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("xls: corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xls: %w", err)
	}
	if wb.GetNumberSheets() == 0 {
		return nil, nil
	}
	sheet, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("xls: %w", err)
	}
	if sheet == nil {
		return nil, nil
	}

	for _, row := range sheet.GetRows() {
		records = append(records, xlsRowValues(row.GetCols()))
	}
	return records, nil
}

// xlsRowValues reads each cell's display string. Number and RK records
// already render their value here.
func xlsRowValues(cols []structure.CellData) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		out = append(out, col.GetString())
	}
	return out
}
