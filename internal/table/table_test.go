package table

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/storage"
)

func TestParse_CSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFCity,Sales\nLondon,10\n\nParis, 12.5\nRome,\n")

	got, err := Parse(data, "csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []Column{{"City", Categorical}, {"Sales", Numeric}}
	if !reflect.DeepEqual(got.Columns, want) {
		t.Fatalf("columns = %+v, want %+v", got.Columns, want)
	}
	if len(got.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (blank line skipped)", len(got.Rows))
	}
	if v, ok := got.Float(1, 1); !ok || v != 12.5 {
		t.Fatalf("Float(1,1) = %v, %v", v, ok)
	}
	if _, ok := got.Float(2, 1); ok {
		t.Fatalf("empty cell should not be numeric")
	}
}

func TestParse_RaggedRows(t *testing.T) {
	got, err := Parse([]byte("a,,a\n1,2\n3,4,5,6\n"), "CSV")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	names := make([]string, len(got.Columns))
	for i, c := range got.Columns {
		names[i] = c.Name
	}
	if want := []string{"a", "Unnamed: 1", "a.1", "Unnamed: 3"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for _, row := range got.Rows {
		if len(row) != 4 {
			t.Fatalf("row %v not padded to 4 cells", row)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	for _, ext := range []string{"csv", "xlsx", "xls"} {
		got, err := Parse(nil, ext)
		if err != nil {
			t.Fatalf("Parse(%s): %v", ext, err)
		}
		if !got.Empty() {
			t.Fatalf("Parse(%s) = %+v, want empty table", ext, got)
		}
	}

	got, err := Parse([]byte("a,b\n"), "csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Columns) != 2 || !got.Empty() {
		t.Fatalf("header-only table = %+v, want two columns and no rows", got)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		ext  string
		data []byte
	}{
		{"csv", []byte("a,b\n1,\"unterminated\n")},
		{"xlsx", []byte("definitely not a zip archive")},
		{"xls", []byte("definitely not a compound file")},
		{"txt", []byte("a,b\n")},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.data, tt.ext); err == nil {
			t.Fatalf("Parse(%s) succeeded on malformed input", tt.ext)
		}
	}
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Frame Number", "Procrustes Similarity", "Joint Angle Distance", "Notes"},
		{1, 0.91, 12.5, "start"},
		{2, 0.93, 11.0, ""},
		{3, 0.95, 9.75, "end"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	// A second sheet must be ignored.
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.SetCellValue("Other", "A1", "ignored"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	got, err := Parse(buf.Bytes(), "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Column{
		{"Frame Number", Numeric},
		{"Procrustes Similarity", Numeric},
		{"Joint Angle Distance", Numeric},
		{"Notes", Categorical},
	}
	if !reflect.DeepEqual(got.Columns, want) {
		t.Fatalf("columns = %+v, want %+v", got.Columns, want)
	}
	if len(got.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(got.Rows))
	}
}

func TestParse_XLSXDates(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Date", "City", "Sales", "Week"},
		{45293, "London", 10, 45293},
		{45294, "Paris", 12.5, 45294},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	isoDate := "yyyy-mm-dd"
	styles := []struct {
		col   string
		style *excelize.Style
	}{
		{"A", &excelize.Style{CustomNumFmt: &isoDate}},
		{"C", &excelize.Style{NumFmt: 4}},
		{"D", &excelize.Style{NumFmt: 14}},
	}
	for _, s := range styles {
		id, err := f.NewStyle(s.style)
		if err != nil {
			t.Fatalf("new style: %v", err)
		}
		if err := f.SetCellStyle(sheet, s.col+"2", s.col+"3", id); err != nil {
			t.Fatalf("set style: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	got, err := Parse(buf.Bytes(), "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Column{
		{"Date", Categorical},
		{"City", Categorical},
		{"Sales", Numeric},
		{"Week", Categorical},
	}
	if !reflect.DeepEqual(got.Columns, want) {
		t.Fatalf("columns = %+v, want %+v", got.Columns, want)
	}
	if got.Rows[0][0] != "2024-01-02" || got.Rows[1][0] != "2024-01-03" {
		t.Fatalf("dates = %q, %q, want formatted dates", got.Rows[0][0], got.Rows[1][0])
	}
	if got.Rows[0][2] != "10" || got.Rows[1][2] != "12.5" {
		t.Fatalf("sales = %q, %q, want stored values", got.Rows[0][2], got.Rows[1][2])
	}
	if got.Rows[0][3] == "45293" {
		t.Fatalf("builtin date format left as serial %q", got.Rows[0][3])
	}
}

func TestDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"hh:mm:ss", true},
		{"[h]:mm", true},
		{"#,##0.00", false},
		{"0%", false},
		{"@", false},
	}
	for _, tt := range tests {
		if got := dateFormatCode(tt.code); got != tt.want {
			t.Fatalf("dateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestParse_XLS(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "sales.xls"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	got, err := Parse(data, "xls")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Table{
		Columns: []Column{
			{"City", Categorical},
			{"Sales", Numeric},
			{"Region", Categorical},
		},
		Rows: [][]string{
			{"London", "10", "North"},
			{"Paris", "12.5", "South"},
			{"Berlin", "-3", ""},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %+v, want %+v", got, want)
	}
}

// corruptXLS returns a compound file header whose directory chain points far
// outside the sector table.
func corruptXLS() []byte {
	data := make([]byte, 4096)
	copy(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le := binary.LittleEndian
	le.PutUint16(data[24:], 0x3E)
	le.PutUint16(data[26:], 3)
	le.PutUint16(data[28:], 0xFFFE)
	le.PutUint16(data[30:], 9)
	le.PutUint16(data[32:], 6)
	le.PutUint32(data[44:], 1)
	le.PutUint32(data[48:], 0x7FFFFF)
	le.PutUint32(data[56:], 0x1000)
	le.PutUint32(data[60:], 0xFFFFFFFE)
	le.PutUint32(data[68:], 0xFFFFFFFE)
	le.PutUint32(data[76:], 0)
	return data
}

func TestParse_CorruptWorkbook(t *testing.T) {
	tests := []struct {
		ext  string
		data []byte
	}{
		{"xls", corruptXLS()},
		{"xls", []byte("not a compound file")},
		{"xlsx", []byte("PK\x03\x04 truncated")},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.data, tt.ext); err == nil {
			t.Fatalf("Parse(%s, %q...) returned no error", tt.ext, tt.data[:8])
		}
	}

	h := &fakeHandle{files: map[string][]byte{"test/broken.xls": corruptXLS()}}
	_, err := Load(context.Background(), h, listing.FileEntry{Name: "broken.xls", Key: "test/broken.xls", Extension: "xls"})
	if !errors.Is(err, storage.ErrParse) {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestHead(t *testing.T) {
	full := &Table{Columns: []Column{{"n", Numeric}}}
	for i := 0; i < 120; i++ {
		full.Rows = append(full.Rows, []string{fmt.Sprint(i)})
	}

	if got := full.Head(50); len(got.Rows) != 50 {
		t.Fatalf("Head(50) = %d rows", len(got.Rows))
	}
	if got := full.Head(500); len(got.Rows) != 120 {
		t.Fatalf("Head(500) = %d rows", len(got.Rows))
	}
	if len(full.Rows) != 120 {
		t.Fatalf("Head mutated the full table")
	}
}

type fakeHandle struct {
	files map[string][]byte
}

func (h *fakeHandle) URI() storage.URI {
	return storage.URI{Scheme: storage.SchemeS3, Bucket: "bucket"}
}
func (h *fakeHandle) List(context.Context, string) ([]storage.Object, error) {
	return nil, nil
}

func (h *fakeHandle) Close() error { return nil }

func (h *fakeHandle) Read(_ context.Context, key string) ([]byte, error) {
	data, ok := h.files[key]
	if !ok {
		return nil, storage.NewError(storage.KindAccessDenied, "read", fmt.Errorf("%s: not found", key))
	}
	return data, nil
}

func TestLoad(t *testing.T) {
	h := &fakeHandle{files: map[string][]byte{
		"test/a.csv":   []byte("City,Sales\nLondon,10\n"),
		"test/bad.csv": []byte("a\n\"oops\n"),
	}}
	ctx := context.Background()

	got, err := Load(ctx, h, listing.FileEntry{Name: "a.csv", Key: "test/a.csv", Extension: "csv"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(got.Rows))
	}

	_, err = Load(ctx, h, listing.FileEntry{Name: "bad.csv", Key: "test/bad.csv", Extension: "csv"})
	if !errors.Is(err, storage.ErrParse) {
		t.Fatalf("err = %v, want parse error", err)
	}

	_, err = Load(ctx, h, listing.FileEntry{Name: "gone.csv", Key: "test/gone.csv", Extension: "csv"})
	if !errors.Is(err, storage.ErrAccessDenied) {
		t.Fatalf("err = %v, want read error kind preserved", err)
	}
}
