// Package table loads CSV and spreadsheet files into an in-memory table of
// named, typed columns.
package table

import (
	"strconv"
	"strings"
)

// ColumnType is the inferred type of a column.
type ColumnType string

const (
	Numeric     ColumnType = "numeric"
	Categorical ColumnType = "categorical"
)

// Column is a named column in declared (left to right) order.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Table is a loaded file. Every row has exactly len(Columns) cells; missing
// cells are empty strings.
type Table struct {
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool {
	return t == nil || len(t.Columns) == 0 || len(t.Rows) == 0
}

// Head returns a table holding at most the first n rows. The columns and
// their inferred types are those of the full table.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HasColumns reports whether every name is a column of t. Matching is exact
// and case-sensitive.
func (t *Table) HasColumns(names ...string) bool {
	for _, name := range names {
		if t.Index(name) < 0 {
			return false
		}
	}
	return true
}

// ColumnsOf returns the columns of type typ in declared order.
func (t *Table) ColumnsOf(typ ColumnType) []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Float returns the numeric value of a cell. ok is false for empty or
// non-numeric cells.
func (t *Table) Float(row, col int) (v float64, ok bool) {
	return parseNumber(t.Rows[row][col])
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// build turns a header and raw records into a Table. Blank records are
// skipped; short records are padded and records longer than the header add
// unnamed columns.
func build(header []string, records [][]string) *Table {
	width := len(header)
	var rows [][]string
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if len(rec) > width {
			width = len(rec)
		}
		rows = append(rows, rec)
	}

	names := columnNames(header, width)
	for i, rec := range rows {
		if len(rec) < width {
			padded := make([]string, width)
			copy(padded, rec)
			rows[i] = padded
		}
	}

	t := &Table{Columns: make([]Column, width), Rows: rows}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	for i, name := range names {
		t.Columns[i] = Column{Name: name, Type: inferType(rows, i)}
	}
	return t
}

// columnNames names blank headers "Unnamed: <i>" and suffixes duplicates
// with ".<n>".
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

// inferType marks a column numeric when every non-empty cell parses as a
// number.
func inferType(rows [][]string, col int) ColumnType {
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if _, ok := parseNumber(cell); !ok {
			return Categorical
		}
	}
	return Numeric
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
