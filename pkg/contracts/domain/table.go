package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies what a cell holds.
type ValueKind int

const (
	ValueMissing ValueKind = iota
	ValueText
	ValueNumber
)

// Value is a single table cell. Exactly one of text, number or missing.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
}

// Text returns a text cell.
func Text(s string) Value {
	return Value{Kind: ValueText, Text: s}
}

// Number returns a numeric cell. NaN and infinities are stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Value{Kind: ValueNumber, Number: f}
}

// Missing returns an empty cell.
func Missing() Value {
	return Value{Kind: ValueMissing}
}

// IsMissing reports whether the cell is empty.
func (v Value) IsMissing() bool {
	return v.Kind == ValueMissing
}

// Float returns the numeric content of the cell.
func (v Value) Float() (float64, bool) {
	if v.Kind != ValueNumber {
		return 0, false
	}
	return v.Number, true
}

// String renders the cell the way it is shown and matched against filters.
func (v Value) String() string {
	switch v.Kind {
	case ValueText:
		return v.Text
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes text as a string, numbers as numbers and missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueText:
		return json.Marshal(v.Text)
	case ValueNumber:
		return json.Marshal(v.Number)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("cell is neither string, number nor null: %w", err)
	}
	*v = Number(f)
	return nil
}

// ColumnRef points at a column that exists in a specific table.
type ColumnRef struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Table is an uploaded dataset. Every row has exactly len(Columns) cells.
type Table struct {
	Name    string    `json:"name"`
	Kind    TableKind `json:"kind"`
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// NewTable creates an empty table with the given header.
func NewTable(name string, kind TableKind, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Name:    name,
		Kind:    kind,
		Columns: cols,
		Rows:    make([][]Value, 0),
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Lookup finds a column by its exact header text.
func (t *Table) Lookup(name string) Option[ColumnRef] {
	if t == nil {
		return None[ColumnRef]()
	}
	for i, c := range t.Columns {
		if c == name {
			return Some(ColumnRef{Name: c, Index: i})
		}
	}
	return None[ColumnRef]()
}

// AppendRow adds a row, padding with missing cells or truncating to the header width.
func (t *Table) AppendRow(cells []Value) {
	row := make([]Value, len(t.Columns))
	copy(row, cells)
	for i := len(cells); i < len(row); i++ {
		row[i] = Missing()
	}
	t.Rows = append(t.Rows, row)
}

// Cell returns the value at row i of the referenced column.
func (t *Table) Cell(i int, ref ColumnRef) Value {
	return t.Rows[i][ref.Index]
}

// Values returns a copy of the referenced column.
func (t *Table) Values(ref ColumnRef) []Value {
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[ref.Index]
	}
	return out
}

// Numbers returns the numeric cells of a column, skipping everything else.
func (t *Table) Numbers(ref ColumnRef) []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if f, ok := row[ref.Index].Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Subset returns a new table holding the given rows in the given order.
func (t *Table) Subset(rows []int) *Table {
	out := NewTable(t.Name, t.Kind, t.Columns)
	out.Rows = make([][]Value, 0, len(rows))
	for _, i := range rows {
		row := make([]Value, len(t.Rows[i]))
		copy(row, t.Rows[i])
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	idx := make([]int, len(t.Rows))
	for i := range idx {
		idx[i] = i
	}
	return t.Subset(idx)
}
