package domain

import (
	"fmt"
	"strings"
)

// TableKind identifies one of the three dashboard datasets.
type TableKind string

const (
	KindHousehold            TableKind = "rumah-tangga"
	KindHouseholdSufficiency TableKind = "kemandirian-rt"
	KindHamletSufficiency    TableKind = "kemandirian-dusun"
)

// AllTableKinds returns the kinds in dashboard page order.
func AllTableKinds() []TableKind {
	return []TableKind{KindHousehold, KindHouseholdSufficiency, KindHamletSufficiency}
}

// ParseTableKind validates a kind slug.
func ParseTableKind(s string) (TableKind, error) {
	k := TableKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindHousehold, KindHouseholdSufficiency, KindHamletSufficiency:
		return k, nil
	}
	return "", fmt.Errorf("unknown table kind %q", s)
}

// Title is the page heading for the kind.
func (k TableKind) Title() string {
	switch k {
	case KindHousehold:
		return "Data Rumah Tangga"
	case KindHouseholdSufficiency:
		return "Kemandirian Pangan Rumah Tangga"
	case KindHamletSufficiency:
		return "Kemandirian Pangan Dusun"
	default:
		return string(k)
	}
}

// ColumnKind is the semantic type a column is coerced to.
type ColumnKind string

const (
	ColumnText       ColumnKind = "text"
	ColumnCategory   ColumnKind = "category"
	ColumnNumber     ColumnKind = "number"
	ColumnCurrency   ColumnKind = "currency"
	ColumnCount      ColumnKind = "count"
	ColumnPercentage ColumnKind = "percentage"
	ColumnCoordinate ColumnKind = "coordinate"
)

// IsNumeric reports whether cells of this kind are parsed to numbers.
func (k ColumnKind) IsNumeric() bool {
	switch k {
	case ColumnNumber, ColumnCurrency, ColumnCount, ColumnPercentage:
		return true
	}
	return false
}

// ColumnSpec describes a recognised column, matched by exact header text.
type ColumnSpec struct {
	Name         string            `json:"name" yaml:"name"`
	Kind         ColumnKind        `json:"kind" yaml:"kind"`
	DefaultLabel string            `json:"default_label,omitempty" yaml:"default_label,omitempty"`
	Synonyms     map[string]string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// AggregationOp selects what an AggregationGroup computes.
type AggregationOp string

const (
	OpSum         AggregationOp = "sum"
	OpMean        AggregationOp = "mean"
	OpMax         AggregationOp = "max"
	OpTopN        AggregationOp = "top_n"
	OpCountBy     AggregationOp = "count_by"
	OpSumBy       AggregationOp = "sum_by"
	OpCoordinates AggregationOp = "coordinates"
)

// AggregationGroup is a named set of columns evaluated as one category.
//
// Columns holds the measured columns. For top_n and coordinates, LabelColumn
// names the column shown next to each row; for sum_by, GroupBy names the
// categorical key.
type AggregationGroup struct {
	Name        string        `json:"name" yaml:"name"`
	Title       string        `json:"title" yaml:"title"`
	Op          AggregationOp `json:"op" yaml:"op"`
	Columns     []string      `json:"columns" yaml:"columns"`
	LabelColumn string        `json:"label_column,omitempty" yaml:"label_column,omitempty"`
	GroupBy     string        `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	N           int           `json:"n,omitempty" yaml:"n,omitempty"`
}

// FilterSelection restricts rows to those whose Column value is one of Values.
type FilterSelection struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// IsEmpty reports whether no filtering was requested.
func (f FilterSelection) IsEmpty() bool {
	return f.Column == "" || len(f.Values) == 0
}
