package domain

import "fmt"

// WarningCode classifies non-fatal pipeline problems.
type WarningCode string

const (
	WarnMissingColumn       WarningCode = "missing_column"
	WarnEmptyGroup          WarningCode = "empty_group"
	WarnFilterColumnMissing WarningCode = "filter_column_missing"
	WarnNoNumericValues     WarningCode = "no_numeric_values"
)

// Warning is reported to the user; the affected section is skipped.
type Warning struct {
	Code    WarningCode `json:"code"`
	Column  string      `json:"column,omitempty"`
	Group   string      `json:"group,omitempty"`
	Message string      `json:"message"`
}

// MissingColumnWarning reports an expected column absent from the upload.
func MissingColumnWarning(column string) Warning {
	return Warning{
		Code:    WarnMissingColumn,
		Column:  column,
		Message: fmt.Sprintf("Kolom '%s' tidak ditemukan dalam data.", column),
	}
}

// EmptyGroupWarning reports a group none of whose columns are present.
func EmptyGroupWarning(group string) Warning {
	return Warning{
		Code:    WarnEmptyGroup,
		Group:   group,
		Message: fmt.Sprintf("Tidak ada kolom untuk '%s' yang ditemukan dalam data.", group),
	}
}

// FilterColumnMissingWarning reports a filter on a column the table lacks.
func FilterColumnMissingWarning(column string) Warning {
	return Warning{
		Code:    WarnFilterColumnMissing,
		Column:  column,
		Message: fmt.Sprintf("Kolom filter '%s' tidak ditemukan; data ditampilkan tanpa filter.", column),
	}
}

// NoNumericValuesWarning reports a present column without a single usable number.
func NoNumericValuesWarning(column string) Warning {
	return Warning{
		Code:    WarnNoNumericValues,
		Column:  column,
		Message: fmt.Sprintf("Kolom '%s' tidak memiliki nilai angka.", column),
	}
}

// NormalizationReport summarises what the normalizer touched.
type NormalizationReport struct {
	Normalized []string       `json:"normalized"`
	Absent     []string       `json:"absent"`
	Coerced    map[string]int `json:"coerced"`
}

// ColumnValue is a per-column number in an aggregate. Count is the number of
// non-missing cells that contributed.
type ColumnValue struct {
	Column string          `json:"column"`
	Value  Option[float64] `json:"value"`
	Count  int             `json:"count"`
}

// RankedRow is one row of a top-N selection.
type RankedRow struct {
	Row   int     `json:"row"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// CategoryCount is one slice of a value-count breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// GroupTotal holds the sums for one category of a sum_by group.
type GroupTotal struct {
	Category string        `json:"category"`
	Values   []ColumnValue `json:"values"`
	Total    float64       `json:"total"`
}

// Coordinate is a parsed location. Valid is false for the missing sentinel.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Valid     bool    `json:"valid"`
}

// MapPoint is a plottable location for one row.
type MapPoint struct {
	Row       int     `json:"row"`
	Label     string  `json:"label"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Bounds is the extent of a set of map points.
type Bounds struct {
	MinLongitude float64 `json:"min_longitude"`
	MinLatitude  float64 `json:"min_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
}

// AggregateResult is the outcome of evaluating one AggregationGroup. Which of
// the payload fields is filled depends on Op.
type AggregateResult struct {
	Group    string          `json:"group"`
	Title    string          `json:"title"`
	Op       AggregationOp   `json:"op"`
	Empty    bool            `json:"empty"`
	Values   []ColumnValue   `json:"values,omitempty"`
	Total    Option[float64] `json:"total"`
	Ranked   []RankedRow     `json:"ranked,omitempty"`
	Counts   []CategoryCount `json:"counts,omitempty"`
	Groups   []GroupTotal    `json:"groups,omitempty"`
	Points   []MapPoint      `json:"points,omitempty"`
	Bounds   *Bounds         `json:"bounds,omitempty"`
	Dropped  int             `json:"dropped,omitempty"`
	Warnings []Warning       `json:"warnings,omitempty"`
}
