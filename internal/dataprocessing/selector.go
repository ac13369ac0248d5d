package dataprocessing

import (
	"strconv"
	"strings"

	"pangandash/pkg/contracts/domain"
)

// Select returns the rows of t whose value in sel.Column is one of sel.Values.
// An empty selection returns t unchanged. A column that does not exist also
// returns t unchanged, together with a warning. Values that match nothing
// yield an empty table, not an error.
func Select(t *domain.Table, sel domain.FilterSelection) (*domain.Table, []domain.Warning) {
	if sel.IsEmpty() {
		return t, nil
	}

	ref, ok := t.Lookup(sel.Column).Get()
	if !ok {
		return t, []domain.Warning{domain.FilterColumnMissingWarning(sel.Column)}
	}

	wanted := make(map[string]struct{}, len(sel.Values))
	for _, v := range sel.Values {
		wanted[matchKey(v)] = struct{}{}
	}

	rows := make([]int, 0, len(t.Rows))
	for i := range t.Rows {
		cell := t.Cell(i, ref)
		if cell.IsMissing() {
			continue
		}
		if _, hit := wanted[matchKey(cell.String())]; hit {
			rows = append(rows, i)
		}
	}
	return t.Subset(rows), nil
}

// DistinctValues lists the values of a column in first-appearance order, for
// populating a selector. Missing cells are skipped.
func DistinctValues(t *domain.Table, column string) domain.Option[[]string] {
	ref, ok := t.Lookup(column).Get()
	if !ok {
		return domain.None[[]string]()
	}

	seen := make(map[string]struct{})
	values := make([]string, 0)
	for i := range t.Rows {
		cell := t.Cell(i, ref)
		if cell.IsMissing() {
			continue
		}
		s := cell.String()
		key := matchKey(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		values = append(values, s)
	}
	return domain.Some(values)
}

// matchKey folds case and whitespace, and canonicalises numbers so that
// "2023" and "2023.0" select the same rows.
func matchKey(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
