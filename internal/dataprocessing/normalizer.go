package dataprocessing

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pangandash/pkg/contracts/domain"
)

// DefaultCategoryLabel replaces junk values in categorical columns.
const DefaultCategoryLabel = "Tidak Ada"

var junkTokens = map[string]struct{}{
	"":     {},
	"0":    {},
	"nan":  {},
	"none": {},
	"null": {},
	"-":    {},
	"n/a":  {},
	"na":   {},
}

// groupedNumber matches spreadsheet display text such as 1,250 or 12,500.75.
var groupedNumber = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Normalize coerces every configured column that is present in t, in place.
// It never fails: cells that cannot be converted become missing (numeric
// columns) or the default label (categorical columns). Running it twice gives
// the same table.
func Normalize(t *domain.Table, specs []domain.ColumnSpec) domain.NormalizationReport {
	report := domain.NormalizationReport{
		Normalized: make([]string, 0, len(specs)),
		Absent:     make([]string, 0),
		Coerced:    make(map[string]int),
	}
	caser := cases.Title(language.Indonesian)

	for _, spec := range specs {
		ref, ok := t.Lookup(spec.Name).Get()
		if !ok {
			report.Absent = append(report.Absent, spec.Name)
			continue
		}
		report.Normalized = append(report.Normalized, spec.Name)

		coerced := 0
		for i, row := range t.Rows {
			cell := row[ref.Index]
			var out domain.Value
			switch {
			case spec.Kind.IsNumeric():
				out = NormalizeNumber(cell, spec.Kind)
				if out.IsMissing() && !isBlankValue(cell) {
					coerced++
				}
			case spec.Kind == domain.ColumnCategory:
				out = NormalizeCategory(cell, spec, caser)
			default:
				out = normalizeText(cell)
			}
			t.Rows[i][ref.Index] = out
		}
		if coerced > 0 {
			report.Coerced[spec.Name] = coerced
		}
	}
	return report
}

// NormalizeNumber converts a cell to a number. Whitespace and percent signs are
// stripped; currency cells also lose an "Rp" prefix and thousand separators.
// Anything unparseable becomes missing.
func NormalizeNumber(v domain.Value, kind domain.ColumnKind) domain.Value {
	switch v.Kind {
	case domain.ValueNumber:
		return v
	case domain.ValueMissing:
		return v
	}
	f, ok := ParseNumber(v.Text, kind)
	if !ok {
		return domain.Missing()
	}
	return domain.Number(f)
}

// ParseNumber parses free-form numeric text.
func ParseNumber(raw string, kind domain.ColumnKind) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	switch {
	case kind == domain.ColumnCurrency:
		s = stripCurrency(s)
	case groupedNumber.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if v := domain.Number(f); v.IsMissing() {
		return 0, false
	}
	return f, true
}

func stripCurrency(s string) string {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rp") {
		s = strings.TrimSpace(s[2:])
		s = strings.TrimPrefix(s, ".")
		s = strings.TrimSpace(s)
	}
	s = strings.ReplaceAll(s, " ", "")

	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// 1.500.000,50 or 1,500,000.50
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots == 1 && digitsAfter(s, ".") == 3:
		// 250.000
		return strings.ReplaceAll(s, ".", "")
	case commas == 1 && digitsAfter(s, ",") == 3:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

func digitsAfter(s, sep string) int {
	return len(s) - strings.Index(s, sep) - len(sep)
}

// NormalizeCategory trims and title-cases a categorical cell, mapping junk
// tokens to the column's default label and applying its synonym table.
func NormalizeCategory(v domain.Value, spec domain.ColumnSpec, caser cases.Caser) domain.Value {
	label := spec.DefaultLabel
	if label == "" {
		label = DefaultCategoryLabel
	}

	text := strings.Join(strings.Fields(v.String()), " ")
	key := strings.ToLower(text)
	if _, junk := junkTokens[key]; junk {
		return domain.Text(caser.String(label))
	}
	if syn, ok := spec.Synonyms[key]; ok {
		text = syn
	}
	return domain.Text(caser.String(text))
}

func normalizeText(v domain.Value) domain.Value {
	if v.Kind != domain.ValueText {
		return v
	}
	s := strings.TrimSpace(v.Text)
	if s == "" {
		return domain.Missing()
	}
	return domain.Text(s)
}

func isBlankValue(v domain.Value) bool {
	return v.IsMissing() || (v.Kind == domain.ValueText && strings.TrimSpace(v.Text) == "")
}
