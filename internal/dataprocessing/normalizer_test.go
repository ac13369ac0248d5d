package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pangandash/pkg/contracts/domain"
)

func textTable(kind domain.TableKind, columns []string, rows ...[]string) *domain.Table {
	t := domain.NewTable("test", kind, columns)
	for _, r := range rows {
		cells := make([]domain.Value, len(r))
		for i, s := range r {
			if s == "" {
				cells[i] = domain.Missing()
				continue
			}
			cells[i] = domain.Text(s)
		}
		t.AppendRow(cells)
	}
	return t
}

func TestNormalizePercentageColumn(t *testing.T) {
	table := textTable(domain.KindHouseholdSufficiency, []string{"Kemandirian (%)"},
		[]string{"45%"}, []string{"  12.5 "}, []string{"abc"})

	report := Normalize(table, []domain.ColumnSpec{{Name: "Kemandirian (%)", Kind: domain.ColumnPercentage}})

	col := table.Values(domain.ColumnRef{Name: "Kemandirian (%)", Index: 0})
	assert.Equal(t, []domain.Value{domain.Number(45), domain.Number(12.5), domain.Missing()}, col)
	assert.Equal(t, map[string]int{"Kemandirian (%)": 1}, report.Coerced)

	res := Aggregate(table, domain.AggregationGroup{Name: "total", Op: domain.OpSum, Columns: []string{"Kemandirian (%)"}})
	total, ok := res.Total.Get()
	require.True(t, ok)
	assert.InDelta(t, 57.5, total, 1e-9, "missing cells are excluded from the sum")
	assert.Equal(t, 2, res.Values[0].Count)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   domain.ColumnKind
		want   float64
		wantOK bool
	}{
		{name: "plain", raw: "12", kind: domain.ColumnNumber, want: 12, wantOK: true},
		{name: "percent with spaces", raw: " 45 % ", kind: domain.ColumnPercentage, want: 45, wantOK: true},
		{name: "negative decimal", raw: "-7.25", kind: domain.ColumnNumber, want: -7.25, wantOK: true},
		{name: "rupiah with dots", raw: "Rp 1.500.000", kind: domain.ColumnCurrency, want: 1500000, wantOK: true},
		{name: "rupiah prefix with dot", raw: "Rp.250.000", kind: domain.ColumnCurrency, want: 250000, wantOK: true},
		{name: "indonesian decimal comma", raw: "1.500,50", kind: domain.ColumnCurrency, want: 1500.5, wantOK: true},
		{name: "english thousands", raw: "1,500,000", kind: domain.ColumnCurrency, want: 1500000, wantOK: true},
		{name: "single dot currency is decimal", raw: "12.5", kind: domain.ColumnCurrency, want: 12.5, wantOK: true},
		{name: "decimal comma", raw: "12,5", kind: domain.ColumnCurrency, want: 12.5, wantOK: true},
		{name: "text", raw: "abc", kind: domain.ColumnNumber},
		{name: "empty", raw: "   ", kind: domain.ColumnCount},
		{name: "nan", raw: "nan", kind: domain.ColumnNumber},
		{name: "infinity", raw: "Inf", kind: domain.ColumnNumber},
		{name: "dotted thousands outside currency", raw: "1.500.000", kind: domain.ColumnNumber},
		{name: "grouped count", raw: "1,250", kind: domain.ColumnCount, want: 1250, wantOK: true},
		{name: "grouped number with decimals", raw: "-12,500.75", kind: domain.ColumnNumber, want: -12500.75, wantOK: true},
		{name: "grouped percentage", raw: "1,050.5%", kind: domain.ColumnPercentage, want: 1050.5, wantOK: true},
		{name: "broken grouping", raw: "1,25,0", kind: domain.ColumnNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.raw, tt.kind)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	spec := domain.ColumnSpec{
		Name:         "Pengelolaan Sampah Organik",
		Kind:         domain.ColumnCategory,
		DefaultLabel: "Tidak Dikelola",
		Synonyms:     map[string]string{"bakar": "Dibakar", "dijadikan kompos": "Dikompos"},
	}
	caser := cases.Title(language.Indonesian)

	tests := []struct {
		name string
		in   domain.Value
		want string
	}{
		{name: "capitalized", in: domain.Text("dibakar"), want: "Dibakar"},
		{name: "upper case folded", in: domain.Text("DIBUANG"), want: "Dibuang"},
		{name: "whitespace collapsed", in: domain.Text("  dijadikan   kompos "), want: "Dikompos"},
		{name: "synonym", in: domain.Text("Bakar"), want: "Dibakar"},
		{name: "empty", in: domain.Text(""), want: "Tidak Dikelola"},
		{name: "zero", in: domain.Text("0"), want: "Tidak Dikelola"},
		{name: "numeric zero", in: domain.Number(0), want: "Tidak Dikelola"},
		{name: "nan", in: domain.Text("NaN"), want: "Tidak Dikelola"},
		{name: "missing", in: domain.Missing(), want: "Tidak Dikelola"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCategory(tt.in, spec, caser)
			assert.Equal(t, domain.Text(tt.want), got)
		})
	}
}

func TestNormalizeCategoryDefaultLabel(t *testing.T) {
	got := NormalizeCategory(domain.Text("-"), domain.ColumnSpec{Kind: domain.ColumnCategory}, cases.Title(language.Indonesian))
	assert.Equal(t, domain.Text(DefaultCategoryLabel), got)
}

func TestNormalizeReportsAbsentColumns(t *testing.T) {
	table := textTable(domain.KindHousehold, []string{"Nama Kepala Keluarga"}, []string{" Budi "})

	report := Normalize(table, []domain.ColumnSpec{
		{Name: "Nama Kepala Keluarga", Kind: domain.ColumnText},
		{Name: "Dusun", Kind: domain.ColumnCategory},
	})

	assert.Equal(t, []string{"Nama Kepala Keluarga"}, report.Normalized)
	assert.Equal(t, []string{"Dusun"}, report.Absent)
	assert.Empty(t, report.Coerced)
	assert.Equal(t, domain.Text("Budi"), table.Rows[0][0])
	assert.Equal(t, []string{"Nama Kepala Keluarga"}, table.Columns, "absent columns are not added")
}

func TestNormalizeIsIdempotent(t *testing.T) {
	schema, ok := DefaultCatalog().Schema(domain.KindHousehold)
	require.True(t, ok)

	table := textTable(domain.KindHousehold,
		[]string{"Nama Kepala Keluarga", "Dusun", "Pendapatan per Bulan (Rp)", "Sapi (ekor)", "Pengelolaan Sampah Organik", "Pengelolaan Sampah Anorganik", "Koordinat"},
		[]string{" Budi ", "krajan", "Rp 1.500.000", "2", "bakar", "tps", "112.75, -7.25"},
		[]string{"Siti", "", "abc", " 3 ", "nan", "Dijual", "invalid"},
		[]string{"Joko", "SUMBER  rejo", "", "", "dijadikan kompos", "", ""},
	)

	Normalize(table, schema.Columns)
	once := table.Clone()
	Normalize(table, schema.Columns)

	assert.Equal(t, once, table)
	assert.Equal(t, domain.Text("Sumber Rejo"), once.Rows[2][1])
	assert.Equal(t, domain.Text("Tidak Diketahui"), once.Rows[1][1])
	assert.Equal(t, domain.Text("Dibuang Ke Tps"), once.Rows[0][5])
	assert.Equal(t, domain.Number(1500000), once.Rows[0][2])
}

func TestCatalogSynonymsAreStable(t *testing.T) {
	caser := cases.Title(language.Indonesian)
	for _, schema := range DefaultCatalog().Tables {
		for _, col := range schema.Columns {
			if col.Kind != domain.ColumnCategory {
				continue
			}
			for key := range col.Synonyms {
				first := NormalizeCategory(domain.Text(key), col, caser)
				second := NormalizeCategory(first, col, caser)
				assert.Equal(t, first, second, "%s/%s synonym %q", schema.Kind, col.Name, key)
			}
		}
	}
}
