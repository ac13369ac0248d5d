package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/pkg/contracts/domain"
)

func dusunTable() *domain.Table {
	t := domain.NewTable("dusun", domain.KindHamletSufficiency, []string{"Dusun", "Tahun"})
	t.AppendRow([]domain.Value{domain.Text("Krajan"), domain.Number(2022)})
	t.AppendRow([]domain.Value{domain.Text("Sumber"), domain.Number(2023)})
	t.AppendRow([]domain.Value{domain.Text("Krajan"), domain.Number(2023)})
	t.AppendRow([]domain.Value{domain.Missing(), domain.Number(2021)})
	return t
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		sel          domain.FilterSelection
		wantRows     int
		wantWarnCode domain.WarningCode
		wantSame     bool
	}{
		{name: "single value", sel: domain.FilterSelection{Column: "Dusun", Values: []string{"Krajan"}}, wantRows: 2},
		{name: "case insensitive", sel: domain.FilterSelection{Column: "Dusun", Values: []string{" krajan "}}, wantRows: 2},
		{name: "several values", sel: domain.FilterSelection{Column: "Dusun", Values: []string{"Krajan", "Sumber"}}, wantRows: 3},
		{name: "numeric column", sel: domain.FilterSelection{Column: "Tahun", Values: []string{"2023.0"}}, wantRows: 2},
		{name: "value not present", sel: domain.FilterSelection{Column: "Dusun", Values: []string{"Wonosari"}}, wantRows: 0},
		{name: "empty selection", sel: domain.FilterSelection{Column: "Dusun"}, wantRows: 4, wantSame: true},
		{
			name:         "absent column",
			sel:          domain.FilterSelection{Column: "Desa", Values: []string{"Krajan"}},
			wantRows:     4,
			wantWarnCode: domain.WarnFilterColumnMissing,
			wantSame:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := dusunTable()
			got, warnings := Select(table, tt.sel)

			require.NotNil(t, got)
			assert.Equal(t, tt.wantRows, got.Len())
			assert.Equal(t, table.Columns, got.Columns)
			if tt.wantSame {
				assert.Same(t, table, got)
			}
			if tt.wantWarnCode != "" {
				require.Len(t, warnings, 1)
				assert.Equal(t, tt.wantWarnCode, warnings[0].Code)
				assert.Contains(t, warnings[0].Message, "Desa")
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

func TestSelectDoesNotShareRows(t *testing.T) {
	table := dusunTable()
	got, _ := Select(table, domain.FilterSelection{Column: "Dusun", Values: []string{"Sumber"}})
	require.Equal(t, 1, got.Len())

	got.Rows[0][0] = domain.Text("Diubah")
	assert.Equal(t, domain.Text("Sumber"), table.Rows[1][0])
}

func TestDistinctValues(t *testing.T) {
	values, ok := DistinctValues(dusunTable(), "Dusun").Get()
	require.True(t, ok)
	assert.Equal(t, []string{"Krajan", "Sumber"}, values)

	years, ok := DistinctValues(dusunTable(), "Tahun").Get()
	require.True(t, ok)
	assert.Equal(t, []string{"2022", "2023", "2021"}, years)

	assert.False(t, DistinctValues(dusunTable(), "Desa").IsPresent())
}
