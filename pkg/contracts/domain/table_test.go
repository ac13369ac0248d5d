package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberRejectsNonFinite(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsMissing())
	assert.True(t, Number(math.Inf(1)).IsMissing())
	assert.False(t, Number(0).IsMissing())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "2023", Number(2023).String())
	assert.Equal(t, "12.5", Number(12.5).String())
	assert.Equal(t, "Krajan", Text("Krajan").String())
	assert.Equal(t, "", Missing().String())
}

func TestValueJSON(t *testing.T) {
	row := []Value{Text("Budi"), Number(4), Missing()}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `["Budi", 4, null]`, string(data))

	var back []Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, row, back)

	var bad Value
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestTableLookupIsExact(t *testing.T) {
	tbl := NewTable("rt", KindHousehold, []string{"Dusun", "Tahun"})

	ref, ok := tbl.Lookup("Tahun").Get()
	require.True(t, ok)
	assert.Equal(t, ColumnRef{Name: "Tahun", Index: 1}, ref)

	assert.False(t, tbl.Lookup("tahun").IsPresent())
	assert.False(t, tbl.Lookup(" Dusun").IsPresent())

	var nilTable *Table
	assert.False(t, nilTable.Lookup("Dusun").IsPresent())
	assert.Equal(t, 0, nilTable.Len())
}

func TestTableAppendRowFitsHeader(t *testing.T) {
	tbl := NewTable("rt", KindHousehold, []string{"A", "B", "C"})

	tbl.AppendRow([]Value{Text("a")})
	tbl.AppendRow([]Value{Text("a"), Text("b"), Text("c"), Text("d")})

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []Value{Text("a"), Missing(), Missing()}, tbl.Rows[0])
	assert.Equal(t, []Value{Text("a"), Text("b"), Text("c")}, tbl.Rows[1])
}

func TestTableNumbersSkipsNonNumeric(t *testing.T) {
	tbl := NewTable("rt", KindHousehold, []string{"Sapi (ekor)"})
	tbl.AppendRow([]Value{Number(2)})
	tbl.AppendRow([]Value{Text("dua")})
	tbl.AppendRow([]Value{Missing()})
	tbl.AppendRow([]Value{Number(3)})

	ref, _ := tbl.Lookup("Sapi (ekor)").Get()
	assert.Equal(t, []float64{2, 3}, tbl.Numbers(ref))
}

func TestTableCloneIsDeep(t *testing.T) {
	tbl := NewTable("rt", KindHousehold, []string{"A"})
	tbl.AppendRow([]Value{Number(1)})

	clone := tbl.Clone()
	clone.Rows[0][0] = Number(99)
	clone.Columns[0] = "B"

	assert.Equal(t, Number(1), tbl.Rows[0][0])
	assert.Equal(t, "A", tbl.Columns[0])
}

func TestParseTableKind(t *testing.T) {
	k, err := ParseTableKind(" Kemandirian-Dusun ")
	require.NoError(t, err)
	assert.Equal(t, KindHamletSufficiency, k)

	_, err = ParseTableKind("desa")
	assert.Error(t, err)
}
