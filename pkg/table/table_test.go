package table

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl := New("id", "factor_set", "depression")
	require.NoError(t, tbl.AddRow(Number(1), Set(NewFactorSet("tofu", "beef")), Number(45)))
	require.NoError(t, tbl.AddRow(Number(2), Missing, Text("0.8")))
	require.NoError(t, tbl.AddRow(Number(3), Set(nil), Text("n/a?")))
	return tbl
}

func TestFactorSet(t *testing.T) {
	s := NewFactorSet("tofu", "beef", "rice")
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has("tofu"))
	assert.False(t, s.Has("eggs"))
	assert.Equal(t, 1, s.Intersect(NewFactorSet("tofu", "lentils")))
	assert.Equal(t, 0, s.Intersect(nil))
	assert.Equal(t, []string{"beef", "rice", "tofu"}, s.Sorted())
}

func TestValue_Float(t *testing.T) {
	tests := []struct {
		name string
		val  Value
		want float64
		ok   bool
	}{
		{"number", Number(1.5), 1.5, true},
		{"text number", Text(" 45 "), 45, true},
		{"text word", Text("high"), 0, false},
		{"text nan", Text("NaN"), 0, false},
		{"set", Set(NewFactorSet("a")), 0, false},
		{"missing", Missing, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.val.Float()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_Truthy(t *testing.T) {
	assert.False(t, Missing.Truthy())
	assert.False(t, Number(0).Truthy())
	assert.False(t, Text("").Truthy())
	assert.False(t, Set(nil).Truthy())
	assert.True(t, Number(-1).Truthy())
	assert.True(t, Text("x").Truthy())
	assert.True(t, Set(NewFactorSet("a")).Truthy())
}

func TestNumber_NaNIsMissing(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsMissing())
}

func TestTable_SetAddsColumn(t *testing.T) {
	tbl := testTable(t)
	tbl.Set(0, "score", Number(0.5))

	assert.True(t, tbl.HasColumn("score"))
	assert.Equal(t, Number(0.5), tbl.Get(0, "score"))
	assert.True(t, tbl.Get(1, "score").IsMissing())
	assert.True(t, tbl.Get(99, "score").IsMissing())
}

func TestTable_AddRowMismatch(t *testing.T) {
	tbl := New("a", "b")
	err := tbl.AddRow(Number(1))
	assert.ErrorIs(t, err, ErrColumnMismatch)
}

func TestTable_DropColumns(t *testing.T) {
	tbl := testTable(t)
	tbl.DropColumns("factor_set", "not_there")

	assert.Equal(t, []string{"id", "depression"}, tbl.Columns())
	assert.Equal(t, Number(45), tbl.Get(0, "depression"))
}

func TestTable_CopyIsIndependent(t *testing.T) {
	tbl := testTable(t)
	c := tbl.Copy()
	c.Set(0, "depression", Number(1))
	c.Set(0, "extra", Number(1))

	assert.Equal(t, Number(45), tbl.Get(0, "depression"))
	assert.False(t, tbl.HasColumn("extra"))
}

func TestTable_SetColumn(t *testing.T) {
	tbl := testTable(t)
	require.NoError(t, tbl.SetColumn("x", []Value{Number(1), Number(2), Number(3)}))
	assert.Equal(t, Number(3), tbl.Get(2, "x"))
	assert.Error(t, tbl.SetColumn("y", []Value{Number(1)}))
}

func TestTable_JSONRoundTrip(t *testing.T) {
	tbl := testTable(t)
	b, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Contains(t, string(b), `["beef","tofu"]`)

	var got Table
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, tbl.Columns(), got.Columns())
	assert.Equal(t, tbl.Len(), got.Len())

	fs, ok := got.Get(0, "factor_set").Factors()
	require.True(t, ok)
	assert.True(t, fs.Has("tofu"))
	assert.True(t, got.Get(1, "factor_set").IsMissing())
	assert.Equal(t, Text("0.8"), got.Get(1, "depression"))
}

const testCSV = `id,ISO3,factor_set,depression
1,USA,tofu|beef|rice,45
2,CAN,,0.8
3,NA,NA,150
4,MEX, vegan | keto ,high
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(testCSV), CSVOptions{SetColumns: []string{"factor_set"}})
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"id", "ISO3", "factor_set", "depression"}, tbl.Columns())

	fs, ok := tbl.Get(0, "factor_set").Factors()
	require.True(t, ok)
	assert.Equal(t, 3, fs.Len())

	fs, ok = tbl.Get(1, "factor_set").Factors()
	require.True(t, ok)
	assert.Equal(t, 0, fs.Len())

	assert.True(t, tbl.Get(2, "factor_set").IsMissing())
	assert.True(t, tbl.Get(2, "ISO3").IsMissing())

	fs, _ = tbl.Get(3, "factor_set").Factors()
	assert.True(t, fs.Has("vegan"))
	assert.True(t, fs.Has("keto"))

	assert.Equal(t, Number(45), tbl.Get(0, "depression"))
	assert.Equal(t, Text("high"), tbl.Get(3, "depression"))
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"45", Number(45)},
		{" 0.25 ", Number(0.25)},
		{"1e3", Number(1000)},
		{"-2", Number(-2)},
		{"NA", Missing},
		{"", Missing},
		{"Inf", Text("Inf")},
		{"-Infinity", Text("-Infinity")},
		{"1e400", Text("1e400")},
		{"0x1p-2", Text("0x1p-2")},
		{"0x10", Text("0x10")},
		{"high", Text("high")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCell(tt.in))
		})
	}
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,a\n1,2\n"), CSVOptions{})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	opts := CSVOptions{SetColumns: []string{"factor_set"}}
	tbl, err := ReadCSV(strings.NewReader(testCSV), opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl, opts))

	out := buf.String()
	assert.Contains(t, out, "id,ISO3,factor_set,depression\n")
	assert.Contains(t, out, "1,USA,beef|rice|tofu,45\n")
	assert.Contains(t, out, "3,,,150\n")

	again, err := ReadCSV(strings.NewReader(out), opts)
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), again.Len())
}
