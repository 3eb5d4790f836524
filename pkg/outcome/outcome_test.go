package outcome

import (
	"testing"

	"github.com/mchmarny/dietpulse/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
		ok   bool
	}{
		{150, 0, false},
		{100.5, 0, false},
		{100, 1, true},
		{45, 0.45, true},
		{1.5, 0.015, true},
		{1, 1, true},
		{0.8, 0.8, true},
		{0, 0, true},
		{-5, 0, false},
	}

	for _, tt := range tests {
		got, ok := NormalizeValue(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-12, "input %v", tt.in)
	}
}

func TestNormalizeOutcomeColumns(t *testing.T) {
	tbl := table.New("depression", "anxiety")
	rows := [][]table.Value{
		{table.Number(150), table.Text("12")},
		{table.Number(45), table.Text("high")},
		{table.Number(0.8), table.Missing},
		{table.Number(-5), table.Set(table.NewFactorSet("x"))},
		{table.Number(1), table.Number(0.2)},
	}
	for _, r := range rows {
		require.NoError(t, tbl.AddRow(r...))
	}

	out, res := NormalizeOutcomeColumns(tbl, DefaultColumns)
	assert.NotSame(t, tbl, out)

	dep := out.Column("depression")
	assert.True(t, dep[0].IsMissing())
	assertNumber(t, 0.45, dep[1])
	assertNumber(t, 0.8, dep[2])
	assert.True(t, dep[3].IsMissing())
	assertNumber(t, 1, dep[4])

	anx := out.Column("anxiety")
	assertNumber(t, 0.12, anx[0])
	assert.True(t, anx[1].IsMissing())
	assert.True(t, anx[2].IsMissing())
	assert.True(t, anx[3].IsMissing())
	assertNumber(t, 0.2, anx[4])

	assert.Equal(t, []string{"anxiety", "depression"}, res.Normalized)
	assert.Equal(t, []string{"schizophrenia", "bipolar", "eating_disorder", "drug_use", "alcohol_use"}, res.Skipped)
	assert.Equal(t, 2, res.Invalid["depression"])
	assert.Equal(t, 2, res.Invalid["anxiety"])
	assert.Equal(t, 1, res.Converted["depression"])

	// the caller's table is untouched
	assert.Equal(t, table.Number(150), tbl.Get(0, "depression"))
}

func TestNormalizeOutcomeColumns_AbsentColumn(t *testing.T) {
	tbl := table.New("id")
	require.NoError(t, tbl.AddRow(table.Number(1)))

	out, res := NormalizeOutcomeColumns(tbl, []string{"depression"})
	assert.False(t, out.HasColumn("depression"))
	assert.Equal(t, []string{"id"}, out.Columns())
	assert.Equal(t, []string{"depression"}, res.Skipped)
	assert.Empty(t, res.Normalized)
}

func assertNumber(t *testing.T, want float64, v table.Value) {
	t.Helper()
	f, ok := v.Float()
	require.True(t, ok, "value %v not numeric", v)
	assert.InDelta(t, want, f, 1e-12)
}
