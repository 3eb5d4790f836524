package missing

import (
	"testing"

	"github.com/mchmarny/dietpulse/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sparseTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("id", "depression", "anxiety", "notes")
	rows := [][]table.Value{
		{table.Number(1), table.Missing, table.Missing, table.Missing},
		{table.Number(2), table.Number(0.2), table.Number(0.1), table.Missing},
		{table.Number(3), table.Missing, table.Missing, table.Missing},
		{table.Number(4), table.Number(0.4), table.Number(0.3), table.Missing},
	}
	for _, r := range rows {
		require.NoError(t, tbl.AddRow(r...))
	}
	return tbl
}

func TestProfile(t *testing.T) {
	p := Profile(sparseTable(t))
	require.Len(t, p, 4)

	assert.Equal(t, "id", p[0].Column)
	assert.Equal(t, 0, p[0].Missing)
	assert.Equal(t, 0.0, p[0].Percent)

	assert.Equal(t, "depression", p[1].Column)
	assert.Equal(t, 2, p[1].Missing)
	assert.Equal(t, 50.0, p[1].Percent)

	assert.Equal(t, 100.0, p[3].Percent)
}

func TestProfile_Empty(t *testing.T) {
	p := Profile(table.New("a"))
	require.Len(t, p, 1)
	assert.Equal(t, 0.0, p[0].Percent)
}

func TestMatrix(t *testing.T) {
	g := Matrix(sparseTable(t))
	assert.Equal(t, []string{"id", "depression", "anxiety", "notes"}, g.Columns)
	require.Len(t, g.Cells, 4)
	assert.Equal(t, []bool{false, true, true, true}, g.Cells[0])
	assert.Equal(t, []bool{false, false, false, true}, g.Cells[1])
}

func TestNullityCorrelation(t *testing.T) {
	m := NullityCorrelation(sparseTable(t))

	assert.Equal(t, []string{"depression", "anxiety"}, m.Columns)
	require.Len(t, m.Values, 2)
	assert.InDelta(t, 1, float64(m.Values[0][0]), 1e-9)
	assert.InDelta(t, 1, float64(m.Values[0][1]), 1e-9)
	assert.InDelta(t, 1, float64(m.Values[1][0]), 1e-9)
}
