package gridcalc

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnName(t *testing.T) {
	tests := map[uint32]string{
		0:              "A",
		25:             "Z",
		26:             "AA",
		51:             "AZ",
		52:             "BA",
		701:            "ZZ",
		702:            "AAA",
		16383:          "XFD",
		math.MaxUint32: "MWLQKWV",
	}
	for col, want := range tests {
		assert.Equal(t, want, ColumnName(col), "column %d", col)
	}
}

func TestParseA1(t *testing.T) {
	tests := []struct {
		in   string
		want CellAddress
	}{
		{"A1", CellAddress{Row: 0, Column: 0}},
		{"b2", CellAddress{Row: 1, Column: 1}},
		{"Z10", CellAddress{Row: 9, Column: 25}},
		{"AA1", CellAddress{Row: 0, Column: 26}},
		{"XFD1048576", CellAddress{Row: 1048575, Column: 16383}},
		{" C3 ", CellAddress{Row: 2, Column: 2}},
		{"MWLQKWV4294967295", CellAddress{Row: math.MaxUint32 - 1, Column: math.MaxUint32}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseA1(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseA1Invalid(t *testing.T) {
	for _, in := range []string{"", "A", "1", "A0", "1A", "A1B", "A-1", "MWLQKWW1", "A4294967296"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseA1(in)
			require.Error(t, err)

			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, InvalidArgument, appErr.Code)
		})
	}
}

func TestAddressRoundTrip(t *testing.T) {
	for _, in := range []string{"A1", "Z99", "AB12", "XFD1048576"} {
		assert.Equal(t, in, MustParseA1(in).String())
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("C3:A1")
	require.NoError(t, err)
	assert.Equal(t, "A1:C3", r.String())
	assert.Equal(t, uint64(9), r.Size())

	single, err := ParseRange("B2")
	require.NoError(t, err)
	assert.Equal(t, MustParseA1("B2"), single.Start())
	assert.Equal(t, MustParseA1("B2"), single.End())

	_, err = ParseRange("A1:")
	assert.Error(t, err)
}

func TestRangeContains(t *testing.T) {
	r := NewRangeAddress(MustParseA1("B2"), MustParseA1("C4"))

	assert.True(t, r.Contains(MustParseA1("B2")))
	assert.True(t, r.Contains(MustParseA1("C4")))
	assert.True(t, r.Contains(MustParseA1("C3")))
	assert.False(t, r.Contains(MustParseA1("A2")))
	assert.False(t, r.Contains(MustParseA1("B5")))
	assert.False(t, r.Contains(MustParseA1("D3")))
}

func TestRangeOverlaps(t *testing.T) {
	r := NewRangeAddress(MustParseA1("B2"), MustParseA1("C4"))

	assert.True(t, r.Overlaps(NewRangeAddress(MustParseA1("C4"), MustParseA1("D9"))))
	assert.True(t, r.Overlaps(NewRangeAddress(MustParseA1("A1"), MustParseA1("Z99"))))
	assert.False(t, r.Overlaps(NewRangeAddress(MustParseA1("D1"), MustParseA1("D9"))))
}

func TestRangeCellsRowMajor(t *testing.T) {
	r := NewRangeAddress(MustParseA1("B2"), MustParseA1("A1"))

	var got []string
	for addr := range r.Cells() {
		got = append(got, addr.String())
	}
	assert.Equal(t, []string{"A1", "B1", "A2", "B2"}, got)
}

func TestRangeCellsAtGridEdge(t *testing.T) {
	corner := CellAddress{Row: math.MaxUint32, Column: math.MaxUint32}
	r := NewRangeAddress(CellAddress{Row: math.MaxUint32 - 1, Column: math.MaxUint32 - 1}, corner)

	cells := slices.Collect(r.Cells())
	require.Len(t, cells, 4)
	assert.Equal(t, corner, cells[3])
}

func TestCellFromInput(t *testing.T) {
	assert.Equal(t, NumberCell(1.5), CellFromInput("1.5"))
	assert.Equal(t, NumberCell(-2), CellFromInput(" -2 "))
	assert.Equal(t, TextCell("x"), CellFromInput("x"))
	assert.Equal(t, FormulaCell("=A1"), CellFromInput("=A1"))
	assert.Equal(t, EmptyCell(), CellFromInput(""))
	assert.Equal(t, "=SUM(A1:A2)", FormulaCell("SUM(A1:A2)").Formula)
}
