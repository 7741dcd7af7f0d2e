package gridcalc

import "iter"

// RangeAddress is an inclusive rectangle of cells. it is always kept
// normalized so that Start <= End on both axes.
type RangeAddress struct {
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// NewRangeAddress builds a normalized range from two corners in any order
func NewRangeAddress(a, b CellAddress) RangeAddress {
	return RangeAddress{
		StartRow:    min(a.Row, b.Row),
		StartColumn: min(a.Column, b.Column),
		EndRow:      max(a.Row, b.Row),
		EndColumn:   max(a.Column, b.Column),
	}
}

// Contains is the membership test used everywhere a range is consulted.
// ranges are never expanded into per-cell edges.
func (r RangeAddress) Contains(cell CellAddress) bool {
	return cell.Row >= r.StartRow && cell.Row <= r.EndRow &&
		cell.Column >= r.StartColumn && cell.Column <= r.EndColumn
}

// Overlaps reports whether two ranges share at least one cell
func (r RangeAddress) Overlaps(o RangeAddress) bool {
	return r.StartRow <= o.EndRow && o.StartRow <= r.EndRow &&
		r.StartColumn <= o.EndColumn && o.StartColumn <= r.EndColumn
}

func (r RangeAddress) Start() CellAddress {
	return CellAddress{Row: r.StartRow, Column: r.StartColumn}
}

func (r RangeAddress) End() CellAddress {
	return CellAddress{Row: r.EndRow, Column: r.EndColumn}
}

// Size returns the number of cells covered by the range
func (r RangeAddress) Size() uint64 {
	return (uint64(r.EndRow-r.StartRow) + 1) * (uint64(r.EndColumn-r.StartColumn) + 1)
}

func (r RangeAddress) String() string {
	return r.Start().String() + ":" + r.End().String()
}

// Cells lazily walks every coordinate of the range in row-major order
func (r RangeAddress) Cells() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := r.StartRow; ; row++ {
			for col := r.StartColumn; ; col++ {
				if !yield(CellAddress{Row: row, Column: col}) {
					return
				}
				// explicit break so EndColumn == MaxUint32 cannot wrap
				if col == r.EndColumn {
					break
				}
			}
			if row == r.EndRow {
				return
			}
		}
	}
}
