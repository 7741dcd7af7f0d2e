package gridcalc

import (
	"iter"
	"maps"
	"slices"
)

// CellStore is the narrow capability the engine needs from cell storage.
// the engine never assumes a layout behind it.
type CellStore interface {
	// Get returns the cell at addr, or an empty cell
	Get(addr CellAddress) Cell
	// GetRange yields the occupied cells of r in row-major order. empty
	// cells may be omitted.
	GetRange(r RangeAddress) iter.Seq2[CellAddress, Cell]
	// Put stores cell at addr. putting an empty cell deletes it.
	Put(addr CellAddress, cell Cell)
}

// CellEnumerator is implemented by stores that can list every occupied
// cell in row-major order
type CellEnumerator interface {
	All() iter.Seq2[CellAddress, Cell]
}

// MapStore is a sparse CellStore backed by a map
type MapStore struct {
	cells map[CellAddress]Cell
}

func NewMapStore() *MapStore {
	return &MapStore{cells: make(map[CellAddress]Cell)}
}

func (s *MapStore) Get(addr CellAddress) Cell {
	return s.cells[addr]
}

func (s *MapStore) Put(addr CellAddress, cell Cell) {
	if cell.IsEmpty() {
		delete(s.cells, addr)
		return
	}
	s.cells[addr] = cell
}

// GetRange probes coordinates directly when the range is smaller than the
// store, otherwise it filters the occupied cells
func (s *MapStore) GetRange(r RangeAddress) iter.Seq2[CellAddress, Cell] {
	if r.Size() <= uint64(len(s.cells)) {
		return func(yield func(CellAddress, Cell) bool) {
			for addr := range r.Cells() {
				cell, ok := s.cells[addr]
				if !ok {
					continue
				}
				if !yield(addr, cell) {
					return
				}
			}
		}
	}

	return func(yield func(CellAddress, Cell) bool) {
		var inRange []CellAddress
		for addr := range s.cells {
			if r.Contains(addr) {
				inRange = append(inRange, addr)
			}
		}
		slices.SortFunc(inRange, compareAddresses)
		for _, addr := range inRange {
			if !yield(addr, s.cells[addr]) {
				return
			}
		}
	}
}

// All yields every occupied cell in row-major order
func (s *MapStore) All() iter.Seq2[CellAddress, Cell] {
	return func(yield func(CellAddress, Cell) bool) {
		for _, addr := range slices.SortedFunc(maps.Keys(s.cells), compareAddresses) {
			if !yield(addr, s.cells[addr]) {
				return
			}
		}
	}
}

// Len returns the number of occupied cells
func (s *MapStore) Len() int {
	return len(s.cells)
}
