package gridcalc

import (
	"maps"
	"slices"
)

// ASTKey is the canonical rendering of an AST. two formulas with the same
// structure, ignoring whitespace and case, share a key.
type ASTKey string

// FormulaTable is the table's formula index. parsed ASTs are shared
// between every cell holding a structurally identical formula and
// reference counted per cell.
type FormulaTable struct {
	astIndex  map[ASTKey]uint32  // canonical AST -> formula ID
	astCache  map[uint32]ASTNode // formula ID -> parsed AST
	refCounts map[uint32]int     // formula ID -> number of cells using it

	cellsUsingFormula map[uint32]map[CellAddress]struct{} // formula ID -> cells using it
	formulaAtCell     map[CellAddress]uint32              // cell -> formula ID

	nextID uint32
}

func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		astIndex:          make(map[ASTKey]uint32),
		astCache:          make(map[uint32]ASTNode),
		refCounts:         make(map[uint32]int),
		cellsUsingFormula: make(map[uint32]map[CellAddress]struct{}),
		formulaAtCell:     make(map[CellAddress]uint32),
		nextID:            1, // 0 means no formula
	}
}

func keyOf(ast ASTNode) ASTKey {
	return ASTKey(ast.String())
}

// Set stores ast as the formula of cell, replacing whatever was there.
// returns the formula ID.
func (ft *FormulaTable) Set(cell CellAddress, ast ASTNode) uint32 {
	key := keyOf(ast)

	id, exists := ft.astIndex[key]
	if current, ok := ft.formulaAtCell[cell]; ok && exists && current == id {
		return id
	}
	ft.Remove(cell)

	if !exists {
		id = ft.nextID
		ft.nextID++
		ft.astIndex[key] = id
		ft.astCache[id] = ast
		ft.cellsUsingFormula[id] = make(map[CellAddress]struct{})
	}

	ft.refCounts[id]++
	ft.cellsUsingFormula[id][cell] = struct{}{}
	ft.formulaAtCell[cell] = id
	return id
}

// Remove drops the formula of cell. the shared AST goes away with its
// last user. returns false if cell had no formula.
func (ft *FormulaTable) Remove(cell CellAddress) bool {
	id, exists := ft.formulaAtCell[cell]
	if !exists {
		return false
	}

	delete(ft.formulaAtCell, cell)
	delete(ft.cellsUsingFormula[id], cell)
	ft.refCounts[id]--

	if ft.refCounts[id] <= 0 {
		delete(ft.astIndex, keyOf(ft.astCache[id]))
		delete(ft.astCache, id)
		delete(ft.refCounts, id)
		delete(ft.cellsUsingFormula, id)
	}
	return true
}

// AST returns the formula stored at cell
func (ft *FormulaTable) AST(cell CellAddress) (ASTNode, bool) {
	id, exists := ft.formulaAtCell[cell]
	if !exists {
		return nil, false
	}
	return ft.astCache[id], true
}

// FormulaID returns the ID of the formula stored at cell
func (ft *FormulaTable) FormulaID(cell CellAddress) (uint32, bool) {
	id, exists := ft.formulaAtCell[cell]
	return id, exists
}

// CellsUsing returns the cells sharing formula id, sorted row-major
func (ft *FormulaTable) CellsUsing(id uint32) []CellAddress {
	return slices.SortedFunc(maps.Keys(ft.cellsUsingFormula[id]), compareAddresses)
}

// RefCount returns how many cells use formula id
func (ft *FormulaTable) RefCount(id uint32) int {
	return ft.refCounts[id]
}

// Count returns the number of distinct formulas
func (ft *FormulaTable) Count() int {
	return len(ft.astCache)
}

// CellCount returns the number of formula cells
func (ft *FormulaTable) CellCount() int {
	return len(ft.formulaAtCell)
}
