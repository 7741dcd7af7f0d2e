package gridcalc

import (
	"io"
	"log/slog"
)

// Table combines a cell store, the formula index, the dependency graph
// and the evaluator into a single-sheet engine. a Table is not safe for
// concurrent use; wrap it in a Registry for that.
type Table struct {
	store    CellStore
	graph    *DependencyGraph
	formulas *FormulaTable
	logger   *slog.Logger
	passes   uint64
}

// Option configures a Table
type Option func(*Table)

// WithStore selects the cell store. the store must start out empty: the
// table only knows about formulas written through it.
func WithStore(store CellStore) Option {
	return func(t *Table) {
		t.store = store
	}
}

// WithLogger sets the logger used for recalculation diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// NewTable creates an empty table backed by a MapStore unless another
// store is given
func NewTable(opts ...Option) *Table {
	t := &Table{
		graph:    NewDependencyGraph(),
		formulas: NewFormulaTable(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.store == nil {
		t.store = NewMapStore()
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return t
}

// SetCellNumber stores a number
func (t *Table) SetCellNumber(addr CellAddress, v float64) ([]Outcome, error) {
	return t.SetCell(addr, NumberCell(v))
}

// SetCellText stores text, which reads as 0 in formulas
func (t *Table) SetCellText(addr CellAddress, s string) ([]Outcome, error) {
	return t.SetCell(addr, TextCell(s))
}

// SetCellFormula stores and evaluates a formula
func (t *Table) SetCellFormula(addr CellAddress, source string) ([]Outcome, error) {
	return t.SetCell(addr, FormulaCell(source))
}

// ClearCell empties a cell
func (t *Table) ClearCell(addr CellAddress) ([]Outcome, error) {
	return t.SetCell(addr, EmptyCell())
}

// GetCell returns the stored cell, including cached formula results
func (t *Table) GetCell(addr CellAddress) Cell {
	return t.store.Get(addr)
}

// GetCellValue returns the numeric value of a cell: the number itself,
// the cached formula result, or 0 for text, empty and errored cells
func (t *Table) GetCellValue(addr CellAddress) float64 {
	return t.store.Get(addr).Value()
}

// EvalFormula evaluates source against the current table without storing
// it anywhere
func (t *Table) EvalFormula(source string) (float64, error) {
	ast, err := Parse(source)
	if err != nil {
		return 0, err
	}
	return Evaluate(ast, t.store)
}

// Formula returns the parsed AST stored for addr
func (t *Table) Formula(addr CellAddress) (ASTNode, bool) {
	return t.formulas.AST(addr)
}

// Formulas exposes the formula index for diagnostics
func (t *Table) Formulas() *FormulaTable {
	return t.formulas
}

// Graph exposes the dependency graph for diagnostics
func (t *Table) Graph() *DependencyGraph {
	return t.graph
}

// CellView pairs a cell with its address
type CellView struct {
	Address CellAddress
	Cell    Cell
}

// Snapshot lists every occupied cell in row-major order. the store must
// implement CellEnumerator.
func (t *Table) Snapshot() ([]CellView, error) {
	enumerator, ok := t.store.(CellEnumerator)
	if !ok {
		return nil, NewApplicationError(Unimplemented, "store cannot enumerate its cells")
	}

	var views []CellView
	for addr, cell := range enumerator.All() {
		views = append(views, CellView{Address: addr, Cell: cell})
	}
	return views, nil
}
