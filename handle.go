package gridcalc

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a table owned by a Registry
type Handle uuid.UUID

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// ParseHandle parses the textual form of a handle
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, &AppError{Code: InvalidArgument, Message: "invalid table handle", Err: err}
	}
	return Handle(id), nil
}

// lockedTable serializes writers of one table while letting readers run
// concurrently
type lockedTable struct {
	mu    sync.RWMutex
	table *Table
}

// Registry owns tables behind opaque handles. it is safe for concurrent
// use: every table has its own read/write lock, so edits to one table
// never block another.
type Registry struct {
	mu       sync.RWMutex
	tables   map[Handle]*lockedTable
	newTable func() *Table
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithTableFactory sets how new tables are built, e.g. to pick a store
// or a logger
func WithTableFactory(factory func() *Table) RegistryOption {
	return func(r *Registry) {
		r.newTable = factory
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tables: make(map[Handle]*lockedTable),
		newTable: func() *Table {
			return NewTable()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateTable creates an empty table and returns its handle
func (r *Registry) CreateTable() Handle {
	h := Handle(uuid.New())
	lt := &lockedTable{table: r.newTable()}

	r.mu.Lock()
	r.tables[h] = lt
	r.mu.Unlock()

	return h
}

// DestroyTable releases a table. it waits for operations already running
// on the table to finish.
func (r *Registry) DestroyTable(h Handle) error {
	r.mu.Lock()
	lt, exists := r.tables[h]
	delete(r.tables, h)
	r.mu.Unlock()

	if !exists {
		return notFound(h)
	}

	lt.mu.Lock()
	lt.table = nil
	lt.mu.Unlock()
	return nil
}

// Len returns the number of live tables
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// Has reports whether h names a live table
func (r *Registry) Has(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tables[h]
	return exists
}

func (r *Registry) lookup(h Handle) (*lockedTable, error) {
	r.mu.RLock()
	lt, exists := r.tables[h]
	r.mu.RUnlock()

	if !exists {
		return nil, notFound(h)
	}
	return lt, nil
}

func notFound(h Handle) *AppError {
	return NewApplicationError(NotFound, "table "+h.String()+" not found")
}

// write runs fn under the table's exclusive lock
func (r *Registry) write(h Handle, fn func(t *Table) error) error {
	lt, err := r.lookup(h)
	if err != nil {
		return err
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.table == nil {
		return notFound(h)
	}
	return fn(lt.table)
}

// read runs fn under the table's shared lock
func (r *Registry) read(h Handle, fn func(t *Table) error) error {
	lt, err := r.lookup(h)
	if err != nil {
		return err
	}

	lt.mu.RLock()
	defer lt.mu.RUnlock()
	if lt.table == nil {
		return notFound(h)
	}
	return fn(lt.table)
}

// SetCell writes content and recalculates, see Table.SetCell
func (r *Registry) SetCell(h Handle, addr CellAddress, content Cell) ([]Outcome, error) {
	var outcomes []Outcome
	err := r.write(h, func(t *Table) error {
		var err error
		outcomes, err = t.SetCell(addr, content)
		return err
	})
	return outcomes, err
}

func (r *Registry) SetCellNumber(h Handle, addr CellAddress, v float64) ([]Outcome, error) {
	return r.SetCell(h, addr, NumberCell(v))
}

func (r *Registry) SetCellText(h Handle, addr CellAddress, s string) ([]Outcome, error) {
	return r.SetCell(h, addr, TextCell(s))
}

func (r *Registry) SetCellFormula(h Handle, addr CellAddress, source string) ([]Outcome, error) {
	return r.SetCell(h, addr, FormulaCell(source))
}

// GetCellValue returns the numeric value of a cell; 0 for text, empty or
// errored cells
func (r *Registry) GetCellValue(h Handle, addr CellAddress) (float64, error) {
	var value float64
	err := r.read(h, func(t *Table) error {
		value = t.GetCellValue(addr)
		return nil
	})
	return value, err
}

// GetCell returns the stored cell
func (r *Registry) GetCell(h Handle, addr CellAddress) (Cell, error) {
	var cell Cell
	err := r.read(h, func(t *Table) error {
		cell = t.GetCell(addr)
		return nil
	})
	return cell, err
}

// EvalFormula evaluates source against the table without storing it
func (r *Registry) EvalFormula(h Handle, source string) (float64, error) {
	var value float64
	err := r.read(h, func(t *Table) error {
		var err error
		value, err = t.EvalFormula(source)
		return err
	})
	return value, err
}

// Snapshot lists the occupied cells of the table
func (r *Registry) Snapshot(h Handle) ([]CellView, error) {
	var views []CellView
	err := r.read(h, func(t *Table) error {
		var err error
		views, err = t.Snapshot()
		return err
	})
	return views, err
}
