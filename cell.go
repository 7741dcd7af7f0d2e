package gridcalc

import (
	"strconv"
	"strings"
)

// CellType represents the kind of content held by a cell
type CellType uint8

const (
	CellTypeEmpty   CellType = 0
	CellTypeNumber  CellType = 1
	CellTypeText    CellType = 2
	CellTypeFormula CellType = 3
)

var cellTypeNames = [...]string{
	CellTypeEmpty:   "empty",
	CellTypeNumber:  "number",
	CellTypeText:    "text",
	CellTypeFormula: "formula",
}

func (t CellType) String() string {
	if int(t) < len(cellTypeNames) {
		return cellTypeNames[t]
	}
	return "unknown"
}

// CellAddress is a zero-based (row, column) coordinate
type CellAddress struct {
	Row    uint32
	Column uint32
}

// String renders the address in A1 notation
func (a CellAddress) String() string {
	return ColumnName(a.Column) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

// compareAddresses orders addresses row-major
func compareAddresses(a, b CellAddress) int {
	switch {
	case a.Row < b.Row:
		return -1
	case a.Row > b.Row:
		return 1
	case a.Column < b.Column:
		return -1
	case a.Column > b.Column:
		return 1
	}
	return 0
}

// Cell is a tagged value: empty, number, text or formula. Formula cells
// carry their source together with the cached result of the last
// recalculation, or the error that recalculation produced.
type Cell struct {
	Type    CellType
	Number  float64    // NUMBER cells
	Text    string     // TEXT cells
	Formula string     // FORMULA source, including the leading '='
	Result  float64    // cached FORMULA result, valid when Err is nil
	Err     *EvalError // cached FORMULA error
}

func EmptyCell() Cell {
	return Cell{Type: CellTypeEmpty}
}

func NumberCell(v float64) Cell {
	return Cell{Type: CellTypeNumber, Number: v}
}

func TextCell(s string) Cell {
	return Cell{Type: CellTypeText, Text: s}
}

// FormulaCell creates a formula cell. a missing '=' prefix is added so
// the stored source always round-trips through Parse.
func FormulaCell(source string) Cell {
	if !strings.HasPrefix(source, "=") {
		source = "=" + source
	}
	return Cell{Type: CellTypeFormula, Formula: source}
}

// CellFromInput interprets user input the way a grid editor does: a
// leading '=' makes a formula, anything that parses as a number is a
// number, the empty string clears the cell, everything else is text.
func CellFromInput(input string) Cell {
	if input == "" {
		return EmptyCell()
	}
	if strings.HasPrefix(input, "=") {
		return FormulaCell(input)
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(input), 64); err == nil {
		return NumberCell(v)
	}
	return TextCell(input)
}

// IsEmpty reports whether the cell holds nothing
func (c Cell) IsEmpty() bool {
	return c.Type == CellTypeEmpty
}

// HasError reports whether the cell is a formula whose last evaluation failed
func (c Cell) HasError() bool {
	return c.Type == CellTypeFormula && c.Err != nil
}

// Value returns the numeric view of the cell. text, empty and errored
// cells all read as 0.
func (c Cell) Value() float64 {
	switch c.Type {
	case CellTypeNumber:
		return c.Number
	case CellTypeFormula:
		if c.Err == nil {
			return c.Result
		}
	}
	return 0
}

// Display renders the cell the way a grid shows it
func (c Cell) Display() string {
	switch c.Type {
	case CellTypeNumber:
		return formatNumber(c.Number)
	case CellTypeText:
		return c.Text
	case CellTypeFormula:
		if c.Err != nil {
			return c.Err.Code().String()
		}
		return formatNumber(c.Result)
	}
	return ""
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
