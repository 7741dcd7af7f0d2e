package gridcalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeWith builds a MapStore from A1 -> cell pairs
func storeWith(cells map[string]Cell) *MapStore {
	store := NewMapStore()
	for a1, cell := range cells {
		store.Put(MustParseA1(a1), cell)
	}
	return store
}

func evaluate(t *testing.T, formula string, store CellStore) (float64, error) {
	t.Helper()
	ast, err := Parse(formula)
	require.NoError(t, err)
	return Evaluate(ast, store)
}

func TestEvaluateArithmetic(t *testing.T) {
	store := storeWith(map[string]Cell{
		"A1": NumberCell(6),
		"A2": NumberCell(4),
		"A3": TextCell("hello"),
	})

	tests := []struct {
		formula string
		want    float64
	}{
		{"=1+2*3", 7},
		{"=(1+2)*3", 9},
		{"=10-4-3", 3},
		{"=12/3/2", 2},
		{"=A1*A2", 24},
		{"=A1/A2", 1.5},
		{"=-A1+1", -5},
		{"=A3+1", 1},
		{"=Z99+1", 1},
		{"=1e2/4", 25},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := evaluate(t, tt.formula, store)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDivideByZero(t *testing.T) {
	store := storeWith(map[string]Cell{"A1": NumberCell(0)})

	for _, formula := range []string{"=1/0", "=5/A1", "=1/B7", "=1/(2-2)"} {
		t.Run(formula, func(t *testing.T) {
			_, err := evaluate(t, formula, store)

			var evalErr *EvalError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, EvalErrorDivideByZero, evalErr.Kind)
			assert.Equal(t, ErrorCodeDiv0, evalErr.Code())
		})
	}
}

func TestEvaluateRangeOutsideFunction(t *testing.T) {
	store := storeWith(map[string]Cell{"A1": NumberCell(1)})

	for _, formula := range []string{"=A1:A3", "=A1:A3+1", "=-A1:A2", "=SUM(A1:A2+1)"} {
		t.Run(formula, func(t *testing.T) {
			_, err := evaluate(t, formula, store)

			var evalErr *EvalError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, EvalErrorRangeNotAllowed, evalErr.Kind)
			assert.Equal(t, ErrorCodeValue, evalErr.Code())
		})
	}
}

func TestEvaluateFormulaCellReads(t *testing.T) {
	divErr := newEvalError(EvalErrorDivideByZero)
	store := storeWith(map[string]Cell{
		"A1": {Type: CellTypeFormula, Formula: "=2*3", Result: 6},
		"A2": {Type: CellTypeFormula, Formula: "=1/0", Err: divErr},
		"A3": NumberCell(1),
	})

	got, err := evaluate(t, "=A1+1", store)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	_, err = evaluate(t, "=A2+1", store)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, EvalErrorPropagated, evalErr.Kind)
	assert.Equal(t, MustParseA1("A2"), evalErr.Source)
	assert.Equal(t, EvalErrorDivideByZero, evalErr.Root)
	assert.Equal(t, ErrorCodeDiv0, evalErr.Code())

	_, err = evaluate(t, "=SUM(A1:A3)", store)
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, EvalErrorPropagated, evalErr.Kind)
	assert.Equal(t, MustParseA1("A2"), evalErr.Source)
}

func TestBuiltinFunctions(t *testing.T) {
	store := storeWith(map[string]Cell{
		"A1": NumberCell(1),
		"A2": TextCell("x"),
		"A3": NumberCell(3),
		"B1": NumberCell(-2),
		"B2": {Type: CellTypeFormula, Formula: "=10", Result: 10},
	})

	tests := []struct {
		formula string
		want    float64
	}{
		{"=SUM(A1:A3)", 4},
		{"=SUM(A3:A1)", 4},
		{"=SUM(A1:B3)", 12},
		{"=SUM(A1,A2,A3)", 4},
		{"=SUM(A1:A3,10,-1)", 13},
		{"=SUM()", 0},
		{"=SUM(C1:C100)", 0},
		{"=AVERAGE(A1:A3)", 2},
		{"=AVERAGE(A1:B2)", 3},
		{"=AVERAGE(A1,5)", 3},
		{"=COUNT(A1:A3)", 2},
		{"=COUNT(A1:B3)", 4},
		{"=COUNT(A2)", 0},
		{"=COUNT(1,2,A2)", 2},
		{"=MIN(A1:B3)", -2},
		{"=MAX(A1:B3)", 10},
		{"=MAX(C1:C9)", 0},
		{"=MIN(5,A3)", 3},
		{"=average(a1:a3)", 2},
		{"=SUM(A1:A3)*2+COUNT(A1:A3)", 10},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := evaluate(t, tt.formula, store)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAverageOfEmptyRange(t *testing.T) {
	store := storeWith(map[string]Cell{"A1": TextCell("only text")})

	for _, formula := range []string{"=AVERAGE(C1:C10)", "=AVERAGE(A1)", "=AVERAGE()"} {
		t.Run(formula, func(t *testing.T) {
			_, err := evaluate(t, formula, store)

			var evalErr *EvalError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, EvalErrorDivideByZero, evalErr.Kind)
		})
	}
}

func TestEvaluateDoesNotWrite(t *testing.T) {
	store := storeWith(map[string]Cell{"A1": NumberCell(2)})

	_, err := evaluate(t, "=SUM(A1:Z100)/0", store)
	require.Error(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, NumberCell(2), store.Get(MustParseA1("A1")))
}
