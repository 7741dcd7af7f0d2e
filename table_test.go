package gridcalc

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableTestCase struct {
	t        *testing.T
	name     string
	table    *Table
	err      error
	outcomes []Outcome
}

func newTableTestCase(t *testing.T, name string, opts ...Option) *tableTestCase {
	return &tableTestCase{
		t:     t,
		name:  name,
		table: NewTable(opts...),
	}
}

// Set writes raw input the way a grid editor would. any error fails the
// test unless it is consumed by ExpectParseErr or ExpectCycle.
func (tc *tableTestCase) Set(address, input string) *tableTestCase {
	if tc.err != nil {
		tc.t.Errorf("%s: unchecked error before Set(%s): %v", tc.name, address, tc.err)
		return tc
	}
	tc.outcomes, tc.err = tc.table.SetCell(MustParseA1(address), CellFromInput(input))
	return tc
}

func (tc *tableTestCase) Clear(address string) *tableTestCase {
	return tc.Set(address, "")
}

func (tc *tableTestCase) AssertNoError() *tableTestCase {
	assert.NoError(tc.t, tc.err, tc.name)
	tc.err = nil
	return tc
}

func (tc *tableTestCase) AssertValue(address string, expected float64) *tableTestCase {
	tc.AssertNoError()
	actual := tc.table.GetCellValue(MustParseA1(address))
	if math.Abs(actual-expected) > 1e-10 {
		tc.t.Errorf("%s: cell %s = %v, want %v", tc.name, address, actual, expected)
	}
	return tc
}

func (tc *tableTestCase) AssertEmpty(address string) *tableTestCase {
	tc.AssertNoError()
	assert.True(tc.t, tc.table.GetCell(MustParseA1(address)).IsEmpty(), "%s: cell %s should be empty", tc.name, address)
	return tc
}

func (tc *tableTestCase) AssertCellErr(address string, code ErrorCode) *tableTestCase {
	tc.AssertNoError()
	cell := tc.table.GetCell(MustParseA1(address))
	if !cell.HasError() {
		tc.t.Errorf("%s: cell %s = %v, want error %v", tc.name, address, cell.Display(), code)
		return tc
	}
	assert.Equal(tc.t, code, cell.Err.Code(), "%s: cell %s", tc.name, address)
	return tc
}

func (tc *tableTestCase) AssertOutcomes(addresses ...string) *tableTestCase {
	tc.AssertNoError()
	var got []string
	for _, o := range tc.outcomes {
		got = append(got, o.Address.String())
	}
	assert.Equal(tc.t, addresses, got, tc.name)
	return tc
}

// ExpectParseErr consumes a pending *ParseError of the given kind
func (tc *tableTestCase) ExpectParseErr(kind ParseErrorKind) *tableTestCase {
	var perr *ParseError
	if assert.ErrorAs(tc.t, tc.err, &perr, tc.name) {
		assert.Equal(tc.t, kind, perr.Kind, tc.name)
	}
	tc.err = nil
	return tc
}

// ExpectCycle consumes a pending *CycleError and checks its members
func (tc *tableTestCase) ExpectCycle(members ...string) *tableTestCase {
	var cycle *CycleError
	if assert.ErrorAs(tc.t, tc.err, &cycle, tc.name) {
		assert.Equal(tc.t, addrs(members...), cycle.Members, tc.name)
	}
	tc.err = nil
	return tc
}

func (tc *tableTestCase) End() {
	assert.NoError(tc.t, tc.err, "%s: unchecked error at end", tc.name)
}

func TestTableRecalculation(t *testing.T) {
	for storeName, newStore := range storeFactories {
		t.Run(storeName, func(t *testing.T) {
			t.Run("ChainUpdates", func(t *testing.T) {
				newTableTestCase(t, "chain", WithStore(newStore())).
					Set("A1", "1").
					Set("B1", "=A1").
					Set("C1", "=B1*2").
					AssertValue("C1", 2).
					Set("A1", "10").
					AssertOutcomes("B1", "C1").
					AssertValue("B1", 10).
					AssertValue("C1", 20).
					End()
			})

			t.Run("FormulaChanges", func(t *testing.T) {
				newTableTestCase(t, "change formula", WithStore(newStore())).
					Set("A1", "10").
					Set("B1", "=A1*2").
					AssertValue("B1", 20).
					Set("B1", "=A1+5").
					AssertValue("B1", 15).
					Set("A1", "1").
					AssertValue("B1", 6).
					End()
			})

			t.Run("OverwriteFormulaWithNumber", func(t *testing.T) {
				tc := newTableTestCase(t, "overwrite formula", WithStore(newStore())).
					Set("A1", "1").
					Set("B1", "=A1").
					Set("B1", "5").
					AssertValue("B1", 5).
					Set("A1", "2").
					AssertOutcomes().
					AssertValue("B1", 5)
				assert.Empty(t, tc.table.Graph().Dependents(MustParseA1("A1")))
				_, ok := tc.table.Formula(MustParseA1("B1"))
				assert.False(t, ok)
				tc.End()
			})

			t.Run("RemoveReferencedCell", func(t *testing.T) {
				newTableTestCase(t, "clear precedent", WithStore(newStore())).
					Set("A1", "10").
					Set("B1", "=A1*2").
					Clear("A1").
					AssertEmpty("A1").
					AssertValue("B1", 0).
					End()
			})

			t.Run("SumSkipsText", func(t *testing.T) {
				newTableTestCase(t, "sum with text", WithStore(newStore())).
					Set("A1", "1").
					Set("A2", "hello").
					Set("A3", "3").
					Set("B1", "=SUM(A1:A3)").
					AssertValue("B1", 4).
					Set("A2", "6").
					AssertOutcomes("B1").
					AssertValue("B1", 10).
					End()
			})

			t.Run("RangeDependentsSeeNewCells", func(t *testing.T) {
				newTableTestCase(t, "fill range", WithStore(newStore())).
					Set("B1", "=SUM(A1:A100)").
					AssertValue("B1", 0).
					Set("A50", "7").
					AssertOutcomes("B1").
					AssertValue("B1", 7).
					End()
			})

			t.Run("Diamond", func(t *testing.T) {
				newTableTestCase(t, "diamond", WithStore(newStore())).
					Set("A1", "2").
					Set("B1", "=A1+1").
					Set("B2", "=A1*10").
					Set("C1", "=B1+B2").
					AssertValue("C1", 23).
					Set("A1", "3").
					AssertOutcomes("B1", "B2", "C1").
					AssertValue("C1", 34).
					End()
			})

			t.Run("AverageOfEmptyRange", func(t *testing.T) {
				newTableTestCase(t, "average of nothing", WithStore(newStore())).
					Set("B1", "=AVERAGE(A1:A3)").
					AssertCellErr("B1", ErrorCodeDiv0).
					Set("A2", "4").
					AssertValue("B1", 4).
					End()
			})
		})
	}
}

func TestTableCycleRejected(t *testing.T) {
	tc := newTableTestCase(t, "two cell cycle").
		Set("A1", "=B1").
		Set("B1", "=A1").
		ExpectCycle("A1", "B1")

	assert.Equal(t, FormulaCell("=B1"), tc.table.GetCell(MustParseA1("A1")))
	assert.True(t, tc.table.GetCell(MustParseA1("B1")).IsEmpty())
	assert.Empty(t, tc.table.Graph().Dependents(MustParseA1("A1")))

	// the table keeps working after a rejected edit
	tc.Set("B1", "4").
		AssertValue("A1", 4).
		End()
}

func TestTableCycleKeepsPreviousFormula(t *testing.T) {
	tc := newTableTestCase(t, "cycle over existing formula").
		Set("A1", "1").
		Set("B1", "=A1+1").
		Set("C1", "=B1+1").
		Set("A1", "=C1").
		ExpectCycle("A1", "C1", "B1").
		AssertValue("A1", 1).
		AssertValue("C1", 3)

	tc.Set("A1", "=SUM(A1:A3)").
		ExpectCycle("A1").
		AssertValue("A1", 1).
		Set("A1", "5").
		AssertValue("C1", 7).
		End()
}

func TestTableParseErrorLeavesStateUnchanged(t *testing.T) {
	tc := newTableTestCase(t, "parse error").
		Set("A1", "2").
		Set("B1", "=A1*3").
		Set("B1", "=SUM(A1:)").
		ExpectParseErr(ParseErrorInvalidReference).
		Set("B1", "=1+").
		ExpectParseErr(ParseErrorUnterminatedExpression)

	assert.Equal(t, "=A1*3", tc.table.GetCell(MustParseA1("B1")).Formula)
	tc.AssertValue("B1", 6).
		Set("A1", "3").
		AssertValue("B1", 9).
		End()
}

func TestTableErrorsDoNotHaltPass(t *testing.T) {
	newTableTestCase(t, "errors keep going").
		Set("A1", "1").
		Set("B1", "=1/(A1-1)").
		Set("B2", "=A1*5").
		Set("C1", "=B1+1").
		AssertCellErr("B1", ErrorCodeDiv0).
		AssertCellErr("C1", ErrorCodeDiv0).
		Set("A1", "2").
		AssertOutcomes("B1", "C1", "B2").
		AssertValue("B1", 1).
		AssertValue("B2", 10).
		AssertValue("C1", 2).
		Set("A1", "1").
		AssertCellErr("B1", ErrorCodeDiv0).
		AssertValue("B2", 5).
		AssertCellErr("C1", ErrorCodeDiv0).
		End()
}

func TestTableErrorPropagationSource(t *testing.T) {
	table := NewTable()
	_, err := table.SetCellFormula(MustParseA1("A1"), "=1/0")
	require.NoError(t, err)
	outcomes, err := table.SetCellFormula(MustParseA1("A2"), "=A1+1")
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Err)
	assert.Equal(t, EvalErrorPropagated, outcomes[0].Err.Kind)
	assert.Equal(t, MustParseA1("A1"), outcomes[0].Err.Source)
	assert.Equal(t, "#DIV/0!", table.GetCell(MustParseA1("A2")).Display())
	assert.Equal(t, 0.0, table.GetCellValue(MustParseA1("A2")))
}

func TestTableRangeOutsideFunction(t *testing.T) {
	newTableTestCase(t, "bare range").
		Set("A1", "1").
		Set("B1", "=A1:A2").
		AssertCellErr("B1", ErrorCodeValue).
		End()
}

func TestTableNumberRoundTrip(t *testing.T) {
	table := NewTable(WithStore(NewChunkStore()))
	values := []float64{0, -0.1, 0.1 + 0.2, 1e-300, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)}

	for i, v := range values {
		addr := CellAddress{Row: uint32(i)}
		_, err := table.SetCellNumber(addr, v)
		require.NoError(t, err)
		assert.Equal(t, v, table.GetCellValue(addr))
	}
}

func TestTableTextReadsAsZero(t *testing.T) {
	newTableTestCase(t, "text as zero").
		Set("A1", "abc").
		Set("B1", "=A1+1").
		AssertValue("A1", 0).
		AssertValue("B1", 1).
		End()
}

func TestTableEvalFormulaDoesNotStore(t *testing.T) {
	table := NewTable()
	_, err := table.SetCellNumber(MustParseA1("A1"), 4)
	require.NoError(t, err)

	v, err := table.EvalFormula("=A1*A1+1")
	require.NoError(t, err)
	assert.Equal(t, 17.0, v)

	_, err = table.EvalFormula("=A1/0")
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)

	_, err = table.EvalFormula("=A1+")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)

	views, err := table.Snapshot()
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, 0, table.Formulas().CellCount())
}

func TestTableSnapshot(t *testing.T) {
	table := NewTable()
	_, err := table.SetCellFormula(MustParseA1("B2"), "=A1*2")
	require.NoError(t, err)
	_, err = table.SetCellText(MustParseA1("C1"), "label")
	require.NoError(t, err)
	_, err = table.SetCellNumber(MustParseA1("A1"), 3)
	require.NoError(t, err)

	views, err := table.Snapshot()
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "A1", views[0].Address.String())
	assert.Equal(t, "C1", views[1].Address.String())
	assert.Equal(t, "B2", views[2].Address.String())
	assert.Equal(t, 6.0, views[2].Cell.Result)
}

func TestTableSnapshotUnsupported(t *testing.T) {
	// an embedded interface hides the MapStore's All method
	table := NewTable(WithStore(struct{ CellStore }{NewMapStore()}))

	_, err := table.Snapshot()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, Unimplemented, appErr.Code)
}

func TestTableSharesFormulas(t *testing.T) {
	table := NewTable()
	for _, a1 := range []string{"B1", "B2", "B3"} {
		_, err := table.SetCellFormula(MustParseA1(a1), "=SUM(A1:A3)")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, table.Formulas().Count())
	assert.Equal(t, 3, table.Formulas().CellCount())

	_, err := table.ClearCell(MustParseA1("B2"))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Formulas().CellCount())
}

func TestTableLogsPasses(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	table := NewTable(WithLogger(logger))

	_, err := table.SetCellFormula(MustParseA1("A1"), "=1+1")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "to=collecting")
	assert.Contains(t, out, "to=evaluating")
	assert.Contains(t, out, "recalc pass done")
	assert.Contains(t, out, "evaluated=1")
}
