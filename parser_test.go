package gridcalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/efp"
)

func TestParserBasicFormulas(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2", "(1+2)"},
		{"=1+2*3", "(1+(2*3))"},
		{"=1-2-3", "((1-2)-3)"},
		{"=8/4/2", "((8/4)/2)"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=A1", "A1"},
		{"=a1*b2", "(A1*B2)"},
		{"=-A1+2", "(-A1+2)"},
		{"=--1", "--1"},
		{"=+A1", "+A1"},
		{"=SUM(A1:A10)", "SUM(A1:A10)"},
		{"=sum(a1:b2, 3)", "SUM(A1:B2,3)"},
		{"=SUM(B2:A1)", "SUM(B2:A1)"},
		{"=SUM()", "SUM()"},
		{"=AVERAGE(A1:A3)+COUNT(B1:B3)/2", "(AVERAGE(A1:A3)+(COUNT(B1:B3)/2))"},
		{"=MAX(MIN(A1,2),3)", "MAX(MIN(A1,2),3)"},
		{"=1.5e3", "1500"},
		{"=.5", "0.5"},
		{"= 1 +\t2 ", "(1+2)"},
		{"1+2", "(1+2)"},
		{"=AA10", "AA10"},
		{"=A1:B2", "A1:B2"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			ast, err := Parse(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.String())
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	tests := []struct {
		formula string
		kind    ParseErrorKind
		offset  int
	}{
		{"", ParseErrorUnterminatedExpression, 0},
		{"=", ParseErrorUnterminatedExpression, 1},
		{"=SUM(", ParseErrorUnterminatedExpression, 5},
		{"=SUM(A1:)", ParseErrorInvalidReference, 8},
		{"=A1:", ParseErrorUnterminatedExpression, 4},
		{"=A1:5", ParseErrorInvalidReference, 4},
		{"=1+", ParseErrorUnterminatedExpression, 3},
		{"=(1+2", ParseErrorUnterminatedExpression, 5},
		{"=1+2)", ParseErrorUnexpectedToken, 4},
		{"=1 2", ParseErrorUnexpectedToken, 3},
		{"=1+#", ParseErrorUnexpectedToken, 3},
		{"=*2", ParseErrorUnexpectedToken, 1},
		{"=SUM(1;2)", ParseErrorUnexpectedToken, 6},
		{"=SUM(,1)", ParseErrorUnexpectedToken, 5},
		{"=FOO(1)", ParseErrorInvalidReference, 1},
		{"=1+foo", ParseErrorInvalidReference, 3},
		{"=A0", ParseErrorInvalidReference, 1},
		{"=A1:B0", ParseErrorInvalidReference, 4},
		{"=ZZZZZZZZ1", ParseErrorInvalidReference, 1},
		{"=A99999999999", ParseErrorInvalidReference, 1},
		{`="hello"`, ParseErrorUnexpectedToken, 1},
		{`="hello`, ParseErrorUnexpectedToken, 1},
		{"=1e999", ParseErrorUnexpectedToken, 1},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := Parse(tt.formula)
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.kind, perr.Kind, perr.Error())
			assert.Equal(t, tt.offset, perr.Offset, perr.Error())
		})
	}
}

func TestParserIsPure(t *testing.T) {
	first, err := Parse("=SUM(A1:B3)*-C4/(2+D5)")
	require.NoError(t, err)
	second, err := Parse("=SUM(A1:B3)*-C4/(2+D5)")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestParserPositions(t *testing.T) {
	ast, err := Parse("=A1 + SUM(B1:B2)")
	require.NoError(t, err)

	bin, ok := ast.(*BinaryOpNode)
	require.True(t, ok)
	assert.Equal(t, NodePosition{Start: 1, End: 16}, bin.GetPosition())
	assert.Equal(t, NodePosition{Start: 1, End: 3}, bin.Left.GetPosition())

	call, ok := bin.Right.(*FunctionCallNode)
	require.True(t, ok)
	assert.Equal(t, NodePosition{Start: 6, End: 16}, call.GetPosition())
	require.Len(t, call.Args, 1)
	assert.Equal(t, NodePosition{Start: 10, End: 15}, call.Args[0].GetPosition())
}

func TestRangeNodeIsNormalized(t *testing.T) {
	ast, err := Parse("=B3:A1")
	require.NoError(t, err)

	rn, ok := ast.(*RangeNode)
	require.True(t, ok)
	assert.Equal(t, RangeAddress{StartRow: 0, StartColumn: 0, EndRow: 2, EndColumn: 1}, rn.Range())
}

func TestReferences(t *testing.T) {
	ast, err := Parse("=C2+SUM(B1:B3,A1)+A1*COUNT(B3:B1)")
	require.NoError(t, err)

	cells, ranges := References(ast)
	assert.Equal(t, []CellAddress{MustParseA1("A1"), MustParseA1("C2")}, cells)
	assert.Equal(t, []RangeAddress{{StartRow: 0, StartColumn: 1, EndRow: 2, EndColumn: 1}}, ranges)
}

// countReferenceNodes counts cell and range nodes in an AST
func countReferenceNodes(node ASTNode) int {
	switch n := node.(type) {
	case *CellRefNode, *RangeNode:
		return 1
	case *BinaryOpNode:
		return countReferenceNodes(n.Left) + countReferenceNodes(n.Right)
	case *UnaryOpNode:
		return countReferenceNodes(n.Operand)
	case *FunctionCallNode:
		total := 0
		for _, arg := range n.Args {
			total += countReferenceNodes(arg)
		}
		return total
	}
	return 0
}

// the efp tokenizer is an independent reading of the same formula syntax;
// every reference operand it finds must show up in our AST
func TestParserAgreesWithExcelTokenizer(t *testing.T) {
	formulas := []string{
		"=A1+B2",
		"=SUM(A1:A3)",
		"=SUM(A1:A3)+B2*2",
		"=AVERAGE(A1:B10)/COUNT(C1:C4)",
		"=MAX(A1,B1,C1)-MIN(D1:D9)",
		"=-A1+(B1*(C1-D1))",
		"=SUM(A1:A3,B1:B3,7)",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			ast, err := Parse(formula)
			require.NoError(t, err)

			ps := efp.ExcelParser()
			operands := 0
			for _, tok := range ps.Parse(formula) {
				if tok.TType == efp.TokenTypeOperand && tok.TSubType == efp.TokenSubTypeRange {
					operands++
				}
			}

			assert.Equal(t, operands, countReferenceNodes(ast))
		})
	}
}
