package gridcalc

import (
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is a parsed formula expression. dependency extraction and
// evaluation both work by walking the tree rather than the source text.
// nodes are immutable once parsed.
type ASTNode interface {
	Eval(ev *Evaluator) (float64, error)
	GetPosition() NodePosition
	String() string
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
)

func (op BinaryOp) String() string {
	switch op {
	case BinOpAdd:
		return "+"
	case BinOpSubtract:
		return "-"
	case BinOpMultiply:
		return "*"
	case BinOpDivide:
		return "/"
	}
	return "?"
}

// UnaryOp represents prefix operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ev *Evaluator) (float64, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) String() string {
	return formatNumber(n.Value)
}

// CellRefNode represents a reference to a single cell
type CellRefNode struct {
	Address  CellAddress
	Position NodePosition
}

func (n *CellRefNode) Eval(ev *Evaluator) (float64, error) {
	return ev.cellValue(n.Address)
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) String() string {
	return n.Address.String()
}

// RangeNode represents a rectangular range. it only has meaning as a
// direct argument of a range-aware function.
type RangeNode struct {
	From     CellAddress
	To       CellAddress
	Position NodePosition
}

// Range returns the normalized rectangle covered by the node
func (n *RangeNode) Range() RangeAddress {
	return NewRangeAddress(n.From, n.To)
}

func (n *RangeNode) Eval(ev *Evaluator) (float64, error) {
	return 0, newEvalError(EvalErrorRangeNotAllowed)
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) String() string {
	return n.From.String() + ":" + n.To.String()
}

// BinaryOpNode represents an arithmetic operation on two operands
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ev *Evaluator) (float64, error) {
	left, err := n.Left.Eval(ev)
	if err != nil {
		return 0, err
	}
	right, err := n.Right.Eval(ev)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case BinOpAdd:
		return left + right, nil
	case BinOpSubtract:
		return left - right, nil
	case BinOpMultiply:
		return left * right, nil
	case BinOpDivide:
		if right == 0 {
			return 0, newEvalError(EvalErrorDivideByZero)
		}
		return left / right, nil
	}
	return 0, NewApplicationError(Internal, "unknown binary operator "+n.Op.String())
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) String() string {
	return "(" + n.Left.String() + n.Op.String() + n.Right.String() + ")"
}

// UnaryOpNode represents a prefix sign
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ev *Evaluator) (float64, error) {
	v, err := n.Operand.Eval(ev)
	if err != nil {
		return 0, err
	}
	if n.Op == UnaryOpMinus {
		return -v, nil
	}
	return v, nil
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) String() string {
	if n.Op == UnaryOpMinus {
		return "-" + n.Operand.String()
	}
	return "+" + n.Operand.String()
}

// FunctionCallNode represents a call to a built-in function. the name is
// stored upper-cased and was resolved against the built-in table at
// parse time.
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ev *Evaluator) (float64, error) {
	fn, ok := lookupBuiltin(n.Name)
	if !ok {
		return 0, NewApplicationError(Internal, "function "+n.Name+" vanished after parse")
	}
	return fn(ev, n.Args)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}
