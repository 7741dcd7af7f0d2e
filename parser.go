package gridcalc

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Parser turns formula text into an AST by recursive descent:
//
//	expr    := term (("+"|"-") term)*
//	term    := unary (("*"|"/") unary)*
//	unary   := ("+"|"-") unary | primary
//	primary := NUMBER | CELL | CELL ":" CELL | NAME "(" args ")" | "(" expr ")"
//
// parsing is pure: it never touches a store.
type Parser struct {
	source string
	lexer  *Lexer
	tok    Token // current lookahead
}

// NewParser creates a parser for source. a leading '=' is skipped but
// still counts towards reported offsets.
func NewParser(source string) *Parser {
	start := 0
	if strings.HasPrefix(source, "=") {
		start = 1
	}
	return &Parser{source: source, lexer: NewLexer(source, start)}
}

// Parse parses a complete formula
func Parse(source string) (ASTNode, error) {
	return NewParser(source).Parse()
}

// Parse parses the whole source and fails if anything is left over
func (p *Parser) Parse() (ASTNode, error) {
	p.advance()

	node, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	if p.tok.Type != TokenEOF {
		return nil, p.unexpected(p.tok)
	}
	return node, nil
}

func (p *Parser) advance() {
	p.tok = p.lexer.Next()
}

// parseAddition handles + and - (left-associative)
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.tok.Type == TokenOperator && (p.tok.Value == "+" || p.tok.Value == "-") {
		op := BinOpAdd
		if p.tok.Value == "-" {
			op = BinOpSubtract
		}
		p.advance()

		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles * and / (left-associative)
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.tok.Type == TokenOperator && (p.tok.Value == "*" || p.tok.Value == "/") {
		op := BinOpMultiply
		if p.tok.Value == "/" {
			op = BinOpDivide
		}
		p.advance()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseUnary handles prefix signs
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.tok.Type == TokenOperator && (p.tok.Value == "+" || p.tok.Value == "-") {
		tok := p.tok
		p.advance()

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		op := UnaryOpPlus
		if tok.Value == "-" {
			op = UnaryOpMinus
		}
		return &UnaryOpNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePrimary()
}

// parsePrimary handles literals, references, calls and parentheses
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.tok

	switch tok.Type {
	case TokenNumber:
		value, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil || math.IsInf(value, 0) {
			return nil, &ParseError{Kind: ParseErrorUnexpectedToken, Offset: tok.Pos, Detail: fmt.Sprintf("number %s is out of range", tok.Value)}
		}
		p.advance()
		return &NumberNode{Value: value, Position: NodePosition{Start: tok.Pos, End: tok.End}}, nil

	case TokenCell:
		return p.parseReference()

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenIdentifier:
		return nil, &ParseError{Kind: ParseErrorInvalidReference, Offset: tok.Pos, Detail: fmt.Sprintf("unknown name %q", tok.Value)}

	case TokenLeftParen:
		p.advance()

		expr, err := p.parseAddition()
		if err != nil {
			return nil, err
		}

		if p.tok.Type != TokenRightParen {
			return nil, p.unexpected(p.tok)
		}
		p.advance()
		return expr, nil
	}

	return nil, p.unexpected(tok)
}

// parseReference parses a cell, or a range when the cell is followed by ':'
func (p *Parser) parseReference() (ASTNode, error) {
	first := p.tok
	from, err := parseCellRef(first.Value)
	if err != nil {
		return nil, &ParseError{Kind: ParseErrorInvalidReference, Offset: first.Pos, Detail: err.Error()}
	}
	p.advance()

	if p.tok.Type != TokenColon {
		return &CellRefNode{Address: from, Position: NodePosition{Start: first.Pos, End: first.End}}, nil
	}
	p.advance()

	second := p.tok
	switch second.Type {
	case TokenEOF:
		return nil, &ParseError{Kind: ParseErrorUnterminatedExpression, Offset: len(p.source), Detail: "range is missing its end cell"}
	case TokenCell:
	default:
		return nil, &ParseError{Kind: ParseErrorInvalidReference, Offset: second.Pos, Detail: fmt.Sprintf("expected a cell after ':', found %s", describe(second))}
	}

	to, err := parseCellRef(second.Value)
	if err != nil {
		return nil, &ParseError{Kind: ParseErrorInvalidReference, Offset: second.Pos, Detail: err.Error()}
	}
	p.advance()

	return &RangeNode{From: from, To: to, Position: NodePosition{Start: first.Pos, End: second.End}}, nil
}

// parseFunctionCall parses NAME(args). unknown names fail here rather
// than at evaluation time.
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	nameTok := p.tok
	if _, ok := lookupBuiltin(nameTok.Value); !ok {
		return nil, &ParseError{Kind: ParseErrorInvalidReference, Offset: nameTok.Pos, Detail: fmt.Sprintf("unknown function %s", nameTok.Value)}
	}
	p.advance()

	// the lexer only emits a function token in front of '('
	p.advance()

	var args []ASTNode
	if p.tok.Type == TokenRightParen {
		end := p.tok.End
		p.advance()
		return &FunctionCallNode{Name: nameTok.Value, Position: NodePosition{Start: nameTok.Pos, End: end}}, nil
	}

	for {
		arg, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		switch p.tok.Type {
		case TokenComma:
			p.advance()
			continue
		case TokenRightParen:
			end := p.tok.End
			p.advance()
			return &FunctionCallNode{Name: nameTok.Value, Args: args, Position: NodePosition{Start: nameTok.Pos, End: end}}, nil
		}
		return nil, p.unexpected(p.tok)
	}
}

// unexpected reports tok as out of place. running out of input while an
// operand or ')' is still owed is an unterminated expression.
func (p *Parser) unexpected(tok Token) *ParseError {
	if tok.Type == TokenEOF {
		return &ParseError{Kind: ParseErrorUnterminatedExpression, Offset: len(p.source), Detail: "unexpected end of formula"}
	}
	return &ParseError{Kind: ParseErrorUnexpectedToken, Offset: tok.Pos, Detail: "unexpected " + describe(tok)}
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return tok.Type.String()
	case TokenError:
		if tok.Value == "unclosed string literal" {
			return tok.Value
		}
		return fmt.Sprintf("character %q", tok.Value)
	}
	return fmt.Sprintf("%s %q", tok.Type, tok.Value)
}

// References returns the sorted, de-duplicated cells and ranges an AST
// reads
func References(node ASTNode) (cells []CellAddress, ranges []RangeAddress) {
	var walk func(ASTNode)
	walk = func(n ASTNode) {
		switch n := n.(type) {
		case *CellRefNode:
			cells = append(cells, n.Address)
		case *RangeNode:
			ranges = append(ranges, n.Range())
		case *BinaryOpNode:
			walk(n.Left)
			walk(n.Right)
		case *UnaryOpNode:
			walk(n.Operand)
		case *FunctionCallNode:
			for _, arg := range n.Args {
				walk(arg)
			}
		}
	}
	walk(node)

	slices.SortFunc(cells, compareAddresses)
	cells = slices.Compact(cells)
	slices.SortFunc(ranges, compareRanges)
	ranges = slices.Compact(ranges)
	return cells, ranges
}

func compareRanges(a, b RangeAddress) int {
	if c := compareAddresses(a.Start(), b.Start()); c != 0 {
		return c
	}
	return compareAddresses(a.End(), b.End())
}
