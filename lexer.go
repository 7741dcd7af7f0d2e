package gridcalc

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenCell
	TokenFunction
	TokenIdentifier
	TokenOperator
	TokenComma
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenError
)

var tokenTypeNames = [...]string{
	TokenEOF:        "end of input",
	TokenNumber:     "number",
	TokenString:     "string",
	TokenCell:       "cell",
	TokenFunction:   "function",
	TokenIdentifier: "identifier",
	TokenOperator:   "operator",
	TokenComma:      "','",
	TokenColon:      "':'",
	TokenLeftParen:  "'('",
	TokenRightParen: "')'",
	TokenError:      "invalid input",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "token"
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charUnderscore = '_'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the full formula source
	End   int // byte offset just past the token
}

// Lexer tokenizes formula expressions on demand. it never fails: input it
// cannot classify comes back as a TokenError and the parser decides what
// to report.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer that starts scanning at offset start, so that
// token positions stay relative to the whole source
func NewLexer(input string, start int) *Lexer {
	return &Lexer{input: input, pos: start}
}

// Tokenize scans the rest of the input, ending with TokenEOF
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// Next returns the next token from the input
func (l *Lexer) Next() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: len(l.input), End: len(l.input)}
	}

	startPos := l.pos
	ch := l.current()

	// strings are lexed so the parser can point at them, no formula here
	// accepts one
	if ch == charQuote {
		return l.scanString()
	}

	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	switch ch {
	case charLParen:
		l.pos++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos, End: l.pos}
	case charRParen:
		l.pos++
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos, End: l.pos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos, End: l.pos}
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: startPos, End: l.pos}
	case charPlus, charMinus, charAsterisk, charSlash:
		l.pos++
		return Token{Type: TokenOperator, Value: string(ch), Pos: startPos, End: l.pos}
	}

	if isLetter(ch) || ch == charUnderscore {
		return l.scanIdentifierOrCell()
	}

	// unknown character. consume the whole UTF-8 sequence so the
	// reported value is readable.
	l.pos++
	for l.pos < len(l.input) && l.input[l.pos]&0xC0 == 0x80 {
		l.pos++
	}
	return Token{Type: TokenError, Value: l.input[startPos:l.pos], Pos: startPos, End: l.pos}
}

func (l *Lexer) current() byte {
	if l.pos >= len(l.input) {
		return charNull
	}
	return l.input[l.pos]
}

func (l *Lexer) peek(offset int) byte {
	pos := l.pos + offset
	if pos >= len(l.input) || pos < 0 {
		return charNull
	}
	return l.input[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	// integer part
	for isDigit(l.current()) {
		l.pos++
	}

	// decimal part
	if l.current() == charPeriod {
		l.pos++
		for isDigit(l.current()) {
			l.pos++
		}
	}

	// scientific notation (e or E)
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++

		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		if !isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.input[startPos:l.pos], Pos: startPos, End: l.pos}
}

// scanString scans a double-quoted literal with "" escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // opening quote

	for l.pos < len(l.input) {
		if l.current() == charQuote {
			if l.peek(1) == charQuote {
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: l.input[startPos:l.pos], Pos: startPos, End: l.pos}
		}
		l.pos++
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos, End: l.pos}
}

// scanIdentifierOrCell scans cells, function names and bare identifiers.
// a name immediately followed by '(' is a function.
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos

	for l.pos < len(l.input) && (isLetter(l.current()) || isDigit(l.current()) || l.current() == charUnderscore) {
		l.pos++
	}

	value := l.input[startPos:l.pos]
	upperValue := toUpper(value)

	if l.current() == charLParen {
		return Token{Type: TokenFunction, Value: upperValue, Pos: startPos, End: l.pos}
	}

	if _, _, ok := splitCellRef(value); ok {
		return Token{Type: TokenCell, Value: upperValue, Pos: startPos, End: l.pos}
	}

	return Token{Type: TokenIdentifier, Value: value, Pos: startPos, End: l.pos}
}

// toUpper converts ASCII letters to upper case
func toUpper(s string) string {
	result := []byte(s)
	for i, ch := range result {
		result[i] = toUpperByte(ch)
	}
	return string(result)
}
