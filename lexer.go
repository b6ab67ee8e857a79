package formula

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenNumber TokenType = iota
	TokenString
	TokenCell
	TokenRange
	TokenFunction
	TokenOperator
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenColon
)

var tokenTypeNames = [...]string{
	TokenNumber:     "number",
	TokenString:     "string",
	TokenCell:       "cell reference",
	TokenRange:      "range reference",
	TokenFunction:   "function name",
	TokenOperator:   "operator",
	TokenLeftParen:  "'('",
	TokenRightParen: "')'",
	TokenComma:      "','",
	TokenColon:      "':'",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "unknown"
}

// character classification constants. slightly easier to read.
const (
	charTab     = '\t'
	charNewline = '\n'
	charReturn  = '\r'
	charSpace   = ' '
	charQuote   = '"'
	charPeriod  = '.'
	charColon   = ':'
	charLess    = '<'
	charEqual   = '='
	charGreater = '>'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string // token text; string tokens exclude the quotes
	Pos   int    // rune offset in the original formula text
}

// lexer tokenizes formula expressions. each lexer is single use.
type lexer struct {
	runes  []rune // UTF-8 aware representation
	pos    int
	tokens []Token
}

// Tokenize lexes formula into tokens. One leading '=' is stripped; offsets
// still refer to the original text. Lexing stops at the first
// unrecognized character.
func Tokenize(formula string) ([]Token, error) {
	l := &lexer{runes: []rune(formula)}
	if len(l.runes) > 0 && l.runes[0] == charEqual {
		l.pos = 1
	}
	return l.tokenize()
}

func (l *lexer) tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			return l.tokens, nil
		}
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}
}

// nextToken scans one token starting at a non-whitespace rune
func (l *lexer) nextToken() (Token, error) {
	startPos := l.pos
	ch := l.current()

	switch {
	case ch == charQuote:
		return l.scanString()
	case isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))):
		return l.scanNumber(), nil
	case isUpper(ch):
		return l.scanIdentifierOrCell(), nil
	}

	switch ch {
	case '(':
		l.pos++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}, nil
	case ',':
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}, nil
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: startPos}, nil
	case '+', '-', '*', '/', '^', '%', charEqual, charLess, charGreater:
		return l.scanOperator(), nil
	}

	return Token{}, &LexError{Char: ch, Offset: startPos}
}

func (l *lexer) current() rune {
	return l.peek(0)
}

func (l *lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return 0
	}
	return l.runes[pos]
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isUpper(ch rune) bool {
	return ch >= 'A' && ch <= 'Z'
}

// scanNumber scans a maximal run of digits with at most one decimal point
func (l *lexer) scanNumber() Token {
	startPos := l.pos
	seenPoint := false
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charPeriod && !seenPoint {
			seenPoint = true
		} else if !isDigit(ch) {
			break
		}
		l.pos++
	}
	return Token{Type: TokenNumber, Value: string(l.runes[startPos:l.pos]), Pos: startPos}
}

// scanString scans a double-quoted literal. there are no escapes, so a
// string cannot contain a double quote.
func (l *lexer) scanString() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening quote
	for l.pos < len(l.runes) {
		if l.current() == charQuote {
			value := string(l.runes[startPos+1 : l.pos])
			l.pos++ // consume closing quote
			return Token{Type: TokenString, Value: value, Pos: startPos}, nil
		}
		l.pos++
	}
	return Token{}, &LexError{Char: charQuote, Offset: startPos, Unterminated: true}
}

// scanIdentifierOrCell scans a maximal run of [A-Z0-9:] and classifies it:
// anything containing ':' is a range, letters-then-digits is a cell,
// everything else is a function name.
func (l *lexer) scanIdentifierOrCell() Token {
	startPos := l.pos
	hasColon := false
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charColon {
			hasColon = true
		} else if !isUpper(ch) && !isDigit(ch) {
			break
		}
		l.pos++
	}

	value := string(l.runes[startPos:l.pos])
	switch {
	case hasColon:
		return Token{Type: TokenRange, Value: value, Pos: startPos}
	case isCell(value):
		return Token{Type: TokenCell, Value: value, Pos: startPos}
	default:
		return Token{Type: TokenFunction, Value: value, Pos: startPos}
	}
}

// isCell checks if a string is letters followed by digits (e.g., A1, B12)
func isCell(s string) bool {
	letterEnd := 0
	for letterEnd < len(s) && isUpper(rune(s[letterEnd])) {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return false
	}
	for i := letterEnd; i < len(s); i++ {
		if !isDigit(rune(s[i])) {
			return false
		}
	}
	return true
}

// scanOperator scans operators, checking the two-character forms first
func (l *lexer) scanOperator() Token {
	startPos := l.pos
	ch := l.current()
	next := l.peek(1)

	switch {
	case ch == charGreater && next == charEqual:
		l.pos += 2
		return Token{Type: TokenOperator, Value: ">=", Pos: startPos}
	case ch == charLess && next == charEqual:
		l.pos += 2
		return Token{Type: TokenOperator, Value: "<=", Pos: startPos}
	case ch == charLess && next == charGreater:
		l.pos += 2
		return Token{Type: TokenOperator, Value: "<>", Pos: startPos}
	}

	l.pos++
	return Token{Type: TokenOperator, Value: string(ch), Pos: startPos}
}
