package formula

import (
	"strconv"
	"unicode/utf8"
)

// Parser parses tokens into an AST by recursive descent. Grammar, lowest
// precedence first, every binary tier left-associative:
//
//	comparison     := additive (('='|'<'|'>'|'<='|'>='|'<>') additive)*
//	additive       := multiplicative (('+'|'-') multiplicative)*
//	multiplicative := unary (('*'|'/'|'%'|'^') unary)*
//	unary          := ('+'|'-') unary | primary
//	primary        := NUMBER | STRING | CELL | RANGE
//	                | FUNCTION '(' (comparison (',' comparison)*)? ')'
//	                | '(' comparison ')'
//
// '^' shares the multiplicative tier, so 2*3^2 is (2*3)^2 = 36 and 2^3^2 is
// (2^3)^2 = 64. Function arity is checked at evaluation, not here.
type Parser struct {
	tokens []Token
	pos    int
	end    int // offset just past the last token, reported at end of input
}

// NewParser creates a parser over tokens produced by Tokenize.
func NewParser(tokens []Token) *Parser {
	p := &Parser{tokens: tokens}
	if n := len(tokens); n > 0 {
		p.end = tokenEnd(tokens[n-1])
	}
	return p
}

// Parse parses a complete token stream.
func Parse(tokens []Token) (ASTNode, error) {
	return NewParser(tokens).Parse()
}

// ParseFormula lexes and parses formula text in one step.
func ParseFormula(formula string) (ASTNode, error) {
	tokens, err := Tokenize(formula)
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	if len(tokens) == 0 {
		p.end = utf8.RuneCountInString(formula)
	}
	return p.Parse()
}

// Parse parses the tokens into a single AST, consuming all of them
func (p *Parser) Parse() (ASTNode, error) {
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, &ParseError{
			Kind:     ParseErrorUnexpectedToken,
			Expected: "end of formula",
			Found:    tok.Value,
			Pos:      tok.Pos,
		}
	}
	return node, nil
}

func (p *Parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// peekOperator returns the operator at the cursor, or "" if the next token
// is not an operator.
func (p *Parser) peekOperator() string {
	tok, ok := p.peek()
	if !ok || tok.Type != TokenOperator {
		return ""
	}
	return tok.Value
}

func (p *Parser) unexpectedEnd(expected string) *ParseError {
	return &ParseError{Kind: ParseErrorUnexpectedEnd, Expected: expected, Pos: p.end}
}

var comparisonOps = map[string]BinaryOp{
	"=":  BinOpEqual,
	"<>": BinOpNotEqual,
	"<":  BinOpLess,
	"<=": BinOpLessEqual,
	">":  BinOpGreater,
	">=": BinOpGreaterEqual,
}

var additiveOps = map[string]BinaryOp{
	"+": BinOpAdd,
	"-": BinOpSubtract,
}

var multiplicativeOps = map[string]BinaryOp{
	"*": BinOpMultiply,
	"/": BinOpDivide,
	"%": BinOpModulo,
	"^": BinOpPower,
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	return p.parseBinaryTier(comparisonOps, p.parseAddition)
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	return p.parseBinaryTier(additiveOps, p.parseMultiplication)
}

// parseMultiplication handles multiplication, division, modulo and power
func (p *Parser) parseMultiplication() (ASTNode, error) {
	return p.parseBinaryTier(multiplicativeOps, p.parseUnary)
}

// parseBinaryTier parses a left-associative chain of operands joined by
// operators from ops.
func (p *Parser) parseBinaryTier(ops map[string]BinaryOp, operand func() (ASTNode, error)) (ASTNode, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := ops[p.peekOperator()]
		if !ok {
			return left, nil
		}
		p.pos++

		right, err := operand()
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
}

// parseUnary handles prefix + and -
func (p *Parser) parseUnary() (ASTNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.unexpectedEnd("expression")
	}

	if tok.Type == TokenOperator && (tok.Value == "+" || tok.Value == "-") {
		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
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

// parsePrimary handles literals, references, function calls and
// parenthesized expressions
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.unexpectedEnd("expression")
	}
	position := NodePosition{Start: tok.Pos, End: tokenEnd(tok)}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &ParseError{Kind: ParseErrorUnexpectedToken, Expected: "number", Found: tok.Value, Pos: tok.Pos}
		}
		return &LiteralNode{Value: Number(val), Position: position}, nil

	case TokenString:
		p.pos++
		return &LiteralNode{Value: Text(tok.Value), Position: position}, nil

	case TokenCell:
		p.pos++
		addr, err := ParseAddress(tok.Value)
		if err != nil {
			return nil, &ParseError{Kind: ParseErrorBadReference, Expected: "cell reference", Found: tok.Value, Pos: tok.Pos}
		}
		return &CellRefNode{Address: addr, Position: position}, nil

	case TokenRange:
		p.pos++
		r, err := ParseRange(tok.Value)
		if err != nil {
			return nil, &ParseError{Kind: ParseErrorBadReference, Expected: "range reference", Found: tok.Value, Pos: tok.Pos}
		}
		return &RangeNode{Range: r, Position: position}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.Type != TokenRightParen {
			return nil, p.missing(ParseErrorMissingCloseParen, "')'")
		}
		p.pos++
		return node, nil

	default:
		return nil, &ParseError{Kind: ParseErrorUnexpectedToken, Expected: "expression", Found: tok.Value, Pos: tok.Pos}
	}
}

// parseFunctionCall parses NAME '(' args ')'
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.tokens[p.pos]
	p.pos++

	open, ok := p.peek()
	if !ok || open.Type != TokenLeftParen {
		return nil, p.missing(ParseErrorMissingOpenParen, "'(' after "+funcTok.Value)
	}
	p.pos++

	args := []ASTNode{}
	if tok, ok := p.peek(); ok && tok.Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: tok.Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok, ok := p.peek()
		if ok && tok.Type == TokenComma {
			p.pos++
			continue
		}
		if !ok || tok.Type != TokenRightParen {
			return nil, p.missing(ParseErrorMissingArgsCloseParen, "',' or ')' in arguments of "+funcTok.Value)
		}
		p.pos++
		return &FunctionCallNode{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: tok.Pos + 1},
		}, nil
	}
}

// missing builds a parse error of the given kind at the cursor, whether
// the cursor is on a wrong token or past the end.
func (p *Parser) missing(kind ParseErrorKind, expected string) *ParseError {
	tok, ok := p.peek()
	if !ok {
		return &ParseError{Kind: kind, Expected: expected, Pos: p.end}
	}
	return &ParseError{Kind: kind, Expected: expected, Found: tok.Value, Pos: tok.Pos}
}

// tokenEnd returns the offset just past tok
func tokenEnd(tok Token) int {
	n := utf8.RuneCountInString(tok.Value)
	if tok.Type == TokenString {
		n += 2 // quotes
	}
	return tok.Pos + n
}
