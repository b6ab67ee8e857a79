package formula

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. Every failure type below matches exactly one.
var (
	ErrLex               = errors.New("lex failure")
	ErrParse             = errors.New("parse failure")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrCircularReference = errors.New("circular reference")
	ErrRuntime           = errors.New("runtime evaluation failure")
	ErrInvalidAddress    = errors.New("invalid cell address")
	ErrNoFormula         = errors.New("cell has no formula")
)

// LexError reports an unrecognized character, or an unterminated string
// starting at Offset.
type LexError struct {
	Char         rune
	Offset       int // rune offset into the formula text
	Unterminated bool
}

func (e *LexError) Error() string {
	if e.Unterminated {
		return fmt.Sprintf("unterminated string starting at offset %d", e.Offset)
	}
	return fmt.Sprintf("unrecognized character %q at offset %d", e.Char, e.Offset)
}

func (e *LexError) Is(target error) bool { return target == ErrLex }

// ParseErrorKind distinguishes grammar violations
type ParseErrorKind int

const (
	ParseErrorUnexpectedEnd ParseErrorKind = iota
	ParseErrorUnexpectedToken
	ParseErrorMissingCloseParen     // after a parenthesized expression
	ParseErrorMissingArgsCloseParen // after a function argument list
	ParseErrorMissingOpenParen      // function name not followed by '('
	ParseErrorBadReference
)

var parseErrorKindNames = map[ParseErrorKind]string{
	ParseErrorUnexpectedEnd:         "unexpected end of formula",
	ParseErrorUnexpectedToken:       "unexpected token",
	ParseErrorMissingCloseParen:     "missing ')' after expression",
	ParseErrorMissingArgsCloseParen: "missing ')' after function arguments",
	ParseErrorMissingOpenParen:      "missing '(' after function name",
	ParseErrorBadReference:          "invalid reference",
}

func (k ParseErrorKind) String() string {
	return parseErrorKindNames[k]
}

// ParseError reports a grammar violation at Pos. Expected names the
// construct the parser was looking for; Found is the offending token text,
// or empty at the end of the formula.
type ParseError struct {
	Kind     ParseErrorKind
	Expected string
	Found    string
	Pos      int
}

func (e *ParseError) Error() string {
	found := e.Found
	if found == "" {
		found = "end of formula"
	}
	return fmt.Sprintf("%s at offset %d: expected %s, found %q", e.Kind, e.Pos, e.Expected, found)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// UnknownFunctionError is returned when a formula calls a name that is not
// in the registry.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %s", e.Name)
}

func (e *UnknownFunctionError) Is(target error) bool { return target == ErrUnknownFunction }

// CircularReferenceError is returned when the dependency graph has a cycle.
// At is the node where the traversal re-entered the cycle; Cycle lists the
// loop starting and ending at At.
type CircularReferenceError struct {
	At    Address
	Cycle []Address
}

func (e *CircularReferenceError) Error() string {
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("circular reference at %s", e.At)
	}
	parts := make([]string, len(e.Cycle))
	for i, a := range e.Cycle {
		parts[i] = a.String()
	}
	return fmt.Sprintf("circular reference at %s: %s", e.At, strings.Join(parts, " -> "))
}

func (e *CircularReferenceError) Is(target error) bool { return target == ErrCircularReference }

// RuntimeError reports an operator or function given incompatible operands.
type RuntimeError struct {
	Func string // function name, empty for operators
	Msg  string
	Err  error // underlying failure from a function implementation, if any
}

func (e *RuntimeError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Func != "" {
		return e.Func + ": " + msg
	}
	return msg
}

func (e *RuntimeError) Is(target error) bool { return target == ErrRuntime }

func (e *RuntimeError) Unwrap() error { return e.Err }

func runtimeErrorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}

// isCellFailure reports whether err belongs to the taxonomy contained at a
// cell boundary.
func isCellFailure(err error) bool {
	return errors.Is(err, ErrLex) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrUnknownFunction) ||
		errors.Is(err, ErrRuntime)
}
