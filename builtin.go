package formula

import (
	"context"
	"iter"
	"math"
	"strings"

	"golang.org/x/text/language"
)

// BuiltInFunctions contains all spreadsheet built-in functions. Each method
// has the Func signature so it can be registered directly.
type BuiltInFunctions struct {
	locale language.Tag
}

// BuiltInOption configures NewBuiltInFunctions.
type BuiltInOption func(*BuiltInFunctions)

// WithLocale sets the locale used for case mapping, TEXT formatting and
// date parsing. The default is American English.
func WithLocale(tag language.Tag) BuiltInOption {
	return func(bf *BuiltInFunctions) { bf.locale = tag }
}

// NewBuiltInFunctions creates a BuiltInFunctions with default settings
func NewBuiltInFunctions(opts ...BuiltInOption) *BuiltInFunctions {
	bf := &BuiltInFunctions{locale: language.AmericanEnglish}
	for _, opt := range opts {
		opt(bf)
	}
	return bf
}

// RegisterAll registers every built-in into r.
func (bf *BuiltInFunctions) RegisterAll(r *Registry) {
	for _, spec := range bf.Specs() {
		// names and implementations are fixed, so this cannot fail
		_ = r.Register(spec.Name, spec.Fn, FunctionOptions{Arity: spec.Arity, Description: spec.Description})
	}
}

// Specs lists the built-in functions.
func (bf *BuiltInFunctions) Specs() []FunctionSpec {
	return []FunctionSpec{
		{Name: "SUM", Fn: bf.SUM, Arity: Variadic, Description: "sum of the numbers in the arguments"},
		{Name: "AVERAGE", Fn: bf.AVERAGE, Arity: Variadic, Description: "mean of the numbers in the arguments"},
		{Name: "MAX", Fn: bf.MAX, Arity: Variadic, Description: "largest number in the arguments"},
		{Name: "MIN", Fn: bf.MIN, Arity: Variadic, Description: "smallest number in the arguments"},
		{Name: "COUNT", Fn: bf.COUNT, Arity: Variadic, Description: "count of numbers in the arguments"},
		{Name: "COUNTA", Fn: bf.COUNTA, Arity: Variadic, Description: "count of non-blank values in the arguments"},
		{Name: "ROUND", Fn: bf.ROUND, Arity: 2, Description: "ROUND(value, decimals)"},
		{Name: "ABS", Fn: bf.ABS, Arity: 1, Description: "absolute value"},
		{Name: "SQRT", Fn: bf.SQRT, Arity: 1, Description: "square root"},
		{Name: "POWER", Fn: bf.POWER, Arity: 2, Description: "POWER(base, exponent)"},
		{Name: "MOD", Fn: bf.MOD, Arity: 2, Description: "MOD(dividend, divisor), sign of the divisor"},
		{Name: "PI", Fn: bf.PI, Arity: 0, Description: "the constant pi"},
		{Name: "IF", Fn: bf.IF, Arity: 3, Description: "IF(condition, then, else)"},
		{Name: "AND", Fn: bf.AND, Arity: Variadic, Description: "TRUE when every argument is truthy"},
		{Name: "OR", Fn: bf.OR, Arity: Variadic, Description: "TRUE when any argument is truthy"},
		{Name: "NOT", Fn: bf.NOT, Arity: 1, Description: "logical negation"},
		{Name: "TRUE", Fn: bf.TRUE, Arity: 0, Description: "the boolean TRUE"},
		{Name: "FALSE", Fn: bf.FALSE, Arity: 0, Description: "the boolean FALSE"},
		{Name: "ISNUMBER", Fn: bf.ISNUMBER, Arity: 1, Description: "TRUE for a number"},
		{Name: "ISTEXT", Fn: bf.ISTEXT, Arity: 1, Description: "TRUE for text"},
		{Name: "ISBLANK", Fn: bf.ISBLANK, Arity: 1, Description: "TRUE for an empty cell or empty text"},
		{Name: "VLOOKUP", Fn: bf.VLOOKUP, Arity: 4, Description: "VLOOKUP(target, table, column, exact)"},
		{Name: "CONCATENATE", Fn: bf.CONCATENATE, Arity: Variadic, Description: "joins the arguments as text"},
		{Name: "UPPER", Fn: bf.UPPER, Arity: 1, Description: "text in upper case"},
		{Name: "LOWER", Fn: bf.LOWER, Arity: 1, Description: "text in lower case"},
		{Name: "TRIM", Fn: bf.TRIM, Arity: 1, Description: "text without leading, trailing or repeated spaces"},
		{Name: "LEN", Fn: bf.LEN, Arity: 1, Description: "number of characters"},
		{Name: "TEXT", Fn: bf.TEXT, Arity: 2, Description: "TEXT(value, pattern) formats a number or date"},
		{Name: "DATEVALUE", Fn: bf.DATEVALUE, Arity: 1, Description: "parses text into a date"},
	}
}

// checkForError returns the first error value among args
func checkForError(args ...Value) (ErrorValue, bool) {
	for _, arg := range args {
		if e, ok := arg.(ErrorValue); ok {
			return e, true
		}
	}
	return ErrorValue{}, false
}

// flatten yields scalars, expanding ranges row-major
func flatten(args []Value) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, arg := range args {
			arr, ok := arg.(*Array)
			if !ok {
				if !yield(arg) {
					return
				}
				continue
			}
			for _, row := range arr.Rows {
				for _, v := range row {
					if !yield(v) {
						return
					}
				}
			}
		}
	}
}

// numbers yields the Number values among the flattened args. text, booleans
// and error values in the arguments are ignored.
func numbers(args []Value) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for v := range flatten(args) {
			if n, ok := v.(Number); ok {
				if !yield(float64(n)) {
					return
				}
			}
		}
	}
}

func (bf *BuiltInFunctions) SUM(_ context.Context, args []Value) (Value, error) {
	sum := 0.0
	for n := range numbers(args) {
		sum += n
	}
	return Number(sum), nil
}

func (bf *BuiltInFunctions) AVERAGE(_ context.Context, args []Value) (Value, error) {
	sum := 0.0
	count := 0
	for n := range numbers(args) {
		sum += n
		count++
	}
	if count == 0 {
		return ErrorValue{Code: ErrorCodeDiv0}, nil
	}
	return Number(sum / float64(count)), nil
}

// MAX returns 0 when there are no numbers
func (bf *BuiltInFunctions) MAX(_ context.Context, args []Value) (Value, error) {
	result := math.Inf(-1)
	for n := range numbers(args) {
		result = max(result, n)
	}
	if math.IsInf(result, -1) {
		return Number(0), nil
	}
	return Number(result), nil
}

// MIN returns 0 when there are no numbers
func (bf *BuiltInFunctions) MIN(_ context.Context, args []Value) (Value, error) {
	result := math.Inf(1)
	for n := range numbers(args) {
		result = min(result, n)
	}
	if math.IsInf(result, 1) {
		return Number(0), nil
	}
	return Number(result), nil
}

func (bf *BuiltInFunctions) COUNT(_ context.Context, args []Value) (Value, error) {
	count := 0
	for range numbers(args) {
		count++
	}
	return Number(count), nil
}

// COUNTA counts every non-blank value, error values included
func (bf *BuiltInFunctions) COUNTA(_ context.Context, args []Value) (Value, error) {
	count := 0
	for v := range flatten(args) {
		if !IsBlank(v) {
			count++
		}
	}
	return Number(count), nil
}

func (bf *BuiltInFunctions) ROUND(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	num, err := ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	places, err := ToNumber(args[1])
	if err != nil {
		return nil, err
	}

	// beyond float64's exponent range every value is already rounded, or rounds to zero
	places = math.Trunc(places)
	switch {
	case places > 308:
		return Number(num), nil
	case places < -308:
		return Number(0), nil
	}
	multiplier := math.Pow(10, places)
	scaled := num * multiplier
	if math.IsInf(scaled, 0) && !math.IsInf(num, 0) {
		return Number(num), nil
	}
	rounded := math.Round(scaled) / multiplier
	if math.IsNaN(rounded) || math.IsInf(rounded, 0) {
		return nil, runtimeErrorf("cannot round %s to %s places", Number(num), Number(places))
	}
	return Number(rounded), nil
}

func (bf *BuiltInFunctions) ABS(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	num, err := ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	return Number(math.Abs(num)), nil
}

func (bf *BuiltInFunctions) SQRT(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	num, err := ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	if num < 0 {
		return nil, runtimeErrorf("requires a non-negative argument, got %s", Number(num))
	}
	return Number(math.Sqrt(num)), nil
}

func (bf *BuiltInFunctions) POWER(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	base, err := ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	exp, err := ToNumber(args[1])
	if err != nil {
		return nil, err
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, runtimeErrorf("%s raised to %s is not a finite number", Number(base), Number(exp))
	}
	return Number(result), nil
}

// MOD takes the sign of the divisor, unlike the % operator
func (bf *BuiltInFunctions) MOD(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	a, err := ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	b, err := ToNumber(args[1])
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return ErrorValue{Code: ErrorCodeDiv0}, nil
	}
	return Number(a - b*math.Floor(a/b)), nil
}

func (bf *BuiltInFunctions) PI(_ context.Context, _ []Value) (Value, error) {
	return Number(math.Pi), nil
}

// IF propagates an error condition; both branches are already evaluated
func (bf *BuiltInFunctions) IF(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args[0]); ok {
		return e, nil
	}
	cond, err := Truthy(args[0])
	if err != nil {
		return nil, err
	}
	if cond {
		return args[1], nil
	}
	return args[2], nil
}

func (bf *BuiltInFunctions) AND(_ context.Context, args []Value) (Value, error) {
	result := true
	for v := range flatten(args) {
		if e, ok := v.(ErrorValue); ok {
			return e, nil
		}
		b, err := Truthy(v)
		if err != nil {
			return nil, err
		}
		result = result && b
	}
	return Boolean(result), nil
}

func (bf *BuiltInFunctions) OR(_ context.Context, args []Value) (Value, error) {
	result := false
	for v := range flatten(args) {
		if e, ok := v.(ErrorValue); ok {
			return e, nil
		}
		b, err := Truthy(v)
		if err != nil {
			return nil, err
		}
		result = result || b
	}
	return Boolean(result), nil
}

func (bf *BuiltInFunctions) NOT(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	b, err := Truthy(args[0])
	if err != nil {
		return nil, err
	}
	return Boolean(!b), nil
}

func (bf *BuiltInFunctions) TRUE(_ context.Context, _ []Value) (Value, error) {
	return Boolean(true), nil
}

func (bf *BuiltInFunctions) FALSE(_ context.Context, _ []Value) (Value, error) {
	return Boolean(false), nil
}

func (bf *BuiltInFunctions) ISNUMBER(_ context.Context, args []Value) (Value, error) {
	_, ok := args[0].(Number)
	return Boolean(ok), nil
}

func (bf *BuiltInFunctions) ISTEXT(_ context.Context, args []Value) (Value, error) {
	_, ok := args[0].(Text)
	return Boolean(ok), nil
}

func (bf *BuiltInFunctions) ISBLANK(_ context.Context, args []Value) (Value, error) {
	return Boolean(IsBlank(args[0])), nil
}

// VLOOKUP searches the first column of table. In exact mode a row matches
// when its first cell equals target; otherwise a row matches when the text
// of its first cell contains the text of target. The first matching row
// wins; no match is #N/D.
func (bf *BuiltInFunctions) VLOOKUP(_ context.Context, args []Value) (Value, error) {
	target := args[0]
	if e, ok := checkForError(target); ok {
		return e, nil
	}
	if _, ok := target.(*Array); ok {
		return nil, runtimeErrorf("lookup value cannot be a range")
	}
	table, ok := args[1].(*Array)
	if !ok {
		return nil, runtimeErrorf("table must be a range, got %s", args[1].Type())
	}
	colNum, err := ToNumber(args[2])
	if err != nil {
		return nil, err
	}
	col := int(colNum)
	if col < 1 || col > table.Width() {
		return nil, runtimeErrorf("column %d is outside a table %d columns wide", col, table.Width())
	}
	exact, err := Truthy(args[3])
	if err != nil {
		return nil, err
	}

	needle := target.String()
	for _, row := range table.Rows {
		var match bool
		if exact {
			cmp, ok := compareValues(target, row[0])
			match = ok && cmp == 0
		} else {
			match = strings.Contains(row[0].String(), needle)
		}
		if match {
			return row[col-1], nil
		}
	}
	return ErrorValue{Code: ErrorCodeNA}, nil
}
