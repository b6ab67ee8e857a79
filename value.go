package formula

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Value represents a cell value or an intermediate evaluation result.
// implementations:
//   - Empty: an absent or cleared cell
//   - Number: numeric values
//   - Text: text values
//   - Boolean: TRUE/FALSE
//   - Date: calendar dates and times
//   - ErrorValue: error markers (#DIV/0!, #ERROR!, #N/D)
//   - *Array: a rectangular block produced by a range reference
type Value interface {
	Type() CellType
	String() string
	isValue()
}

type (
	Empty      struct{}
	Number     float64
	Text       string
	Boolean    bool
	Date       time.Time
	ErrorValue struct{ Code ErrorCode }
)

// Array is the value of a range reference. Rows is row-major and every row
// has the same length.
type Array struct {
	Rows [][]Value
}

func (Empty) Type() CellType      { return CellValueTypeEmpty }
func (Number) Type() CellType     { return CellValueTypeNumber }
func (Text) Type() CellType       { return CellValueTypeString }
func (Boolean) Type() CellType    { return CellValueTypeBoolean }
func (Date) Type() CellType       { return CellValueTypeDate }
func (ErrorValue) Type() CellType { return CellValueTypeError }
func (*Array) Type() CellType     { return CellValueTypeArray }

func (Empty) isValue()      {}
func (Number) isValue()     {}
func (Text) isValue()       {}
func (Boolean) isValue()    {}
func (Date) isValue()       {}
func (ErrorValue) isValue() {}
func (*Array) isValue()     {}

func (Empty) String() string { return "" }

// String formats the number with up to 15 significant digits, which hides
// binary rounding noise such as 0.1+0.2.
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', 15, 64)
}

func (t Text) String() string { return string(t) }

func (b Boolean) String() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d Date) String() string {
	t := time.Time(d)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

func (e ErrorValue) String() string { return e.Code.String() }

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, row := range a.Rows {
		if i > 0 {
			sb.WriteByte(';')
		}
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(v.String())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// Width returns the number of columns in the block.
func (a *Array) Width() int {
	if len(a.Rows) == 0 {
		return 0
	}
	return len(a.Rows[0])
}

// excelEpoch is day zero of the serial date system, so that 1900-01-01 is
// serial 2 as in other spreadsheet applications.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// DateSerial converts t to fractional days since the serial epoch.
func DateSerial(t time.Time) float64 {
	return float64(t.Sub(excelEpoch)) / float64(day)
}

// SerialDate is the inverse of DateSerial, accurate to the millisecond.
func SerialDate(serial float64) time.Time {
	ms := math.Round(serial * float64(day/time.Millisecond))
	return excelEpoch.Add(time.Duration(ms) * time.Millisecond)
}

// ToNumber coerces v for arithmetic. Empty is 0, booleans are 1 and 0,
// dates are serial numbers, and text must parse as a number.
func ToNumber(v Value) (float64, error) {
	switch v := v.(type) {
	case Number:
		return float64(v), nil
	case Empty, nil:
		return 0, nil
	case Boolean:
		if v {
			return 1, nil
		}
		return 0, nil
	case Date:
		return DateSerial(time.Time(v)), nil
	case Text:
		if num, ok := parseNumber(string(v)); ok {
			return num, nil
		}
		return 0, runtimeErrorf("cannot use text %q as a number", string(v))
	case ErrorValue:
		return 0, runtimeErrorf("cannot use %s as a number", v)
	case *Array:
		return 0, runtimeErrorf("cannot use a range as a number")
	default:
		return 0, runtimeErrorf("unsupported value %T", v)
	}
}

// ToText coerces v for text functions.
func ToText(v Value) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case *Array:
		return "", runtimeErrorf("cannot use a range as text")
	default:
		return v.String(), nil
	}
}

// ToDate coerces v to a point in time. Text is parsed leniently.
func ToDate(v Value) (time.Time, error) {
	switch v := v.(type) {
	case Date:
		return time.Time(v), nil
	case Number:
		return SerialDate(float64(v)), nil
	case Text:
		t, err := dateparse.ParseIn(strings.TrimSpace(string(v)), time.UTC)
		if err != nil {
			return time.Time{}, runtimeErrorf("cannot use text %q as a date", string(v))
		}
		return t, nil
	default:
		num, err := ToNumber(v)
		if err != nil {
			return time.Time{}, err
		}
		return SerialDate(num), nil
	}
}

// Truthy coerces v for logical functions. Non-empty text is true.
func Truthy(v Value) (bool, error) {
	switch v := v.(type) {
	case Boolean:
		return bool(v), nil
	case Number:
		return v != 0, nil
	case Text:
		return v != "", nil
	case Empty, nil:
		return false, nil
	case *Array:
		return false, runtimeErrorf("cannot use a range as a condition")
	default:
		return true, nil
	}
}

// IsBlank reports whether v is empty or the empty text.
func IsBlank(v Value) bool {
	switch v := v.(type) {
	case nil, Empty:
		return true
	case Text:
		return v == ""
	default:
		return false
	}
}

// SameValue reports whether a and b are identical values, including type.
func SameValue(a, b Value) bool {
	switch a := a.(type) {
	case Date:
		bd, ok := b.(Date)
		return ok && time.Time(a).Equal(time.Time(bd))
	case *Array:
		ba, ok := b.(*Array)
		if !ok || len(a.Rows) != len(ba.Rows) {
			return false
		}
		for i := range a.Rows {
			if len(a.Rows[i]) != len(ba.Rows[i]) {
				return false
			}
			for j := range a.Rows[i] {
				if !SameValue(a.Rows[i][j], ba.Rows[i][j]) {
					return false
				}
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// compareValues orders two scalars. Values that both coerce to numbers
// compare numerically, text compares case-sensitively, and anything else
// is incomparable (ok=false).
func compareValues(left, right Value) (cmp int, ok bool) {
	if isNumericLike(left) && isNumericLike(right) {
		l, _ := ToNumber(left)
		r, _ := ToNumber(right)
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		}
		return 0, true
	}
	if isTextLike(left) && isTextLike(right) {
		return strings.Compare(left.String(), right.String()), true
	}
	return 0, false
}

func isNumericLike(v Value) bool {
	switch v := v.(type) {
	case Number, Boolean, Date, Empty, nil:
		return true
	case Text:
		_, ok := parseNumber(string(v))
		return ok
	default:
		return false
	}
}

func isTextLike(v Value) bool {
	switch v.(type) {
	case Text, Empty, nil:
		return true
	default:
		return false
	}
}

// parseNumber accepts finite decimal numbers only; "NaN" and "Inf" are text.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}
