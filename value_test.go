package formula

import (
	"errors"
	"testing"
	"time"
)

func TestValueString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Number(3), "3"},
		{Number(0.1 + 0.2), "0.3"},
		{Number(-2.5), "-2.5"},
		{Number(1e20), "1e+20"},
		{Text("hi"), "hi"},
		{Boolean(true), "TRUE"},
		{Boolean(false), "FALSE"},
		{Empty{}, ""},
		{Date(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)), "2024-03-05"},
		{Date(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)), "2024-03-05 14:07:09"},
		{ErrorValue{Code: ErrorCodeDiv0}, "#DIV/0!"},
		{ErrorValue{Code: ErrorCodeOther}, "#ERROR!"},
		{ErrorValue{Code: ErrorCodeNA}, "#N/D"},
		{&Array{Rows: [][]Value{{Number(1), Number(2)}, {Text("a"), Empty{}}}}, "{1,2;a,}"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("%T(%v).String() = %q, want %q", c.v, c.v, got, c.want)
		}
	}
}

func TestErrorValueRoundTrip(t *testing.T) {
	for _, code := range []ErrorCode{ErrorCodeDiv0, ErrorCodeOther, ErrorCodeNA} {
		ev := ErrorValue{Code: code}
		back, ok := ParseErrorValue(ev.String())
		if !ok || back != ev {
			t.Errorf("ParseErrorValue(%q) = %v, %v", ev.String(), back, ok)
		}
	}
	if _, ok := ParseErrorValue("#NOPE"); ok {
		t.Error("unknown marker parsed")
	}
	if got := ErrorCode(99).String(); got != "#ERROR!" {
		t.Errorf("unknown code renders as %q", got)
	}
}

func TestDateSerial(t *testing.T) {
	if got := DateSerial(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)); got != 2 {
		t.Errorf("serial of 1900-01-01 = %v, want 2", got)
	}
	march5 := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if got := DateSerial(march5); got != 45356 {
		t.Errorf("serial of 2024-03-05 = %v, want 45356", got)
	}
	noon := SerialDate(45356.5)
	if !noon.Equal(march5.Add(12 * time.Hour)) {
		t.Errorf("SerialDate(45356.5) = %v", noon)
	}
}

func TestToNumber(t *testing.T) {
	cases := []struct {
		v    Value
		want float64
	}{
		{Number(4), 4},
		{Empty{}, 0},
		{nil, 0},
		{Boolean(true), 1},
		{Boolean(false), 0},
		{Text(" 42 "), 42},
		{Text("1e3"), 1000},
		{Date(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)), 2},
	}
	for _, c := range cases {
		got, err := ToNumber(c.v)
		if err != nil || got != c.want {
			t.Errorf("ToNumber(%v) = %v, %v; want %v", c.v, got, err, c.want)
		}
	}

	for _, v := range []Value{Text("abc"), Text("NaN"), Text("Inf"), Text(""), ErrorValue{Code: ErrorCodeNA}, &Array{}} {
		if _, err := ToNumber(v); !errors.Is(err, ErrRuntime) {
			t.Errorf("ToNumber(%v) err = %v, want runtime failure", v, err)
		}
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Boolean(true), true},
		{Number(0), false},
		{Number(-1), true},
		{Text(""), false},
		{Text("FALSE"), true},
		{Empty{}, false},
	}
	for _, c := range cases {
		got, err := Truthy(c.v)
		if err != nil || got != c.want {
			t.Errorf("Truthy(%v) = %v, %v; want %v", c.v, got, err, c.want)
		}
	}
	if _, err := Truthy(&Array{}); !errors.Is(err, ErrRuntime) {
		t.Errorf("Truthy(range) err = %v", err)
	}
}

func TestCompareValues(t *testing.T) {
	cases := []struct {
		left, right Value
		cmp         int
		ok          bool
	}{
		{Number(2), Number(10), -1, true},
		{Number(2), Text("10"), -1, true},
		{Boolean(true), Number(1), 0, true},
		{Empty{}, Number(0), 0, true},
		{Empty{}, Text(""), 0, true},
		{Text("b"), Text("a"), 1, true},
		{Text("a"), Text("B"), 1, true},
		{Text("abc"), Text("abc"), 0, true},
		{Boolean(true), Text("x"), 0, false},
		{ErrorValue{Code: ErrorCodeNA}, Number(1), 0, false},
	}
	for _, c := range cases {
		cmp, ok := compareValues(c.left, c.right)
		if cmp != c.cmp || ok != c.ok {
			t.Errorf("compareValues(%v, %v) = %d, %v; want %d, %v", c.left, c.right, cmp, ok, c.cmp, c.ok)
		}
	}
}

func TestSameValue(t *testing.T) {
	if SameValue(Number(1), Boolean(true)) {
		t.Error("values of different types are not the same")
	}
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !SameValue(Date(d), Date(d.In(time.FixedZone("X", 3600)))) {
		t.Error("equal instants should be the same date")
	}
	a := &Array{Rows: [][]Value{{Number(1)}}}
	b := &Array{Rows: [][]Value{{Number(1)}}}
	if !SameValue(a, b) || SameValue(a, &Array{}) {
		t.Error("arrays compare element-wise")
	}
}

func TestCellTypeString(t *testing.T) {
	if CellValueTypeString.String() != "text" || CellType(42).String() != "unknown" {
		t.Error("unexpected cell type names")
	}
}
