package formula

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"golang.org/x/text/language"
)

type builtinCase struct {
	formula string
	want    Value // nil means a runtime failure is expected
}

func runBuiltinCases(t *testing.T, e *Engine, s Sheet, cases []builtinCase) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.formula, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), s, c.formula)
			if c.want == nil {
				if !errors.Is(err, ErrRuntime) {
					t.Errorf("%s = %v, %v; want runtime failure", c.formula, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s failed: %v", c.formula, err)
			}
			if wn, ok := c.want.(Number); ok {
				if gn, ok := got.(Number); ok && math.Abs(float64(gn-wn)) < 1e-9 {
					return
				}
			}
			if !SameValue(got, c.want) {
				t.Errorf("%s = %v (%s), want %v (%s)", c.formula, got, got.Type(), c.want, c.want.Type())
			}
		})
	}
}

func lookupSheet(t *testing.T) *MemorySheet {
	t.Helper()
	s := NewMemorySheet()
	rows := [][]Value{
		{Text("apple"), Number(1), Boolean(true)},
		{Text("banana"), Number(2), Text("x")},
		{Text("cherry"), Number(3), ErrorValue{Code: ErrorCodeDiv0}},
		{Number(10), Number(4), Empty{}},
	}
	for r, row := range rows {
		for c, v := range row {
			if err := s.SetCell(r, c, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	return s
}

var (
	divZero  = ErrorValue{Code: ErrorCodeDiv0}
	notFound = ErrorValue{Code: ErrorCodeNA}
)

func TestAggregateFunctions(t *testing.T) {
	runBuiltinCases(t, NewEngine(), lookupSheet(t), []builtinCase{
		{`=SUM(1,2,"x")`, Number(3)},
		{"=SUM(A1:C4)", Number(20)},
		{"=SUM(B1:B4,10)", Number(20)},
		{"=SUM()", Number(0)},
		{"=SUM(0.1,0.2)", Number(0.3)},
		{"=AVERAGE(B1:B4)", Number(2.5)},
		{"=AVERAGE(A1:A3)", divZero},
		{"=AVERAGE()", divZero},
		{"=MAX(B1:B4,-1)", Number(4)},
		{"=MIN(B1:B4,-1)", Number(-1)},
		{"=MAX(A1:A3)", Number(0)},
		{"=MIN()", Number(0)},
		{"=COUNT(A1:C4)", Number(5)},
		{"=COUNTA(A1:C4)", Number(11)},
		{`=COUNTA("",1)`, Number(1)},
	})
}

func TestMathFunctions(t *testing.T) {
	runBuiltinCases(t, NewEngine(), NewMemorySheet(), []builtinCase{
		{"=ROUND(1.25,1)", Number(1.3)},
		{"=ROUND(1234.5,-2)", Number(1200)},
		{"=ROUND(-2.5,0)", Number(-3)},
		{`=ROUND("x",1)`, nil},
		{"=ROUND(1.5,400)", Number(1.5)},
		{"=ROUND(1.25,308)", Number(1.25)},
		{"=ROUND(POWER(10,300),20)=POWER(10,300)", Boolean(true)},
		{"=ROUND(123,-400)", Number(0)},
		{"=ROUND(-2.5,POWER(10,20))", Number(-2.5)},
		{"=ABS(-3)", Number(3)},
		{"=SQRT(16)", Number(4)},
		{"=SQRT(-1)", nil},
		{"=POWER(2,10)", Number(1024)},
		{"=POWER(-8,0.5)", nil},
		{"=MOD(7,3)", Number(1)},
		{"=MOD(-7,3)", Number(2)},
		{"=-7%3", Number(-1)},
		{"=MOD(1,0)", divZero},
		{"=ABS(1/0)", divZero},
		{"=PI()", Number(math.Pi)},
	})
}

func TestLogicalFunctions(t *testing.T) {
	runBuiltinCases(t, NewEngine(), lookupSheet(t), []builtinCase{
		{`=IF(1>0,"yes","no")`, Text("yes")},
		{`=IF(0,"yes","no")`, Text("no")},
		{`=IF("","yes","no")`, Text("no")},
		{`=IF(1/0,"yes","no")`, divZero},
		{`=IF(A1:A2,1,2)`, nil},
		{"=AND(TRUE(),1,\"x\")", Boolean(true)},
		{"=AND(TRUE(),0)", Boolean(false)},
		{"=AND()", Boolean(true)},
		{"=OR(FALSE(),0)", Boolean(false)},
		{"=OR(B1:B2)", Boolean(true)},
		{"=OR()", Boolean(false)},
		{"=AND(C1:C3)", divZero},
		{"=NOT(TRUE())", Boolean(false)},
		{"=NOT(D9)", Boolean(true)},
		{"=TRUE()=FALSE()", Boolean(false)},
	})
}

func TestInformationFunctions(t *testing.T) {
	runBuiltinCases(t, NewEngine(), lookupSheet(t), []builtinCase{
		{"=ISNUMBER(B1)", Boolean(true)},
		{"=ISNUMBER(A1)", Boolean(false)},
		{`=ISNUMBER("1")`, Boolean(false)},
		{"=ISTEXT(A1)", Boolean(true)},
		{"=ISTEXT(B1)", Boolean(false)},
		{"=ISBLANK(C4)", Boolean(true)},
		{"=ISBLANK(Z99)", Boolean(true)},
		{`=ISBLANK("")`, Boolean(true)},
		{"=ISBLANK(C3)", Boolean(false)},
		{"=ISNUMBER(1/0)", Boolean(false)},
	})
}

func TestVLOOKUP(t *testing.T) {
	runBuiltinCases(t, NewEngine(), lookupSheet(t), []builtinCase{
		{`=VLOOKUP("banana",A1:C4,2,TRUE())`, Number(2)},
		{`=VLOOKUP("banana",A1:C4,3,TRUE())`, Text("x")},
		{`=VLOOKUP("Banana",A1:C4,2,TRUE())`, notFound},
		{`=VLOOKUP(10,A1:C4,2,TRUE())`, Number(4)},
		{`=VLOOKUP("10",A1:C4,2,1)`, Number(4)},
		{`=VLOOKUP("zzz",A1:C4,2,TRUE())`, notFound},
		// approximate mode matches on text containment, first row wins
		{`=VLOOKUP("an",A1:C4,2,FALSE())`, Number(2)},
		{`=VLOOKUP("e",A1:C4,2,FALSE())`, Number(1)},
		{`=VLOOKUP(1,A1:C4,2,FALSE())`, Number(4)},
		{`=VLOOKUP("q",A1:C4,2,FALSE())`, notFound},
		{`=VLOOKUP("apple",A1:C4,4,TRUE())`, nil},
		{`=VLOOKUP("apple",A1:C4,0,TRUE())`, nil},
		{`=VLOOKUP("apple",A1,2,TRUE())`, nil},
		{`=VLOOKUP(1/0,A1:C4,2,TRUE())`, divZero},
	})
}

func TestTextFunctions(t *testing.T) {
	runBuiltinCases(t, NewEngine(), lookupSheet(t), []builtinCase{
		{`=CONCATENATE("a",1,TRUE())`, Text("a1TRUE")},
		{`=CONCATENATE(A1:A2,"!")`, Text("applebanana!")},
		{`=CONCATENATE("a",C3)`, divZero},
		{`=CONCATENATE()`, Text("")},
		{`=UPPER("straße")`, Text("STRASSE")},
		{`=LOWER("ÀB")`, Text("àb")},
		{`=TRIM("  a   b  ")`, Text("a b")},
		{`=LEN("héllo")`, Number(5)},
		{`=LEN(B2)`, Number(1)},
		{`=LEN(A1:A2)`, nil},
		{`=TEXT(1234.567,"0.00")`, Text("1234.57")},
		{`=TEXT(1234.567,"#,##0.00")`, Text("1,234.57")},
		{`=TEXT(0.256,"0.0%")`, Text("25.6%")},
		{`=TEXT(0.5,"0%")`, Text("50%")},
		{`=TEXT(3.7,"0")`, Text("4")},
		{`=TEXT("abc","@")`, Text("abc")},
		{`=TEXT("abc","0.00")`, nil},
		{`=TEXT(45356,"yyyy-mm-dd")`, Text("2024-03-05")},
		{`=TEXT(45356,"dddd, mmmm d")`, Text("Tuesday, March 5")},
		{`=TEXT(45356,"ddd dd mmm yy")`, Text("Tue 05 Mar 24")},
		{`=TEXT(DATEVALUE("2024-03-05 14:07:09"),"hh:mm:ss")`, Text("14:07:09")},
		{`=TEXT(DATEVALUE("2024-03-05 14:07:09"),"m/d hh:mm")`, Text("3/5 14:07")},
		{`=TEXT(45356,"Hello")`, Text("45356")},
		{`=TEXT("abc","Hello")`, Text("abc")},
		{`=TEXT(45356,"yyyy 1")`, Text("45356")},
		{`=TEXT(45356,"DD.MM.YYYY")`, Text("05.03.2024")},
	})
}

func TestDateValue(t *testing.T) {
	date := func(y int, m time.Month, d int) Value { return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) }
	runBuiltinCases(t, NewEngine(), NewMemorySheet(), []builtinCase{
		{`=DATEVALUE("2024-03-05")`, date(2024, time.March, 5)},
		{`=DATEVALUE("03/05/2024")`, date(2024, time.March, 5)},
		{`=DATEVALUE("March 5, 2024")`, date(2024, time.March, 5)},
		{`=DATEVALUE("not a date")`, nil},
		{`=DATEVALUE("2024-03-05")+1`, Number(45357)},
		{`=DATEVALUE("2024-03-05")<DATEVALUE("2024-03-06")`, Boolean(true)},
	})
}

func TestLocaleAwareFunctions(t *testing.T) {
	date := Date(time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC))
	british := NewEngine(WithRegistry(NewDefaultRegistry(WithLocale(language.BritishEnglish))))
	runBuiltinCases(t, british, NewMemorySheet(), []builtinCase{
		{`=DATEVALUE("03/05/2024")`, date},
	})

	german := NewEngine(WithRegistry(NewDefaultRegistry(WithLocale(language.German))))
	runBuiltinCases(t, german, NewMemorySheet(), []builtinCase{
		{`=TEXT(1234.5,"#,##0.00")`, Text("1.234,50")},
		{`=TEXT(45356,"dddd, d. mmmm")`, Text("Dienstag, 5. März")},
	})

	turkish := NewEngine(WithRegistry(NewDefaultRegistry(WithLocale(language.Turkish))))
	runBuiltinCases(t, turkish, NewMemorySheet(), []builtinCase{
		{`=UPPER("i")`, Text("İ")},
	})
}

func TestIsDatePattern(t *testing.T) {
	for pattern, want := range map[string]bool{
		"yyyy-mm-dd":   true,
		"dddd, mmmm d": true,
		"hh:mm:ss":     true,
		"DD.MM.YY":     true,
		"Hello":        false,
		"mm Jan":       false,
		"yyyy 1":       false,
		"":             false,
		" - ":          false,
	} {
		if got := isDatePattern(pattern); got != want {
			t.Errorf("isDatePattern(%q) = %v, want %v", pattern, got, want)
		}
	}
}

func TestDateLayout(t *testing.T) {
	cases := map[string]string{
		"yyyy-mm-dd":       "2006-01-02",
		"dd/mm/yy":         "02/01/06",
		"mmmm yyyy":        "January 2006",
		"hh:mm":            "15:04",
		"mm:ss":            "04:05",
		"hh:mm:ss":         "15:04:05",
		"m/d/yyyy hh:mm":   "1/2/2006 15:04",
		"dddd, mmm d":      "Monday, Jan 2",
		"YYYY-MM-DD":       "2006-01-02",
		"yyyy-mm-dd hh:mm": "2006-01-02 15:04",
	}
	for pattern, want := range cases {
		if got := dateLayout(pattern); got != want {
			t.Errorf("dateLayout(%q) = %q, want %q", pattern, got, want)
		}
	}
}
