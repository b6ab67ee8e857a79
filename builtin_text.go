package formula

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CONCATENATE joins every argument as text, expanding ranges
func (bf *BuiltInFunctions) CONCATENATE(_ context.Context, args []Value) (Value, error) {
	var result strings.Builder
	for v := range flatten(args) {
		if e, ok := v.(ErrorValue); ok {
			return e, nil
		}
		result.WriteString(v.String())
	}
	return Text(result.String()), nil
}

func (bf *BuiltInFunctions) LEN(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	s, err := ToText(args[0])
	if err != nil {
		return nil, err
	}
	return Number(utf8.RuneCountInString(s)), nil
}

func (bf *BuiltInFunctions) UPPER(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	s, err := ToText(args[0])
	if err != nil {
		return nil, err
	}
	return Text(cases.Upper(bf.locale).String(s)), nil
}

func (bf *BuiltInFunctions) LOWER(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	s, err := ToText(args[0])
	if err != nil {
		return nil, err
	}
	return Text(cases.Lower(bf.locale).String(s)), nil
}

// TRIM removes leading and trailing whitespace and collapses inner runs to
// one space
func (bf *BuiltInFunctions) TRIM(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	s, err := ToText(args[0])
	if err != nil {
		return nil, err
	}
	return Text(strings.Join(strings.Fields(s), " ")), nil
}

// DATEVALUE parses text in any common layout. Ambiguous numeric dates are
// read month first when the locale's region is the United States.
func (bf *BuiltInFunctions) DATEVALUE(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	if d, ok := args[0].(Date); ok {
		return d, nil
	}
	s, err := ToText(args[0])
	if err != nil {
		return nil, err
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC, dateparse.PreferMonthFirst(bf.monthFirst()))
	if err != nil {
		return nil, runtimeErrorf("cannot parse %q as a date", s)
	}
	return Date(t), nil
}

func (bf *BuiltInFunctions) monthFirst() bool {
	region, _ := bf.locale.Region()
	return region.String() == "US"
}

// TEXT formats a value with a display pattern. Patterns made only of
// 0 # , . % format numbers; patterns made only of the date letters and
// separators format dates; anything else yields the value's text unchanged.
func (bf *BuiltInFunctions) TEXT(_ context.Context, args []Value) (Value, error) {
	if e, ok := checkForError(args...); ok {
		return e, nil
	}
	pattern, err := ToText(args[1])
	if err != nil {
		return nil, err
	}

	switch {
	case isNumberPattern(pattern):
		num, err := ToNumber(args[0])
		if err != nil {
			return nil, err
		}
		return Text(bf.formatNumber(num, pattern)), nil
	case isDatePattern(pattern):
		t, err := ToDate(args[0])
		if err != nil {
			return nil, err
		}
		return Text(monday.Format(t, dateLayout(pattern), bf.mondayLocale())), nil
	default:
		s, err := ToText(args[0])
		if err != nil {
			return nil, err
		}
		return Text(s), nil
	}
}

func isNumberPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, ch := range pattern {
		if !strings.ContainsRune("0#,.%", ch) {
			return false
		}
	}
	return true
}

// isDatePattern accepts the date letters y m d h s in either case, joined
// by spaces and the separators , . / - :
func isDatePattern(pattern string) bool {
	letters := 0
	for _, ch := range pattern {
		switch {
		case strings.ContainsRune("ymdhs", unicode.ToLower(ch)):
			letters++
		case strings.ContainsRune(" ,./-:", ch):
		default:
			return false
		}
	}
	return letters > 0
}

// formatNumber renders num with as many decimals as the pattern has after
// its point, grouped when the pattern contains a comma.
func (bf *BuiltInFunctions) formatNumber(num float64, pattern string) string {
	percent := strings.HasSuffix(pattern, "%")
	body := strings.TrimRight(pattern, "%")

	decimals := 0
	if _, frac, ok := strings.Cut(body, "."); ok {
		decimals = len(frac)
	}
	opts := []number.Option{
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals),
	}
	if !strings.Contains(body, ",") {
		opts = append(opts, number.NoSeparator())
	}

	p := message.NewPrinter(bf.locale)
	if percent {
		return p.Sprintf("%v", number.Percent(num, opts...))
	}
	return p.Sprintf("%v", number.Decimal(num, opts...))
}

// dateLayout converts a spreadsheet date pattern to a Go time layout.
// mm and m mean minutes right after an hour token or right before a
// seconds token, months otherwise.
func dateLayout(pattern string) string {
	runes := []rune(pattern)
	var sb strings.Builder
	afterHour := false

	for i := 0; i < len(runes); {
		ch := unicode.ToLower(runes[i])
		n := 1
		for i+n < len(runes) && unicode.ToLower(runes[i+n]) == ch {
			n++
		}

		switch ch {
		case 'y':
			if n >= 3 {
				sb.WriteString("2006")
			} else {
				sb.WriteString("06")
			}
			afterHour = false
		case 'm':
			if n <= 2 && (afterHour || secondsFollow(runes[i+n:])) {
				sb.WriteString(pick(n, "4", "04"))
			} else {
				switch n {
				case 1:
					sb.WriteString("1")
				case 2:
					sb.WriteString("01")
				case 3:
					sb.WriteString("Jan")
				default:
					sb.WriteString("January")
				}
			}
			afterHour = false
		case 'd':
			switch n {
			case 1:
				sb.WriteString("2")
			case 2:
				sb.WriteString("02")
			case 3:
				sb.WriteString("Mon")
			default:
				sb.WriteString("Monday")
			}
			afterHour = false
		case 'h':
			sb.WriteString("15")
			afterHour = true
		case 's':
			sb.WriteString(pick(n, "5", "05"))
			afterHour = false
		default:
			sb.WriteString(string(runes[i : i+n]))
			if ch != ':' {
				afterHour = false
			}
		}
		i += n
	}
	return sb.String()
}

// secondsFollow reports whether rest starts with a seconds token, ignoring
// separating colons.
func secondsFollow(rest []rune) bool {
	for _, ch := range rest {
		switch unicode.ToLower(ch) {
		case ':':
			continue
		case 's':
			return true
		default:
			return false
		}
	}
	return false
}

func pick(n int, short, long string) string {
	if n == 1 {
		return short
	}
	return long
}

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"ja":    monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW,
	"ko":    monday.LocaleKoKR,
}

// mondayLocale picks the month and weekday names for the locale, falling
// back from language_region to language to American English.
func (bf *BuiltInFunctions) mondayLocale() monday.Locale {
	base, _ := bf.locale.Base()
	region, _ := bf.locale.Region()
	key := strings.ToLower(base.String())
	if loc, ok := mondayLocales[key+"_"+strings.ToLower(region.String())]; ok {
		return loc
	}
	if loc, ok := mondayLocales[key]; ok {
		return loc
	}
	return monday.LocaleEnUS
}
