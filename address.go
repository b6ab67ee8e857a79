package formula

import (
	"fmt"
	"strconv"
)

// Grid bounds. Addresses outside them do not parse.
const (
	MaxRows = 1 << 20 // rows 1 to 1048576
	MaxCols = 1 << 14 // columns A to XFD
)

// maxColumnLetters is the width of the last column name, XFD.
const maxColumnLetters = 3

// Address is a zero-based (row, column) cell coordinate. Its text form is
// the column in bijective base 26 (A=1 ... Z=26, AA=27) followed by the
// 1-based row, e.g. Address{Row: 11, Col: 1} is "B12".
type Address struct {
	Row int
	Col int
}

func (a Address) String() string {
	return ColumnName(a.Col) + strconv.Itoa(a.Row+1)
}

// Less orders addresses row-major.
func (a Address) Less(b Address) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

// ColumnName converts a zero-based column index to letters.
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// ColumnIndex converts uppercase column letters to a zero-based index.
func ColumnIndex(letters string) (int, error) {
	if letters == "" || len(letters) > maxColumnLetters {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, letters)
	}
	col := 0
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, letters)
		}
		col = col*26 + int(ch-'A') + 1
	}
	if col > MaxCols {
		return 0, fmt.Errorf("%w: column %q past XFD", ErrInvalidAddress, letters)
	}
	return col - 1, nil
}

// ParseAddress parses text of the form [A-Z]+[0-9]+.
func ParseAddress(s string) (Address, error) {
	letterEnd := 0
	for letterEnd < len(s) && s[letterEnd] >= 'A' && s[letterEnd] <= 'Z' {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	col, err := ColumnIndex(s[:letterEnd])
	if err != nil {
		return Address{}, err
	}

	digits := s[letterEnd:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 || row > MaxRows {
		return Address{}, fmt.Errorf("%w: row in %q", ErrInvalidAddress, s)
	}
	return Address{Row: row - 1, Col: col}, nil
}

// MustParseAddress is like ParseAddress but panics on malformed input. It
// is meant for constant addresses in tests and examples.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}
