package formula

import (
	"fmt"
	"iter"
	"strings"
)

// MaxRangeCells bounds the block a range may cover. Ranges are expanded
// cell by cell, so a larger block does not parse.
const MaxRangeCells = 1 << 20

// Range is a rectangular block of cells. Start and End keep the corners as
// written; use Normalize before iterating.
type Range struct {
	Start Address
	End   Address
}

// ParseRange parses text of the form ADDRESS1:ADDRESS2.
func ParseRange(s string) (Range, error) {
	start, end, ok := strings.Cut(s, ":")
	if !ok || strings.Contains(end, ":") {
		return Range{}, fmt.Errorf("%w: range %q", ErrInvalidAddress, s)
	}
	a, err := ParseAddress(start)
	if err != nil {
		return Range{}, err
	}
	b, err := ParseAddress(end)
	if err != nil {
		return Range{}, err
	}
	r := Range{Start: a, End: b}
	if r.Size() > MaxRangeCells {
		return Range{}, fmt.Errorf("%w: range %q covers more than %d cells", ErrInvalidAddress, s, MaxRangeCells)
	}
	return r, nil
}

func (r Range) String() string {
	return r.Start.String() + ":" + r.End.String()
}

// Normalize returns the same block with Start as its top-left corner.
func (r Range) Normalize() Range {
	return Range{
		Start: Address{Row: min(r.Start.Row, r.End.Row), Col: min(r.Start.Col, r.End.Col)},
		End:   Address{Row: max(r.Start.Row, r.End.Row), Col: max(r.Start.Col, r.End.Col)},
	}
}

// Rows returns the height of the block.
func (r Range) Rows() int {
	n := r.Normalize()
	return n.End.Row - n.Start.Row + 1
}

// Cols returns the width of the block.
func (r Range) Cols() int {
	n := r.Normalize()
	return n.End.Col - n.Start.Col + 1
}

// Size returns the number of cells in the block.
func (r Range) Size() int64 {
	return int64(r.Rows()) * int64(r.Cols())
}

// Contains reports whether a lies inside the block.
func (r Range) Contains(a Address) bool {
	n := r.Normalize()
	return a.Row >= n.Start.Row && a.Row <= n.End.Row &&
		a.Col >= n.Start.Col && a.Col <= n.End.Col
}

// Iterate yields every address in the block in row-major order: the top
// row left to right, then the next row.
func (r Range) Iterate() iter.Seq[Address] {
	n := r.Normalize()
	return func(yield func(Address) bool) {
		for row := n.Start.Row; row <= n.End.Row; row++ {
			for col := n.Start.Col; col <= n.End.Col; col++ {
				if !yield(Address{Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

// Addresses collects Iterate into a slice.
func (r Range) Addresses() []Address {
	out := make([]Address, 0, min(r.Size(), MaxRangeCells))
	for a := range r.Iterate() {
		out = append(out, a)
	}
	return out
}

// Values reads the block from s as an Array.
func (r Range) Values(s Sheet) *Array {
	n := r.Normalize()
	rows := make([][]Value, 0, n.Rows())
	for row := n.Start.Row; row <= n.End.Row; row++ {
		line := make([]Value, 0, n.Cols())
		for col := n.Start.Col; col <= n.End.Col; col++ {
			line = append(line, valueAt(s, Address{Row: row, Col: col}))
		}
		rows = append(rows, line)
	}
	return &Array{Rows: rows}
}

func valueAt(s Sheet, a Address) Value {
	if v := s.GetCellValue(a.Row, a.Col); v != nil {
		return v
	}
	return Empty{}
}
