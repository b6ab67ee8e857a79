// Package script reads cell assignment scripts. Each line holds an address
// and the input typed into that cell:
//
//	# comments and blank lines are ignored
//	A1 10
//	A2 =A1*2
//	B1 hello world
//	A3
//
// An address on its own clears the cell.
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Assignment sets one cell.
type Assignment struct {
	Address formula.Address
	Input   string // cell editor text; empty clears the cell
	Line    int    // 1-based line in the script, 0 when not from a file
}

// ParseAssignment parses one script line. ok is false for blank and
// comment lines.
func ParseAssignment(line string) (a Assignment, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Assignment{}, false, nil
	}
	address, input, _ := strings.Cut(line, " ")
	addr, err := formula.ParseAddress(address)
	if err != nil {
		return Assignment{}, false, err
	}
	return Assignment{Address: addr, Input: strings.TrimSpace(input)}, true, nil
}

// Parse reads every assignment from r.
func Parse(r io.Reader) ([]Assignment, error) {
	var out []Assignment
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		a, ok, err := ParseAssignment(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if ok {
			a.Line = n
			out = append(out, a)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load parses the script file at path.
func Load(path string) ([]Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	as, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return as, nil
}

// Apply stores every assignment in order. Formula cells get their formula
// text and an empty pending value; literal cells drop any formula they had.
func Apply(sheet formula.Sheet, as []Assignment) error {
	for _, a := range as {
		value, text := formula.ParseCellInput(a.Input)
		if err := sheet.SetCell(a.Address.Row, a.Address.Col, value, formula.WithFormula(text)); err != nil {
			return fmt.Errorf("set %s: %w", a.Address, err)
		}
	}
	return nil
}
