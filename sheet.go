package formula

// Sheet is the cell storage the engine reads and writes. It is owned by the
// embedding application; the engine assumes nothing else mutates it during
// a recalculation pass.
type Sheet interface {
	// GetCell returns the cell at (row, col) and whether it exists.
	GetCell(row, col int) (Cell, bool)
	// GetCellValue returns the stored value at (row, col), or nil when the
	// cell does not exist.
	GetCellValue(row, col int) Value
	// SetCell stores value at (row, col). Formula and format are left as
	// they were unless given; the type tag follows the value unless given.
	SetCell(row, col int, value Value, opts ...CellOption) error
	// RowCount and ColCount bound full-sheet scans.
	RowCount() int
	ColCount() int
}

// FormulaLister is implemented by sheets that can enumerate their formula
// cells without a full rectangular scan. Cells must be yielded row-major.
type FormulaLister interface {
	FormulaCells() []Address
}

// CellOption adjusts the metadata written by Sheet.SetCell.
type CellOption func(*cellUpdate)

type cellUpdate struct {
	formula *string
	typ     *CellType
	format  *string
}

// WithFormula replaces the cell's formula text. An empty string turns the
// cell into a literal cell.
func WithFormula(formula string) CellOption {
	return func(u *cellUpdate) { u.formula = &formula }
}

// WithType overrides the type tag derived from the value.
func WithType(t CellType) CellOption {
	return func(u *cellUpdate) { u.typ = &t }
}

// WithFormat replaces the cell's display format.
func WithFormat(format string) CellOption {
	return func(u *cellUpdate) { u.format = &format }
}

// ApplyCellOptions computes the cell that SetCell should store given the
// previous cell (zero if absent). Sheet implementations share it so the
// preservation rules stay identical across storage backends.
func ApplyCellOptions(prev Cell, value Value, opts ...CellOption) Cell {
	var u cellUpdate
	for _, opt := range opts {
		opt(&u)
	}
	if value == nil {
		value = Empty{}
	}
	next := Cell{
		Value:   value,
		Formula: prev.Formula,
		Type:    value.Type(),
		Format:  prev.Format,
	}
	if u.formula != nil {
		next.Formula = *u.formula
	}
	if u.typ != nil {
		next.Type = *u.typ
	}
	if u.format != nil {
		next.Format = *u.format
	}
	return next
}

// ParseCellInput interprets text typed into a cell editor. Text starting
// with '=' is a formula whose value is pending; otherwise the text becomes a
// literal number, boolean, error marker or text.
func ParseCellInput(text string) (value Value, formula string) {
	switch {
	case text == "":
		return Empty{}, ""
	case text[0] == '=':
		return Empty{}, text
	}
	if num, ok := parseNumber(text); ok {
		return Number(num), ""
	}
	switch text {
	case "TRUE", "true", "True":
		return Boolean(true), ""
	case "FALSE", "false", "False":
		return Boolean(false), ""
	}
	if ev, ok := ParseErrorValue(text); ok {
		return ev, ""
	}
	return Text(text), ""
}
