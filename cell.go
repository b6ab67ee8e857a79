package formula

// ErrorCode represents the error markers a cell can display. These three
// are the whole vocabulary and must round-trip through storage unchanged.
type ErrorCode uint8

const (
	ErrorCodeDiv0  ErrorCode = 1 // #DIV/0! - division by zero
	ErrorCodeOther ErrorCode = 2 // #ERROR! - any other evaluation failure
	ErrorCodeNA    ErrorCode = 3 // #N/D - lookup miss
)

// ErrorMapper maps error codes to their display text
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeOther: "#ERROR!",
	ErrorCodeNA:    "#N/D",
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return ErrorMapper[ErrorCodeOther]
}

// ParseErrorValue is the inverse of ErrorValue.String.
func ParseErrorValue(s string) (ErrorValue, bool) {
	for code, text := range ErrorMapper {
		if text == s {
			return ErrorValue{Code: code}, true
		}
	}
	return ErrorValue{}, false
}

// CellType represents numeric constants for cell value types (external API)
type CellType uint8

const (
	CellValueTypeEmpty   CellType = 0
	CellValueTypeNumber  CellType = 1
	CellValueTypeString  CellType = 2
	CellValueTypeDate    CellType = 3
	CellValueTypeBoolean CellType = 4
	CellValueTypeError   CellType = 5
	CellValueTypeArray   CellType = 6 // produced by range references, never stored
)

var cellTypeNames = [...]string{
	CellValueTypeEmpty:   "empty",
	CellValueTypeNumber:  "number",
	CellValueTypeString:  "text",
	CellValueTypeDate:    "date",
	CellValueTypeBoolean: "boolean",
	CellValueTypeError:   "error",
	CellValueTypeArray:   "array",
}

func (t CellType) String() string {
	if int(t) < len(cellTypeNames) {
		return cellTypeNames[t]
	}
	return "unknown"
}

// Cell represents a spreadsheet cell with its data and metadata. A cell
// without a formula holds only a literal value.
type Cell struct {
	Value   Value    // literal value, or the last computed result of Formula
	Formula string   // original formula text as typed, including the leading '='
	Type    CellType // type tag, normally Value.Type()
	Format  string   // display format, opaque to the engine
}

// HasFormula reports whether the cell is formula-bearing.
func (c Cell) HasFormula() bool {
	return c.Formula != ""
}
