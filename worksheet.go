package formula

import (
	"fmt"
	"iter"
	"slices"
)

// chunkKey represents the key for indexing chunks in MemorySheet
type chunkKey struct {
	chunkRow int
	chunkCol int
}

const (
	ChunkRows = 64                    // rows per chunk
	ChunkCols = 64                    // columns per chunk
	ChunkSize = ChunkRows * ChunkCols // cells per chunk
)

// chunk represents a ChunkRows x ChunkCols region of cells. the cell array
// is allocated when the first cell in the region is written.
type chunk struct {
	cells          []Cell
	occupiedBitmap []uint64 // bit-packed, one bit per cell
	nonEmptyCount  int
}

func newChunk() *chunk {
	return &chunk{
		cells:          make([]Cell, ChunkSize),
		occupiedBitmap: make([]uint64, (ChunkSize+63)/64),
	}
}

func (c *chunk) occupied(i int) bool {
	return c.occupiedBitmap[i/64]&(1<<(i%64)) != 0
}

// MemorySheet is a sparse in-memory Sheet.
//
// architecture:
// - cells are partitioned into 64x64 chunks for spatial locality
// - memory is allocated only for regions that hold at least one cell
// - bounds grow to cover the furthest cell ever written
type MemorySheet struct {
	chunks    map[chunkKey]*chunk
	rowCount  int
	colCount  int
	cellCount int
}

// NewMemorySheet creates an empty sheet.
func NewMemorySheet() *MemorySheet {
	return &MemorySheet{
		chunks: make(map[chunkKey]*chunk),
	}
}

func locate(row, col int) (chunkKey, int) {
	key := chunkKey{chunkRow: row / ChunkRows, chunkCol: col / ChunkCols}
	local := (row%ChunkRows)*ChunkCols + col%ChunkCols
	return key, local
}

// GetCell retrieves a cell at the given row and column
func (s *MemorySheet) GetCell(row, col int) (Cell, bool) {
	if row < 0 || col < 0 {
		return Cell{}, false
	}
	key, i := locate(row, col)
	c, exists := s.chunks[key]
	if !exists || !c.occupied(i) {
		return Cell{}, false
	}
	return c.cells[i], true
}

// GetCellValue returns the stored value, or nil for an absent cell
func (s *MemorySheet) GetCellValue(row, col int) Value {
	cell, ok := s.GetCell(row, col)
	if !ok {
		return nil
	}
	return cell.Value
}

// SetCell stores a value, preserving formula and format unless overridden
func (s *MemorySheet) SetCell(row, col int, value Value, opts ...CellOption) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("%w: row %d col %d", ErrInvalidAddress, row, col)
	}
	prev, _ := s.GetCell(row, col)
	return s.PutCell(row, col, ApplyCellOptions(prev, value, opts...))
}

// PutCell stores cell as is.
func (s *MemorySheet) PutCell(row, col int, cell Cell) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("%w: row %d col %d", ErrInvalidAddress, row, col)
	}
	if cell.Value == nil {
		cell.Value = Empty{}
	}
	key, i := locate(row, col)
	c, exists := s.chunks[key]
	if !exists {
		c = newChunk()
		s.chunks[key] = c
	}
	if !c.occupied(i) {
		c.occupiedBitmap[i/64] |= 1 << (i % 64)
		c.nonEmptyCount++
		s.cellCount++
	}
	c.cells[i] = cell
	s.rowCount = max(s.rowCount, row+1)
	s.colCount = max(s.colCount, col+1)
	return nil
}

// ClearCell deletes the cell's content, formula included. It reports whether
// a cell was present.
func (s *MemorySheet) ClearCell(row, col int) bool {
	if row < 0 || col < 0 {
		return false
	}
	key, i := locate(row, col)
	c, exists := s.chunks[key]
	if !exists || !c.occupied(i) {
		return false
	}
	c.occupiedBitmap[i/64] &^= 1 << (i % 64)
	c.cells[i] = Cell{}
	c.nonEmptyCount--
	s.cellCount--
	if c.nonEmptyCount == 0 {
		delete(s.chunks, key)
	}
	return true
}

// RowCount returns one past the furthest row ever written
func (s *MemorySheet) RowCount() int { return s.rowCount }

// ColCount returns one past the furthest column ever written
func (s *MemorySheet) ColCount() int { return s.colCount }

// Len returns the number of occupied cells.
func (s *MemorySheet) Len() int { return s.cellCount }

// Cells yields every occupied cell in row-major order.
func (s *MemorySheet) Cells() iter.Seq2[Address, Cell] {
	return func(yield func(Address, Cell) bool) {
		for _, a := range s.addresses(func(Cell) bool { return true }) {
			cell, _ := s.GetCell(a.Row, a.Col)
			if !yield(a, cell) {
				return
			}
		}
	}
}

// FormulaCells returns the addresses of formula-bearing cells, row-major.
func (s *MemorySheet) FormulaCells() []Address {
	return s.addresses(Cell.HasFormula)
}

func (s *MemorySheet) addresses(keep func(Cell) bool) []Address {
	var out []Address
	for key, c := range s.chunks {
		for i := range ChunkSize {
			if !c.occupied(i) || !keep(c.cells[i]) {
				continue
			}
			out = append(out, Address{
				Row: key.chunkRow*ChunkRows + i/ChunkCols,
				Col: key.chunkCol*ChunkCols + i%ChunkCols,
			})
		}
	}
	slices.SortFunc(out, func(a, b Address) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return out
}
