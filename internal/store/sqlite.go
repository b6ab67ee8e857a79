// Package store persists sheets in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

const schema = `
CREATE TABLE IF NOT EXISTS cells (
	sheet   TEXT    NOT NULL,
	row_idx INTEGER NOT NULL,
	col_idx INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	value   TEXT    NOT NULL,
	formula TEXT    NOT NULL DEFAULT '',
	type    INTEGER NOT NULL,
	format  TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (sheet, row_idx, col_idx)
)`

const upsertCell = `
INSERT INTO cells (sheet, row_idx, col_idx, kind, value, formula, type, format)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (sheet, row_idx, col_idx) DO UPDATE SET
	kind = excluded.kind,
	value = excluded.value,
	formula = excluded.formula,
	type = excluded.type,
	format = excluded.format`

// SQLiteSheet is a formula.Sheet kept in memory and written through to a
// SQLite table. Reads never touch the database.
type SQLiteSheet struct {
	*formula.MemorySheet

	db   *sql.DB
	name string
}

// Open loads the sheet called name from the database at path, creating
// the database and its schema when missing. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path, name string) (*SQLiteSheet, error) {
	connStr := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive between calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteSheet{
		MemorySheet: formula.NewMemorySheet(),
		db:          db,
		name:        name,
	}
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSheet) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, col_idx, kind, value, formula, type, format
		   FROM cells WHERE sheet = ? ORDER BY row_idx, col_idx`, s.name)
	if err != nil {
		return fmt.Errorf("failed to load sheet %q: %w", s.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row, col   int
			kind, text string
			cell       formula.Cell
			storedType int
		)
		if err := rows.Scan(&row, &col, &kind, &text, &cell.Formula, &storedType, &cell.Format); err != nil {
			return fmt.Errorf("failed to scan cell: %w", err)
		}
		value, err := decodeValue(kind, text)
		if err != nil {
			return fmt.Errorf("cell %s: %w", formula.Address{Row: row, Col: col}, err)
		}
		cell.Value = value
		cell.Type = formula.CellType(storedType)
		if err := s.MemorySheet.PutCell(row, col, cell); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Name returns the sheet name inside the database.
func (s *SQLiteSheet) Name() string { return s.name }

// SetCell writes the cell to the database, then to memory. A failed write
// leaves both unchanged.
func (s *SQLiteSheet) SetCell(row, col int, value formula.Value, opts ...formula.CellOption) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("%w: row %d col %d", formula.ErrInvalidAddress, row, col)
	}
	prev, _ := s.GetCell(row, col)
	next := formula.ApplyCellOptions(prev, value, opts...)

	kind, text, err := encodeValue(next.Value)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(upsertCell, s.name, row, col, kind, text, next.Formula, int(next.Type), next.Format); err != nil {
		return fmt.Errorf("failed to store cell: %w", err)
	}
	return s.MemorySheet.PutCell(row, col, next)
}

// ClearCell deletes the cell from the database and from memory.
func (s *SQLiteSheet) ClearCell(row, col int) error {
	if _, err := s.db.Exec(`DELETE FROM cells WHERE sheet = ? AND row_idx = ? AND col_idx = ?`, s.name, row, col); err != nil {
		return fmt.Errorf("failed to clear cell: %w", err)
	}
	s.MemorySheet.ClearCell(row, col)
	return nil
}

// Close closes the database.
func (s *SQLiteSheet) Close() error {
	return s.db.Close()
}

func encodeValue(v formula.Value) (kind, text string, err error) {
	switch v := v.(type) {
	case nil, formula.Empty:
		return "empty", "", nil
	case formula.Number:
		return "number", strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case formula.Text:
		return "text", string(v), nil
	case formula.Boolean:
		return "boolean", v.String(), nil
	case formula.Date:
		return "date", time.Time(v).Format(time.RFC3339Nano), nil
	case formula.ErrorValue:
		return "error", v.String(), nil
	default:
		return "", "", fmt.Errorf("cannot store %s value", v.Type())
	}
}

func decodeValue(kind, text string) (formula.Value, error) {
	switch kind {
	case "empty":
		return formula.Empty{}, nil
	case "number":
		num, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", text, err)
		}
		return formula.Number(num), nil
	case "text":
		return formula.Text(text), nil
	case "boolean":
		return formula.Boolean(text == "TRUE"), nil
	case "date":
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", text, err)
		}
		return formula.Date(t), nil
	case "error":
		ev, ok := formula.ParseErrorValue(text)
		if !ok {
			return nil, fmt.Errorf("bad error marker %q", text)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}
}
