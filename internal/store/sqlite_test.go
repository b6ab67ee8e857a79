package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func openTemp(t *testing.T, path, name string) *SQLiteSheet {
	t.Helper()
	s, err := Open(context.Background(), path, name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sheets.db")
	when := time.Date(2024, 3, 5, 14, 7, 9, 500, time.UTC)

	s := openTemp(t, path, "budget")
	cells := map[string]formula.Value{
		"A1": formula.Number(0.1),
		"A2": formula.Text("hello"),
		"A3": formula.Boolean(true),
		"A4": formula.Date(when),
		"A5": formula.ErrorValue{Code: formula.ErrorCodeNA},
		"A6": formula.Empty{},
	}
	for address, v := range cells {
		a := formula.MustParseAddress(address)
		if err := s.SetCell(a.Row, a.Col, v); err != nil {
			t.Fatalf("SetCell(%s) failed: %v", address, err)
		}
	}
	if err := s.SetCell(0, 1, formula.Empty{}, formula.WithFormula("=A1*2"), formula.WithFormat("0.00")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s = openTemp(t, path, "budget")
	defer s.Close()
	for address, want := range cells {
		a := formula.MustParseAddress(address)
		cell, ok := s.GetCell(a.Row, a.Col)
		if !ok {
			t.Errorf("%s missing after reopen", address)
			continue
		}
		if !formula.SameValue(cell.Value, want) || cell.Type != want.Type() {
			t.Errorf("%s = %v (%s), want %v", address, cell.Value, cell.Type, want)
		}
	}
	cell, _ := s.GetCell(0, 1)
	if cell.Formula != "=A1*2" || cell.Format != "0.00" {
		t.Errorf("B1 metadata lost: %+v", cell)
	}
	if s.Len() != 7 {
		t.Errorf("Len() = %d, want 7", s.Len())
	}
}

func TestRecalculatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.db")
	s := openTemp(t, path, "main")
	set := func(address, input string) {
		a := formula.MustParseAddress(address)
		v, f := formula.ParseCellInput(input)
		if err := s.SetCell(a.Row, a.Col, v, formula.WithFormula(f)); err != nil {
			t.Fatal(err)
		}
	}
	set("A1", "4")
	set("A2", "=A1*10")
	set("A3", "=SQRT(A2-A1*10)+1/0")

	result, err := formula.NewEngine().Recalculate(context.Background(), s, nil, formula.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.CellsProcessed != 2 {
		t.Errorf("processed %d cells, want 2", result.CellsProcessed)
	}
	s.Close()

	s = openTemp(t, path, "main")
	defer s.Close()
	if v := s.GetCellValue(1, 0); v != formula.Number(40) {
		t.Errorf("A2 = %v after reopen, want 40", v)
	}
	if v := s.GetCellValue(2, 0); v != (formula.ErrorValue{Code: formula.ErrorCodeDiv0}) {
		t.Errorf("A3 = %v after reopen, want #DIV/0!", v)
	}
	if got := s.FormulaCells(); len(got) != 2 {
		t.Errorf("FormulaCells() = %v", got)
	}
}

func TestSheetsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.db")
	a := openTemp(t, path, "a")
	if err := a.SetCell(0, 0, formula.Number(1)); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b := openTemp(t, path, "b")
	defer b.Close()
	if b.Len() != 0 {
		t.Errorf("sheet b sees %d cells of sheet a", b.Len())
	}
	if b.Name() != "b" {
		t.Errorf("Name() = %q", b.Name())
	}
}

func TestClearCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.db")
	s := openTemp(t, path, "main")
	_ = s.SetCell(3, 3, formula.Text("gone"))
	if err := s.ClearCell(3, 3); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.GetCell(3, 3); ok {
		t.Error("cell still in memory")
	}
	s.Close()

	s = openTemp(t, path, "main")
	defer s.Close()
	if _, ok := s.GetCell(3, 3); ok {
		t.Error("cell still in database")
	}
}

func TestWriteFailureLeavesMemoryUnchanged(t *testing.T) {
	s := openTemp(t, ":memory:", "main")
	_ = s.SetCell(0, 0, formula.Number(1))
	s.Close()

	if err := s.SetCell(0, 0, formula.Number(2)); err == nil {
		t.Fatal("write to a closed database succeeded")
	}
	if v := s.GetCellValue(0, 0); v != formula.Number(1) {
		t.Errorf("A1 = %v after failed write, want 1", v)
	}
}

func TestRejectsArrays(t *testing.T) {
	s := openTemp(t, ":memory:", "main")
	defer s.Close()
	if err := s.SetCell(0, 0, &formula.Array{}); err == nil {
		t.Error("array value stored")
	}
}
