package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		addr  string
		input string
	}{
		{"A1 10", true, "A1", "10"},
		{"  B2   =SUM(A1:A3)  ", true, "B2", "=SUM(A1:A3)"},
		{"C3 hello world", true, "C3", "hello world"},
		{"D4", true, "D4", ""},
		{"", false, "", ""},
		{"   ", false, "", ""},
		{"# A1 10", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			a, ok, err := ParseAssignment(tt.line)
			if err != nil {
				t.Fatalf("ParseAssignment(%q) failed: %v", tt.line, err)
			}
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if a.Address != formula.MustParseAddress(tt.addr) || a.Input != tt.input {
				t.Errorf("got %s %q, want %s %q", a.Address, a.Input, tt.addr, tt.input)
			}
		})
	}

	if _, _, err := ParseAssignment("a1 10"); !errors.Is(err, formula.ErrInvalidAddress) {
		t.Errorf("lowercase address err = %v", err)
	}
}

func TestParse(t *testing.T) {
	src := `# budget
A1 100
A2 =A1*2

bogus line
`
	_, err := Parse(strings.NewReader(src))
	if err == nil || !strings.Contains(err.Error(), "line 5") {
		t.Fatalf("err = %v, want failure on line 5", err)
	}

	as, err := Parse(strings.NewReader("A1 1\n\nA2 =A1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(as) != 2 || as[0].Line != 1 || as[1].Line != 3 {
		t.Errorf("assignments = %+v", as)
	}
}

func TestApply(t *testing.T) {
	sheet := formula.NewMemorySheet()
	as, err := Parse(strings.NewReader("A1 4\nA2 =A1+1\nA3 =A2*2\nA3 TRUE\nB1 text here\nB2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(sheet, as); err != nil {
		t.Fatal(err)
	}

	if v := sheet.GetCellValue(0, 0); v != formula.Number(4) {
		t.Errorf("A1 = %v", v)
	}
	if cell, _ := sheet.GetCell(1, 0); cell.Formula != "=A1+1" {
		t.Errorf("A2 = %+v", cell)
	}
	// a later literal replaces the formula
	if cell, _ := sheet.GetCell(2, 0); cell.HasFormula() || cell.Value != formula.Boolean(true) {
		t.Errorf("A3 = %+v", cell)
	}
	if v := sheet.GetCellValue(0, 1); v != formula.Text("text here") {
		t.Errorf("B1 = %v", v)
	}
	if v := sheet.GetCellValue(1, 1); v != (formula.Empty{}) {
		t.Errorf("B2 = %v, want empty", v)
	}

	if _, err := formula.NewEngine().Recalculate(context.Background(), sheet, nil, formula.Options{}); err != nil {
		t.Fatal(err)
	}
	if v := sheet.GetCellValue(1, 0); v != formula.Number(5) {
		t.Errorf("A2 = %v after recalculation", v)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.txt")
	if err := os.WriteFile(path, []byte("A1 1\nZZ 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "sheet.txt") {
		t.Errorf("err = %v, want failure naming the file", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.txt")
	if err := os.WriteFile(path, []byte("A1 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func() { changes <- struct{}{} }, nil)
	}()

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// a burst of writes settles into one change
	for i := range 3 {
		if err := os.WriteFile(path, []byte(strings.Repeat("A1 2\n", i+1)), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-changes:
		t.Error("burst reported more than once")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
