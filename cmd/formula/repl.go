package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/script"
)

const prompt = "formula> "

const helpText = `commands:
  A1 input       set a cell (text starting with '=' is a formula) and recalculate
  A1             show a cell
  =formula       evaluate a formula without storing it
  :recalc [A1]   recalculate everything, or A1 and what follows it
  :force         recalculate everything, ignoring cached results
  :deps A1       show what A1 reads and what reads A1
  :clear A1      delete a cell
  :cells         list every cell
  :funcs         list the available functions
  :help          show this help
  exit           leave
`

var commands = []string{":recalc", ":force", ":deps", ":clear", ":cells", ":funcs", ":help", "exit"}

// shell runs prompt commands against one sheet
type shell struct {
	ctx    context.Context
	engine *formula.Engine
	sheet  workbook
	opts   formula.Options
	out    io.Writer
}

// startREPL starts the prompt with line editing, history, and tab completion
func startREPL(sh *shell) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(sh.complete)

	historyFile := filepath.Join(os.TempDir(), ".formula_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(sh.out, "Type ':help' for commands, 'exit' or Ctrl+D to quit")
	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(sh.out, "^C")
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(sh.out)
				return
			}
			fmt.Fprintf(sh.out, "error reading input: %v\n", err)
			return
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if sh.execute(input) {
			return
		}
	}
}

// complete offers commands and function names for the word being typed
func (sh *shell) complete(line string) []string {
	start := strings.LastIndexAny(line, " (,=+-*/") + 1
	prefix, word := line[:start], strings.ToUpper(line[start:])
	if word == "" {
		return nil
	}

	var out []string
	if start == 0 {
		for _, c := range commands {
			if strings.HasPrefix(strings.ToUpper(c), word) {
				out = append(out, c)
			}
		}
	}
	for _, name := range sh.engine.Registry().Names() {
		if strings.HasPrefix(name, word) {
			out = append(out, prefix+name+"(")
		}
	}
	return out
}

// execute runs one command line and reports whether the prompt should exit
func (sh *shell) execute(input string) (quit bool) {
	input = strings.TrimSpace(input)
	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "":
	case "exit", "quit":
		return true
	case ":help":
		fmt.Fprint(sh.out, helpText)
	case ":recalc":
		var changed *formula.Address
		if arg != "" {
			addr, ok := sh.address(arg)
			if !ok {
				return false
			}
			changed = &addr
		}
		sh.report(sh.recalculate(changed, sh.opts))
	case ":force":
		opts := sh.opts
		opts.Force = true
		sh.report(sh.recalculate(nil, opts))
	case ":deps":
		if addr, ok := sh.address(arg); ok {
			sh.printDeps(addr)
		}
	case ":clear":
		if addr, ok := sh.address(arg); ok {
			sh.clear(addr)
		}
	case ":cells":
		sh.printCells()
	case ":funcs":
		for _, spec := range sh.engine.Registry().List() {
			arity := "any"
			if spec.Arity != formula.Variadic {
				arity = fmt.Sprint(spec.Arity)
			}
			fmt.Fprintf(sh.out, "%-12s %-4s %s\n", spec.Name, arity, spec.Description)
		}
	default:
		switch {
		case strings.HasPrefix(input, "="):
			v, err := sh.engine.Evaluate(sh.ctx, sh.sheet, input)
			if err != nil {
				fmt.Fprintf(sh.out, "error: %v\n", err)
				return false
			}
			fmt.Fprintln(sh.out, v)
		case strings.HasPrefix(input, ":"):
			fmt.Fprintf(sh.out, "unknown command %s, type :help\n", command)
		default:
			sh.assign(input)
		}
	}
	return false
}

func (sh *shell) address(text string) (formula.Address, bool) {
	addr, err := formula.ParseAddress(strings.ToUpper(text))
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return formula.Address{}, false
	}
	return addr, true
}

// assign handles "A1 input" and "A1"
func (sh *shell) assign(input string) {
	a, _, err := script.ParseAssignment(input)
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	if !strings.Contains(input, " ") {
		sh.printCell(a.Address)
		return
	}
	if err := script.Apply(sh.sheet, []script.Assignment{a}); err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	if err := sh.recalculate(&a.Address, sh.opts); err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	sh.printCell(a.Address)
}

// recalculate runs a pass and prints the cells that failed
func (sh *shell) recalculate(changed *formula.Address, opts formula.Options) error {
	result, err := sh.engine.Recalculate(sh.ctx, sh.sheet, changed, opts)
	if err != nil {
		return err
	}
	if result.Rejected {
		return errors.New("a recalculation is already running")
	}
	for _, f := range result.Failures {
		fmt.Fprintf(sh.out, "%s: %v\n", f.Address, f.Err)
	}
	return nil
}

func (sh *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, "ok")
}

func (sh *shell) clear(addr formula.Address) {
	var err error
	switch s := sh.sheet.(type) {
	case interface{ ClearCell(row, col int) error }:
		err = s.ClearCell(addr.Row, addr.Col)
	case interface{ ClearCell(row, col int) bool }:
		s.ClearCell(addr.Row, addr.Col)
	default:
		err = sh.sheet.SetCell(addr.Row, addr.Col, formula.Empty{}, formula.WithFormula(""))
	}
	if err == nil {
		err = sh.recalculate(nil, sh.opts)
	}
	sh.report(err)
}

func (sh *shell) printCell(addr formula.Address) {
	cell, ok := sh.sheet.GetCell(addr.Row, addr.Col)
	if !ok {
		fmt.Fprintf(sh.out, "%s is empty\n", addr)
		return
	}
	printCell(sh.out, addr, cell)
}

func (sh *shell) printCells() {
	for addr, cell := range sh.sheet.Cells() {
		printCell(sh.out, addr, cell)
	}
}

func printCell(w io.Writer, addr formula.Address, cell formula.Cell) {
	if cell.HasFormula() {
		fmt.Fprintf(w, "%s = %v\t%s\n", addr, cell.Value, cell.Formula)
		return
	}
	fmt.Fprintf(w, "%s = %v\n", addr, cell.Value)
}

func (sh *shell) printDeps(addr formula.Address) {
	graph := formula.BuildDependencyGraph(sh.sheet)
	fmt.Fprintf(sh.out, "reads: %s\n", joinAddresses(graph.Dependencies(addr)))
	fmt.Fprintf(sh.out, "read by: %s\n", joinAddresses(graph.AllDependents(addr)))
}

func joinAddresses(addrs []formula.Address) string {
	if len(addrs) == 0 {
		return "-"
	}
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
