package formula

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	stateIdle int32 = iota
	stateComputing
)

// Options controls one recalculation pass.
type Options struct {
	Force bool // re-evaluate every cell in the working set, ignoring cached results
	Async bool // allow functions registered as async
}

// CellFailure is a formula that could not be evaluated. The cell holds
// #ERROR! afterwards.
type CellFailure struct {
	Address Address
	Err     error
}

// Result summarizes a recalculation pass.
type Result struct {
	CellsProcessed int // formula cells evaluated
	CellsSkipped   int // formula cells whose cached result was still current
	Failures       []CellFailure
	Rejected       bool // another pass was running; nothing was done
}

// EngineOption configures NewEngine.
type EngineOption func(*Engine)

// WithRegistry sets the function registry. The default holds the built-ins.
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// cacheEntry fingerprints the inputs of the last successful evaluation of
// one cell. The result is reused while all of them are unchanged.
type cacheEntry struct {
	formula  string
	deps     []Value // values of Dependencies, in graph order
	value    Value   // value written to the cell
	registry uint64  // registry version at evaluation time
}

// Engine recalculates formula cells of a Sheet in dependency order. Only
// one pass runs at a time; a pass requested while another is running is
// rejected rather than queued.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
	state    atomic.Int32

	mu    sync.Mutex
	cache map[Address]cacheEntry
}

// NewEngine creates an idle engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		cache: make(map[Address]cacheEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewDefaultRegistry()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Registry returns the engine's function registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Computing reports whether a pass is running.
func (e *Engine) Computing() bool { return e.state.Load() == stateComputing }

// ResetCache forgets every cached result, so the next pass evaluates
// every cell in its working set.
func (e *Engine) ResetCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cache)
}

// Recalculate brings formula cells up to date. The dependency graph is
// rebuilt from the sheet; cells are evaluated in topological order. When
// changed is set only that cell and the cells after it in the order are
// considered; a changed cell that is not in the graph processes nothing.
//
// A circular reference fails the whole pass before any cell is written.
// Failures of individual formulas are contained: the cell becomes #ERROR!
// and the failure is listed in the result. A storage write failure aborts
// the pass.
func (e *Engine) Recalculate(ctx context.Context, sheet Sheet, changed *Address, opts Options) (Result, error) {
	if !e.state.CompareAndSwap(stateIdle, stateComputing) {
		e.logger.Info("recalculation rejected, engine is computing")
		return Result{Rejected: true}, nil
	}
	defer e.state.Store(stateIdle)

	start := time.Now()
	graph := BuildDependencyGraph(sheet)
	order, err := graph.TopologicalOrder()
	if err != nil {
		e.logger.Warn("recalculation aborted", "error", err)
		return Result{}, fmt.Errorf("recalculate: %w", err)
	}

	if changed != nil {
		idx := slices.Index(order, *changed)
		if idx < 0 {
			order = nil
		} else {
			order = order[idx:]
		}
	}
	e.logger.Debug("recalculation started", "nodes", graph.NodeCount(), "working_set", len(order), "force", opts.Force)

	var result Result
	for _, addr := range order {
		cell, ok := sheet.GetCell(addr.Row, addr.Col)
		if !ok || !cell.HasFormula() {
			continue
		}

		deps := dependencyValues(sheet, graph.Dependencies(addr))
		if !opts.Force && e.upToDate(addr, cell, deps) {
			result.CellsSkipped++
			continue
		}

		result.CellsProcessed++
		if _, err := e.evalCell(ctx, sheet, addr, cell.Formula, deps, opts.Async); err != nil {
			if !isCellFailure(err) {
				return result, fmt.Errorf("recalculate %s: %w", addr, err)
			}
			e.logger.Warn("formula failed", "cell", addr.String(), "formula", cell.Formula, "error", err)
			result.Failures = append(result.Failures, CellFailure{Address: addr, Err: err})
		}
	}

	e.logger.Debug("recalculation finished",
		"processed", result.CellsProcessed,
		"skipped", result.CellsSkipped,
		"failures", len(result.Failures),
		"duration", time.Since(start))
	return result, nil
}

// EvalCell evaluates the formula stored at addr and writes the result,
// leaving the formula in place. Async functions are allowed. On a lex,
// parse, unknown function or runtime failure the cell becomes #ERROR! and
// the failure is returned.
func (e *Engine) EvalCell(ctx context.Context, addr Address, sheet Sheet) (Value, error) {
	cell, ok := sheet.GetCell(addr.Row, addr.Col)
	if !ok || !cell.HasFormula() {
		return nil, fmt.Errorf("%w: %s", ErrNoFormula, addr)
	}
	refs, err := ExtractReferences(cell.Formula)
	if err != nil {
		refs = nil
	}
	deps := dependencyValues(sheet, uniqueAddresses(refs))
	return e.evalCell(ctx, sheet, addr, cell.Formula, deps, true)
}

// Evaluate computes formula against sheet without storing the result.
func (e *Engine) Evaluate(ctx context.Context, sheet Sheet, formula string) (Value, error) {
	v, _, err := e.evaluate(ctx, sheet, formula, true)
	return v, err
}

func (e *Engine) evalCell(ctx context.Context, sheet Sheet, addr Address, formula string, deps []Value, async bool) (Value, error) {
	version := e.registry.Version()
	value, volatile, evalErr := e.evaluate(ctx, sheet, formula, async)
	if evalErr != nil {
		e.forget(addr)
		value = ErrorValue{Code: ErrorCodeOther}
	}

	if err := sheet.SetCell(addr.Row, addr.Col, value, WithType(value.Type())); err != nil {
		e.forget(addr)
		return nil, fmt.Errorf("write %s: %w", addr, err)
	}
	if evalErr != nil {
		return value, evalErr
	}

	if volatile {
		e.forget(addr)
	} else {
		e.remember(addr, cacheEntry{formula: formula, deps: deps, value: value, registry: version})
	}
	return value, nil
}

// evaluate lexes, parses and evaluates formula. volatile reports that an
// async function was called.
func (e *Engine) evaluate(ctx context.Context, sheet Sheet, formula string, async bool) (value Value, volatile bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, volatile, err = nil, false, runtimeErrorf("evaluation panicked: %v", r)
		}
	}()

	node, err := ParseFormula(formula)
	if err != nil {
		return nil, false, err
	}
	ev := &evaluation{
		ctx:      ctx,
		sheet:    sheet,
		registry: e.registry,
		async:    async,
	}
	value, err = node.Eval(ev)
	if err != nil {
		return nil, ev.volatile, err
	}
	if _, ok := value.(*Array); ok {
		return nil, ev.volatile, runtimeErrorf("a formula result cannot be a range")
	}
	return value, ev.volatile, nil
}

func (e *Engine) upToDate(addr Address, cell Cell, deps []Value) bool {
	e.mu.Lock()
	entry, ok := e.cache[addr]
	e.mu.Unlock()
	if !ok || entry.formula != cell.Formula || entry.registry != e.registry.Version() {
		return false
	}
	if !SameValue(entry.value, cell.Value) || len(entry.deps) != len(deps) {
		return false
	}
	for i := range deps {
		if !SameValue(entry.deps[i], deps[i]) {
			return false
		}
	}
	return true
}

func (e *Engine) remember(addr Address, entry cacheEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[addr] = entry
}

func (e *Engine) forget(addr Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, addr)
}

func dependencyValues(sheet Sheet, deps []Address) []Value {
	values := make([]Value, len(deps))
	for i, dep := range deps {
		values[i] = valueAt(sheet, dep)
	}
	return values
}

// uniqueAddresses drops repeats, keeping first occurrences in order
func uniqueAddresses(addrs []Address) []Address {
	seen := make(map[Address]struct{}, len(addrs))
	out := addrs[:0:0]
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
