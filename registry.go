package formula

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// Variadic marks a function that accepts any number of arguments.
const Variadic = -1

// Func is a function callable from formulas. Arguments arrive evaluated,
// ranges as *Array. Formula-level failures such as a lookup miss are
// returned as ErrorValue results; an error return means the call itself
// was invalid and turns the cell into #ERROR!.
type Func func(ctx context.Context, args []Value) (Value, error)

// FunctionOptions describes a function at registration.
type FunctionOptions struct {
	Arity       int  // exact argument count, or Variadic
	Async       bool // may block; only callable when async evaluation is enabled
	Description string
}

// FunctionSpec is a registered function.
type FunctionSpec struct {
	Name        string
	Fn          Func
	Arity       int
	Async       bool
	Description string
}

// Registry maps uppercase function names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	funcs   map[string]FunctionSpec
	version uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]FunctionSpec)}
}

// NewDefaultRegistry returns a registry holding the built-in functions.
func NewDefaultRegistry(opts ...BuiltInOption) *Registry {
	r := NewRegistry()
	NewBuiltInFunctions(opts...).RegisterAll(r)
	return r
}

// Register adds fn under name, replacing any function already registered
// under the same name in any case.
func (r *Registry) Register(name string, fn Func, opts FunctionOptions) error {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return errors.New("function name is empty")
	}
	if fn == nil {
		return errors.New("function " + name + " has no implementation")
	}
	if opts.Arity < Variadic {
		return errors.New("function " + name + " has a negative arity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = FunctionSpec{
		Name:        name,
		Fn:          fn,
		Arity:       opts.Arity,
		Async:       opts.Async,
		Description: opts.Description,
	}
	r.version++
	return nil
}

// Get looks name up case-insensitively.
func (r *Registry) Get(name string) (FunctionSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.funcs[strings.ToUpper(name)]
	return spec, ok
}

// List returns every registered function sorted by name.
func (r *Registry) List() []FunctionSpec {
	r.mu.RLock()
	out := make([]FunctionSpec, 0, len(r.funcs))
	for _, spec := range r.funcs {
		out = append(out, spec)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b FunctionSpec) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the sorted function names.
func (r *Registry) Names() []string {
	specs := r.List()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}

// Version increases on every registration. Cached results computed under
// an older version may have called a function that has since changed.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
