// Package registry holds the catalog of handlers available to the classifier
// and dispatcher, and the dependency graph between them.
package registry

import (
	"fmt"
	"sync"

	"github.com/ryanmello/lilli/internal/graph"
	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/pkg/models"
)

// Description is the classifier-facing summary of one handler.
type Description struct {
	Name        string
	Description string
}

// Registry stores handlers by name in registration order.
// It is written during startup and read concurrently afterwards.
type Registry struct {
	mu sync.RWMutex
	// handlers maps name to handler.
	handlers map[string]handler.Handler
	// defs maps name to a private copy of the handler's definition.
	defs map[string]models.HandlerDefinition
	// order lists names in registration order.
	order []string
	// graph holds required and optional dependency edges.
	graph *graph.DependencyGraph
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]handler.Handler),
		defs:     make(map[string]models.HandlerDefinition),
		graph:    graph.New(),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (r *Registry) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugLog = fn
	r.graph.SetDebugLog(fn)
}

// Register adds a handler. It fails with *DuplicateHandlerError if the name
// is taken and *CyclicDependencyError if the handler's dependencies would
// close a cycle. On failure the registry is unchanged. Dependencies may name
// handlers that are registered later.
func (r *Registry) Register(h handler.Handler) error {
	def := h.Definition().Clone()
	if def.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if err := def.OutputShape.Check(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[def.Name]; exists {
		return &DuplicateHandlerError{Name: def.Name}
	}

	// Check the cycle on a copy so a rejected handler leaves no trace.
	candidate := r.graph.Clone()
	candidate.AddNode(def.Name, def.AllDependencies())
	if path := candidate.FindCycle(); path != nil {
		r.debugLog("[registry.Register] rejected %s: cycle %v", def.Name, path)
		return &CyclicDependencyError{Handler: def.Name, Path: path}
	}

	r.graph = candidate
	r.handlers[def.Name] = h
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	r.debugLog("[registry.Register] registered %s depends_on=%v optional=%v", def.Name, def.DependsOn, def.OptionalDependsOn)
	return nil
}

// MustRegister registers handlers and panics on the first error.
// Intended for tests and static wiring.
func (r *Registry) MustRegister(hs ...handler.Handler) *Registry {
	for _, h := range hs {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns a copy of the named handler's definition.
func (r *Registry) Get(name string) (models.HandlerDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return models.HandlerDefinition{}, &UnknownHandlerError{Name: name}
	}
	return def.Clone(), nil
}

// Handler returns the named handler.
func (r *Registry) Handler(name string) (handler.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, &UnknownHandlerError{Name: name}
	}
	return h, nil
}

// Has reports whether a handler is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns handler names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DescribeAll returns name and description of every handler in registration order.
func (r *Registry) DescribeAll() []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Description, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Description{Name: name, Description: r.defs[name].Description})
	}
	return out
}

// Closure expands names transitively over required dependencies. The result
// lists the given names first, then added dependencies in discovery order.
// An unknown name fails with *UnknownHandlerError; a required dependency that
// is not registered fails with *UnsatisfiableDependencyError.
func (r *Registry) Closure(names []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	var out []string
	queue := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := r.defs[name]; !ok {
			return nil, &UnknownHandlerError{Name: name}
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range r.defs[name].DependsOn {
			if _, ok := r.defs[dep]; !ok {
				return nil, &UnsatisfiableDependencyError{Handler: name, Dependency: dep}
			}
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				queue = append(queue, dep)
				r.debugLog("[registry.Closure] %s pulled in %s", name, dep)
			}
		}
	}
	return out, nil
}

// TopologicalOrder orders names so each handler follows its in-set
// dependencies, breaking ties by registration order. A required dependency
// missing from names fails with *UnsatisfiableDependencyError; optional
// dependencies outside the set are ignored.
func (r *Registry) TopologicalOrder(names []string) ([]string, error) {
	r.mu.RLock()
	in := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.defs[name]; !ok {
			r.mu.RUnlock()
			return nil, &UnknownHandlerError{Name: name}
		}
		in[name] = true
	}
	for _, name := range names {
		for _, dep := range r.defs[name].DependsOn {
			if !in[dep] {
				_, registered := r.defs[dep]
				r.mu.RUnlock()
				return nil, &UnsatisfiableDependencyError{Handler: name, Dependency: dep, Registered: registered}
			}
		}
	}
	g := r.graph
	r.mu.RUnlock()

	order, err := g.TopologicalSort(names)
	if err != nil {
		// Registration keeps the graph acyclic, so this indicates a bug.
		return nil, fmt.Errorf("order handlers: %w", err)
	}
	return order, nil
}

// Waves groups an ordered plan into sets of mutually independent handlers.
func (r *Registry) Waves(plan []string) [][]string {
	r.mu.RLock()
	g := r.graph
	r.mu.RUnlock()
	return g.Waves(plan)
}

// Validate checks that every required dependency resolves. Call it once all
// handlers are registered; a failure is a fatal configuration error.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		for _, dep := range r.defs[name].DependsOn {
			if _, ok := r.defs[dep]; !ok {
				return &UnsatisfiableDependencyError{Handler: name, Dependency: dep}
			}
		}
		for _, dep := range r.defs[name].OptionalDependsOn {
			if _, ok := r.defs[dep]; !ok {
				r.debugLog("[registry.Validate] %s: optional dependency %s is not registered", name, dep)
			}
		}
	}
	return nil
}

// Build registers handlers in order and validates the result.
func Build(handlers []handler.Handler) (*Registry, error) {
	r := New()
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
