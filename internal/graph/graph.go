// Package graph provides the dependency graph over handler names.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCycleDetected indicates a circular dependency was found in the graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// CycleError carries the path of a detected cycle.
type CycleError struct {
	// Path lists node names along the cycle; the first and last entries are equal.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// DependencyGraph is a directed graph of "depends on" edges between named nodes.
// Node order is insertion order, which breaks ties in every ordering it produces.
// Edges may point at nodes that have not been added yet.
type DependencyGraph struct {
	mu sync.RWMutex
	// order lists node names in insertion order.
	order []string
	// index maps node name to its position in order.
	index map[string]int
	// edges maps node name to the names it depends on.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		index:    make(map[string]int),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// AddNode adds a node with its dependencies. Re-adding a node replaces its edges
// and keeps its original position.
func (g *DependencyGraph) AddNode(name string, deps []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(name, deps)
}

func (g *DependencyGraph) addNodeLocked(name string, deps []string) {
	if _, ok := g.index[name]; !ok {
		g.index[name] = len(g.order)
		g.order = append(g.order, name)
	}
	g.edges[name] = append([]string(nil), deps...)
	g.debugLog("[graph.AddNode] %s depends_on=%v", name, deps)
}

// Clone returns an independent copy of the graph sharing the debug logger.
func (g *DependencyGraph) Clone() *DependencyGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := New()
	c.debugLog = g.debugLog
	for _, name := range g.order {
		c.addNodeLocked(name, g.edges[name])
	}
	return c
}

// Has reports whether the node exists.
func (g *DependencyGraph) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.index[name]
	return ok
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Nodes returns node names in insertion order.
func (g *DependencyGraph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Position returns the insertion index of a node, or -1.
func (g *DependencyGraph) Position(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i, ok := g.index[name]; ok {
		return i
	}
	return -1
}

// GetDependencies returns the names the given node depends on.
func (g *DependencyGraph) GetDependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[name]...)
}

// GetDependents returns the names of nodes that depend on the given node,
// in insertion order.
func (g *DependencyGraph) GetDependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, dep := range g.edges[id] {
			if dep == name {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	return g.FindCycle() != nil
}

// FindCycle returns the path of the first cycle found, or nil.
// Uses depth-first search with coloring to detect back edges.
// Edges to unknown nodes are ignored.
func (g *DependencyGraph) FindCycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked()
}

func (g *DependencyGraph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.order))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = 1 // Mark as in progress.
		stack = append(stack, id)

		for _, dep := range g.edges[id] {
			if _, known := g.index[dep]; !known {
				continue
			}
			switch colors[dep] {
			case 1:
				// Back edge: the cycle is the stack from dep onwards.
				for i, s := range stack {
					if s == dep {
						path := append([]string(nil), stack[i:]...)
						return append(path, dep)
					}
				}
			case 0:
				if path := visit(dep); path != nil {
					return path
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2 // Mark as done.
		return nil
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if path := visit(id); path != nil {
				g.debugLog("[graph.FindCycle] cycle: %v", path)
				return path
			}
		}
	}
	return nil
}

// TopologicalSort orders a subset of nodes so that every node comes after
// its dependencies inside the subset. Dependencies outside the subset are
// ignored. Among nodes with no ordering constraint, the earlier inserted
// node comes first. Unknown names in subset are an error.
func (g *DependencyGraph) TopologicalSort(subset []string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	in := make(map[string]bool, len(subset))
	for _, name := range subset {
		if _, ok := g.index[name]; !ok {
			return nil, fmt.Errorf("unknown node %q", name)
		}
		in[name] = true
	}

	// Kahn's algorithm, always picking the ready node with the lowest index.
	pending := make(map[string]int, len(in))
	for name := range in {
		for _, dep := range uniq(g.edges[name]) {
			if in[dep] && dep != name {
				pending[name]++
			}
		}
		if contains(g.edges[name], name) {
			return nil, &CycleError{Path: []string{name, name}}
		}
	}

	result := make([]string, 0, len(in))
	done := make(map[string]bool, len(in))
	for len(result) < len(in) {
		next := ""
		for _, name := range g.order {
			if in[name] && !done[name] && pending[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			return nil, ErrCycleDetected
		}
		done[next] = true
		result = append(result, next)
		for _, name := range g.order {
			if in[name] && !done[name] && contains(g.edges[name], next) {
				pending[name]--
			}
		}
	}

	g.debugLog("[graph.TopologicalSort] subset=%v order=%v", subset, result)
	return result, nil
}

// Waves splits an ordered plan into groups whose members have no dependency
// on each other. Every node lands in the wave after the latest wave holding
// one of its in-plan dependencies. Plan order is preserved inside a wave.
func (g *DependencyGraph) Waves(plan []string) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	level := make(map[string]int, len(plan))
	inPlan := make(map[string]bool, len(plan))
	for _, name := range plan {
		inPlan[name] = true
	}

	var waves [][]string
	for _, name := range plan {
		lvl := 0
		for _, dep := range g.edges[name] {
			if inPlan[dep] {
				if l, ok := level[dep]; ok && l+1 > lvl {
					lvl = l + 1
				}
			}
		}
		level[name] = lvl
		for len(waves) <= lvl {
			waves = append(waves, nil)
		}
		waves[lvl] = append(waves[lvl], name)
	}
	return waves
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func uniq(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0:0]
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
