package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ryanmello/lilli/internal/graph"
)

// ErrInvalidDefinition indicates a malformed handler definition.
var ErrInvalidDefinition = errors.New("invalid handler definition")

// DuplicateHandlerError is returned when a name is registered twice.
type DuplicateHandlerError struct {
	Name string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("handler %q is already registered", e.Name)
}

// UnknownHandlerError is returned when a name does not resolve.
type UnknownHandlerError struct {
	Name string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("unknown handler %q", e.Name)
}

// CyclicDependencyError is returned when a registration would close a cycle.
type CyclicDependencyError struct {
	Handler string
	// Path lists handler names along the cycle; first and last are equal.
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("registering %q would create a dependency cycle: %s", e.Handler, strings.Join(e.Path, " -> "))
}

// Unwrap lets errors.Is match graph.ErrCycleDetected.
func (e *CyclicDependencyError) Unwrap() error { return graph.ErrCycleDetected }

// UnsatisfiableDependencyError is returned when a required dependency cannot
// be part of the requested handler set.
type UnsatisfiableDependencyError struct {
	Handler    string
	Dependency string
	// Registered reports whether the dependency exists in the registry.
	Registered bool
}

func (e *UnsatisfiableDependencyError) Error() string {
	if !e.Registered {
		return fmt.Sprintf("handler %q depends on unregistered handler %q", e.Handler, e.Dependency)
	}
	return fmt.Sprintf("handler %q depends on %q, which is not in the requested set", e.Handler, e.Dependency)
}
