// Package handler defines the capability interface every specialized handler
// implements, the completion-backed implementation, and the YAML catalog the
// default flower-shop handlers are declared in.
package handler

import (
	"context"
	"encoding/json"

	"github.com/ryanmello/lilli/pkg/models"
)

// Input is everything a handler sees for one invocation.
type Input struct {
	// RequestText is the user's original request.
	RequestText string
	// Query is the rewritten sub-query for this handler, or the request text.
	Query string
	// Entities were extracted by the classifier.
	Entities map[string]models.Entity
	// Dependencies holds outputs of declared dependencies that already ran,
	// in execution order.
	Dependencies []models.HandlerOutput
	// History holds recent turns, oldest first.
	History []models.Turn
	// Attributes are the session's cross-turn facts.
	Attributes map[string]string
}

// Dependency returns the output of the named dependency, if it ran.
func (in Input) Dependency(name string) (map[string]any, bool) {
	for _, o := range in.Dependencies {
		if o.Handler == name {
			return o.Data, true
		}
	}
	return nil, false
}

// Handler is a specialized unit of work bound to one domain.
type Handler interface {
	// Definition returns the handler's immutable descriptor.
	Definition() models.HandlerDefinition
	// Invoke runs the handler and returns a value to be validated against
	// Definition().OutputShape.
	Invoke(ctx context.Context, in Input) (json.RawMessage, error)
}

// Func adapts a definition and a function to the Handler interface.
type Func struct {
	Def models.HandlerDefinition
	Fn  func(ctx context.Context, in Input) (json.RawMessage, error)
}

// Definition returns the wrapped definition.
func (f Func) Definition() models.HandlerDefinition { return f.Def }

// Invoke calls the wrapped function.
func (f Func) Invoke(ctx context.Context, in Input) (json.RawMessage, error) {
	return f.Fn(ctx, in)
}

// Static returns a handler that always answers with v marshalled to JSON.
func Static(def models.HandlerDefinition, v any) Func {
	raw, err := json.Marshal(v)
	return Func{Def: def, Fn: func(ctx context.Context, in Input) (json.RawMessage, error) {
		if err != nil {
			return nil, err
		}
		return raw, nil
	}}
}
