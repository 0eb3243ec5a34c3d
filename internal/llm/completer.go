// Package llm defines the text-completion capability used by the classifier
// and handlers, along with its Anthropic and OpenAI-compatible backends.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ryanmello/lilli/pkg/models"
)

// ErrEmptyResponse is returned when a backend produced no structured value.
var ErrEmptyResponse = errors.New("completion returned no structured output")

// Request is a single structured completion call.
type Request struct {
	// System is the system prompt.
	System string
	// User is the user prompt.
	User string
	// Shape is the schema the response must follow.
	Shape models.OutputShape
	// Name identifies the schema to the backend (tool or format name).
	Name string
}

// Completer is the text-completion capability. Implementations return a
// JSON value intended to match req.Shape; callers validate it.
type Completer interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (json.RawMessage, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// CapabilityTimeoutError reports a completion call that exceeded its bound.
type CapabilityTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *CapabilityTimeoutError) Error() string {
	return fmt.Sprintf("completion %q timed out after %s", e.Name, e.Timeout)
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *CapabilityTimeoutError) Unwrap() error { return context.DeadlineExceeded }

type timeoutCompleter struct {
	inner   Completer
	timeout time.Duration
}

// WithTimeout bounds every call to c. A call that runs past d fails with
// *CapabilityTimeoutError. A non-positive d returns c unchanged.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return &timeoutCompleter{inner: c, timeout: d}
}

func (t *timeoutCompleter) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		raw json.RawMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := t.inner.Complete(ctx, req)
		ch <- result{raw, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &CapabilityTimeoutError{Name: req.Name, Timeout: t.timeout}
		}
		return r.raw, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &CapabilityTimeoutError{Name: req.Name, Timeout: t.timeout}
		}
		return nil, ctx.Err()
	}
}

// IsTimeout reports whether err is a completion timeout.
func IsTimeout(err error) bool {
	var te *CapabilityTimeoutError
	return errors.As(err, &te)
}
