package dispatch

import (
	"errors"
	"fmt"
)

// ErrNoClarificationHandler is returned when a low-confidence decision must
// be rerouted but no clarification handler is registered.
var ErrNoClarificationHandler = errors.New("clarification handler is not registered")

// HandlerOutputInvalidError reports a handler result that failed validation
// against the handler's output shape.
type HandlerOutputInvalidError struct {
	Handler string
	Details error
}

func (e *HandlerOutputInvalidError) Error() string {
	return fmt.Sprintf("handler %q returned invalid output: %v", e.Handler, e.Details)
}

func (e *HandlerOutputInvalidError) Unwrap() error { return e.Details }

// HandlerFailure records the step that aborted a dispatch chain.
type HandlerFailure struct {
	Handler string
	Err     error
}

func (f *HandlerFailure) Error() string {
	return fmt.Sprintf("handler %q failed: %v", f.Handler, f.Err)
}

func (f *HandlerFailure) Unwrap() error { return f.Err }
