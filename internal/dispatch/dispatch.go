// Package dispatch executes the handlers selected by a routing decision in
// dependency order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ryanmello/lilli/internal/conversation"
	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/pkg/models"
)

const (
	// DefaultLowConfidenceThreshold reroutes single-handler decisions below it.
	DefaultLowConfidenceThreshold = 0.5
	// DefaultClarificationHandler asks the user to restate a request.
	DefaultClarificationHandler = "clarification"
	// DefaultHistoryTurns is how many recent turns handlers receive.
	DefaultHistoryTurns = 5
)

// Result is the outcome of one dispatch.
type Result struct {
	// Decision is the effective decision after any low-confidence reroute.
	Decision models.RoutingDecision
	// Rerouted is set when the primary was replaced by the clarification handler.
	Rerouted bool
	// Plan is the dependency-ordered list of handlers to run.
	Plan []string
	// Outputs holds validated outputs in execution order.
	Outputs []models.HandlerOutput
	// Failure is the step that aborted the chain, if any.
	Failure *HandlerFailure
}

// Partial reports whether fewer handlers completed than were planned.
func (r *Result) Partial() bool {
	return len(r.Outputs) < len(r.Plan)
}

// Missing returns the planned handlers that produced no output.
func (r *Result) Missing() []string {
	done := make(map[string]bool, len(r.Outputs))
	for _, o := range r.Outputs {
		done[o.Handler] = true
	}
	var missing []string
	for _, name := range r.Plan {
		if !done[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// Step describes one finished handler invocation. Exactly one of Output and
// Err is set.
type Step struct {
	Handler  string
	Output   *models.HandlerOutput
	Err      error
	Duration time.Duration
}

// StepHook observes finished steps. It is called from the dispatching
// goroutine, in plan order.
type StepHook func(sessionID string, step Step)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLowConfidenceThreshold sets the confidence below which a decision with
// no secondaries is rerouted to the clarification handler.
func WithLowConfidenceThreshold(t float64) Option {
	return func(d *Dispatcher) { d.threshold = t }
}

// WithClarificationHandler names the handler used for rerouting.
func WithClarificationHandler(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.clarification = name
		}
	}
}

// WithParallel runs mutually independent handlers concurrently.
func WithParallel(enabled bool) Option {
	return func(d *Dispatcher) { d.parallel = enabled }
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithHistoryTurns sets how many recent turns each handler receives.
func WithHistoryTurns(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.historyTurns = n
		}
	}
}

// WithStepHook installs an observer for finished steps.
func WithStepHook(hook StepHook) Option {
	return func(d *Dispatcher) { d.hook = hook }
}

// Dispatcher runs routing decisions against a registry. It holds no
// per-turn state and is safe for concurrent use.
type Dispatcher struct {
	threshold     float64
	clarification string
	parallel      bool
	timeout       time.Duration
	historyTurns  int
	hook          StepHook
	debugLog      func(format string, args ...interface{})
}

// New creates a dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		threshold:     DefaultLowConfidenceThreshold,
		clarification: DefaultClarificationHandler,
		historyTurns:  DefaultHistoryTurns,
		debugLog:      func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetDebugLog sets the debug logging function.
func (d *Dispatcher) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		d.debugLog = fn
	}
}

// Parallel reports whether wave execution is enabled.
func (d *Dispatcher) Parallel() bool {
	return d.parallel
}

// Dispatch plans and runs the handlers for decision. The returned error is
// reserved for planning problems (unknown handlers, unsatisfiable
// dependencies); handler failures abort the chain and are reported in
// Result.Failure alongside the outputs that completed before them.
// The state may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, requestText string, decision models.RoutingDecision, reg *registry.Registry, state *conversation.State) (*Result, error) {
	res := &Result{Decision: decision}

	if decision.Confidence < d.threshold && len(decision.SecondaryHandlers) == 0 && decision.PrimaryHandler != d.clarification {
		if !reg.Has(d.clarification) {
			return nil, fmt.Errorf("%w: %q", ErrNoClarificationHandler, d.clarification)
		}
		d.debugLog("[dispatch] confidence %.2f below %.2f, rerouting %s to %s",
			decision.Confidence, d.threshold, decision.PrimaryHandler, d.clarification)
		res.Decision.PrimaryHandler = d.clarification
		res.Rerouted = true
	}

	closure, err := reg.Closure(res.Decision.Handlers())
	if err != nil {
		return nil, fmt.Errorf("plan handlers: %w", err)
	}
	plan, err := reg.TopologicalOrder(closure)
	if err != nil {
		return nil, fmt.Errorf("plan handlers: %w", err)
	}
	res.Plan = plan
	d.debugLog("[dispatch] plan: %v", plan)

	env := &turnEnv{
		requestText: requestText,
		decision:    res.Decision,
		reg:         reg,
	}
	if state != nil {
		env.sessionID = state.SessionID()
		env.history = state.RecentTurns(d.historyTurns)
		env.attributes = state.Attributes()
	}

	if d.parallel {
		d.runWaves(ctx, env, res)
	} else {
		d.runSequential(ctx, env, res)
	}
	return res, nil
}

// turnEnv is the per-dispatch input shared by every step.
type turnEnv struct {
	sessionID   string
	requestText string
	decision    models.RoutingDecision
	reg         *registry.Registry
	history     []models.Turn
	attributes  map[string]string
}

func (d *Dispatcher) runSequential(ctx context.Context, env *turnEnv, res *Result) {
	for _, name := range res.Plan {
		step := d.runStep(ctx, env, name, res.Outputs)
		d.notify(env.sessionID, step)
		if step.Err != nil {
			res.Failure = &HandlerFailure{Handler: name, Err: step.Err}
			return
		}
		res.Outputs = append(res.Outputs, *step.Output)
	}
}

// runStep invokes one handler with the outputs completed so far and
// validates its result.
func (d *Dispatcher) runStep(ctx context.Context, env *turnEnv, name string, completed []models.HandlerOutput) Step {
	start := time.Now()
	step := Step{Handler: name}

	h, err := env.reg.Handler(name)
	if err != nil {
		step.Err = err
		return step
	}
	def := h.Definition()

	if err := ctx.Err(); err != nil {
		step.Err = err
		step.Duration = time.Since(start)
		return step
	}

	in := handler.Input{
		RequestText:  env.requestText,
		Query:        env.decision.QueryFor(name, env.requestText),
		Entities:     env.decision.Entities,
		Dependencies: dependencyOutputs(def, completed),
		History:      env.history,
		Attributes:   env.attributes,
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	raw, err := h.Invoke(callCtx, in)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !llm.IsTimeout(err) {
			err = &llm.CapabilityTimeoutError{Name: name, Timeout: d.timeout}
		}
		d.debugLog("[dispatch] %s failed: %v", name, err)
		step.Err = err
		step.Duration = time.Since(start)
		return step
	}

	data, err := def.OutputShape.Validate(raw)
	if err != nil {
		d.debugLog("[dispatch] %s output invalid: %v", name, err)
		step.Err = &HandlerOutputInvalidError{Handler: name, Details: err}
		step.Duration = time.Since(start)
		return step
	}

	step.Output = &models.HandlerOutput{Handler: name, Data: data}
	step.Duration = time.Since(start)
	return step
}

func (d *Dispatcher) notify(sessionID string, step Step) {
	if d.hook != nil {
		d.hook(sessionID, step)
	}
}

// dependencyOutputs selects copies of the completed outputs the handler
// declared, preserving execution order.
func dependencyOutputs(def models.HandlerDefinition, completed []models.HandlerOutput) []models.HandlerOutput {
	deps := def.AllDependencies()
	if len(deps) == 0 {
		return nil
	}
	want := make(map[string]bool, len(deps))
	for _, dep := range deps {
		want[dep] = true
	}
	var out []models.HandlerOutput
	for _, o := range completed {
		if want[o.Handler] {
			out = append(out, o.Clone())
		}
	}
	return out
}
