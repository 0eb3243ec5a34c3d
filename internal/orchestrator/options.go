package orchestrator

import (
	"time"

	"github.com/ryanmello/lilli/internal/dispatch"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/internal/metrics"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/internal/state"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry holds the handlers. It must not change after New.
	Registry *registry.Registry
	// Completer serves the classifier's routing call.
	Completer llm.Completer
}

// RoutingConfig holds the routing policy knobs. Zero values take defaults.
type RoutingConfig struct {
	LowConfidenceThreshold float64
	FallbackConfidenceCap  float64
	FallbackHandler        string
	ClarificationHandler   string
	HistoryTurns           int
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	windowSize      int
	logger          *DebugLogger
	eventBuffer     int
	store           state.SnapshotStore
	metrics         *metrics.Metrics
	parallel        bool
	handlerTimeout  time.Duration
	routing         RoutingConfig
	now             func() time.Time
	newID           func() string
	dispatchOptions []dispatch.Option
}

// WithWindowSize sets the number of turns kept per new session.
func WithWindowSize(n int) Option {
	return func(o *orchestratorOptions) { o.windowSize = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// WithSnapshotStore persists every recorded turn and restores sessions on
// first use.
func WithSnapshotStore(s state.SnapshotStore) Option {
	return func(o *orchestratorOptions) { o.store = s }
}

// WithMetrics records turn and handler metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithParallelDispatch runs independent handlers concurrently.
func WithParallelDispatch(enabled bool) Option {
	return func(o *orchestratorOptions) { o.parallel = enabled }
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.handlerTimeout = d }
}

// WithRouting sets the routing policy.
func WithRouting(r RoutingConfig) Option {
	return func(o *orchestratorOptions) { o.routing = r }
}

// WithClock sets the time source (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator sets the turn ID source (mainly for testing).
func WithIDGenerator(fn func() string) Option {
	return func(o *orchestratorOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithDispatchOptions passes extra options to the dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(o *orchestratorOptions) { o.dispatchOptions = append(o.dispatchOptions, opts...) }
}
