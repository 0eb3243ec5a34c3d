package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryanmello/lilli/internal/classifier"
	"github.com/ryanmello/lilli/internal/conversation"
	"github.com/ryanmello/lilli/internal/dispatch"
	"github.com/ryanmello/lilli/internal/metrics"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/internal/state"
	"github.com/ryanmello/lilli/internal/synth"
	"github.com/ryanmello/lilli/pkg/models"
)

// FallbackMessage is returned to the user when a turn fails outright.
const FallbackMessage = "Sorry, I couldn't process that request right now. Please try again in a moment."

var (
	// ErrTurnFailed wraps every error that left a turn without a reply.
	ErrTurnFailed = errors.New("turn failed")
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptySessionID is returned when a session ID is blank.
	ErrEmptySessionID = errors.New("session id is required")
)

// DefaultEventBuffer is the default event channel capacity.
const DefaultEventBuffer = 100

// Orchestrator runs turns for many sessions. Turns of one session run one at
// a time; different sessions run concurrently.
type Orchestrator struct {
	registry   *registry.Registry
	classifier *classifier.Classifier
	dispatcher *dispatch.Dispatcher
	windowSize int
	logger     *DebugLogger
	emitter    *EventEmitter
	store      state.SnapshotStore
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string

	mu       sync.Mutex
	sessions map[string]*session

	closeOnce sync.Once
}

// session pairs a conversation state with the lock that serializes its turns.
type session struct {
	mu         sync.Mutex
	state      *conversation.State
	lastActive time.Time
	closed     bool
}

// New creates an orchestrator. It fails when the registry lacks the
// configured fallback or clarification handler.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Registry == nil || req.Completer == nil {
		return nil, errors.New("registry and completer are required")
	}

	o := &orchestratorOptions{
		windowSize:  conversation.DefaultWindowSize,
		eventBuffer: DefaultEventBuffer,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}

	routing := o.routing
	if routing.FallbackHandler == "" {
		routing.FallbackHandler = "general"
	}
	if routing.ClarificationHandler == "" {
		routing.ClarificationHandler = dispatch.DefaultClarificationHandler
	}
	if routing.LowConfidenceThreshold <= 0 {
		routing.LowConfidenceThreshold = dispatch.DefaultLowConfidenceThreshold
	}
	for _, name := range []string{routing.FallbackHandler, routing.ClarificationHandler} {
		if !req.Registry.Has(name) {
			return nil, fmt.Errorf("configure routing: %w", &registry.UnknownHandlerError{Name: name})
		}
	}

	orch := &Orchestrator{
		registry:   req.Registry,
		windowSize: o.windowSize,
		logger:     o.logger,
		emitter:    NewEventEmitter(o.eventBuffer),
		store:      o.store,
		metrics:    o.metrics,
		now:        o.now,
		newID:      o.newID,
		sessions:   make(map[string]*session),
	}

	orch.classifier = classifier.New(req.Completer, classifier.Config{
		FallbackHandler:       routing.FallbackHandler,
		FallbackConfidenceCap: routing.FallbackConfidenceCap,
		HistoryTurns:          routing.HistoryTurns,
	})
	orch.classifier.SetDebugLog(o.logger.Log)

	dispatchOpts := []dispatch.Option{
		dispatch.WithLowConfidenceThreshold(routing.LowConfidenceThreshold),
		dispatch.WithClarificationHandler(routing.ClarificationHandler),
		dispatch.WithParallel(o.parallel),
		dispatch.WithHandlerTimeout(o.handlerTimeout),
	}
	if routing.HistoryTurns > 0 {
		dispatchOpts = append(dispatchOpts, dispatch.WithHistoryTurns(routing.HistoryTurns))
	}
	dispatchOpts = append(dispatchOpts, o.dispatchOptions...)
	dispatchOpts = append(dispatchOpts, dispatch.WithStepHook(orch.onStep))
	orch.dispatcher = dispatch.New(dispatchOpts...)
	orch.dispatcher.SetDebugLog(o.logger.Log)

	return orch, nil
}

// Events returns the channel of turn events.
func (o *Orchestrator) Events() <-chan TurnEvent {
	return o.emitter.Events()
}

// DroppedEventCount returns the number of events dropped on a full buffer.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// Registry returns the handler registry.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Close closes the event channel. It does not close the snapshot store,
// which belongs to the caller.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(o.emitter.Close)
	return nil
}

// HandleTurn processes one request for a session and returns the reply.
//
// A failed classification, a planning error, or a dispatch that produced no
// output fails the turn: the error wraps ErrTurnFailed and the cause, the
// returned response carries FallbackMessage, and nothing is recorded.
// Otherwise the turn is recorded, possibly as a partial reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, requestText string) (models.FinalResponse, error) {
	start := o.now()

	sess, err := o.acquire(ctx, sessionID)
	if err != nil {
		return fallbackResponse(), fmt.Errorf("%w: %w", ErrTurnFailed, err)
	}
	defer sess.mu.Unlock()
	sess.lastActive = start

	o.emit(TurnEvent{Type: EventTurnStarted, SessionID: sessionID})
	o.logger.Log("[turn] session=%s request=%q", sessionID, requestText)

	decision, err := o.classifier.Classify(ctx, requestText, o.registry, sess.state)
	if err != nil {
		return o.failTurn(sessionID, start, err)
	}
	o.metrics.ObserveClassification(decision.Confidence)
	o.emit(TurnEvent{Type: EventTurnClassified, SessionID: sessionID, Decision: &decision})
	o.logger.Log("[turn] session=%s primary=%s secondary=%v confidence=%.2f fallback=%v",
		sessionID, decision.PrimaryHandler, decision.SecondaryHandlers, decision.Confidence, decision.Fallback)

	res, err := o.dispatcher.Dispatch(ctx, requestText, decision, o.registry, sess.state)
	if err != nil {
		return o.failTurn(sessionID, start, err)
	}

	resp, err := synth.Synthesize(res.Decision, res.Plan, res.Outputs)
	if err != nil {
		cause := err
		if res.Failure != nil {
			cause = res.Failure
		}
		return o.failTurn(sessionID, start, cause)
	}

	// The recorded turn owns its own copy; the caller is free to modify resp.
	turn := models.Turn{
		ID:             o.newID(),
		RequestText:    requestText,
		Decision:       res.Decision.Clone(),
		HandlerOutputs: models.CloneOutputs(res.Outputs),
		FinalResponse:  resp.Clone(),
		Timestamp:      o.now().UTC(),
	}
	sess.state.AppendTurn(turn)
	o.remember(sess.state, res.Outputs)
	o.persist(ctx, sess.state)

	status := metrics.StatusOK
	if resp.Partial {
		status = metrics.StatusPartial
		o.logger.Log("[turn] session=%s partial, missing=%v cause=%v", sessionID, resp.Missing, res.Failure)
	}
	elapsed := o.now().Sub(start)
	o.metrics.ObserveTurn(status, elapsed)
	o.emit(TurnEvent{
		Type:      EventTurnCompleted,
		SessionID: sessionID,
		TurnID:    turn.ID,
		Partial:   resp.Partial,
		Duration:  elapsed,
	})
	return resp, nil
}

func (o *Orchestrator) failTurn(sessionID string, start time.Time, cause error) (models.FinalResponse, error) {
	o.logger.Log("[turn] session=%s failed: %v", sessionID, cause)
	elapsed := o.now().Sub(start)
	o.metrics.ObserveTurn(metrics.StatusFailed, elapsed)
	o.emit(TurnEvent{Type: EventTurnFailed, SessionID: sessionID, Error: cause, Duration: elapsed})
	return fallbackResponse(), fmt.Errorf("%w: %w", ErrTurnFailed, cause)
}

func fallbackResponse() models.FinalResponse {
	return models.FinalResponse{Message: FallbackMessage}
}

// onStep forwards dispatcher progress to events and metrics.
func (o *Orchestrator) onStep(sessionID string, step dispatch.Step) {
	o.metrics.ObserveHandler(step.Handler, step.Err)
	ev := TurnEvent{
		Type:      EventHandlerCompleted,
		SessionID: sessionID,
		Handler:   step.Handler,
		Duration:  step.Duration,
	}
	if step.Err != nil {
		ev.Type = EventHandlerFailed
		ev.Error = step.Err
	}
	o.emit(ev)
}

// remember promotes fields a handler declared in Remember to session
// attributes.
func (o *Orchestrator) remember(st *conversation.State, outputs []models.HandlerOutput) {
	for _, out := range outputs {
		def, err := o.registry.Get(out.Handler)
		if err != nil {
			continue
		}
		for _, field := range def.Remember {
			v, ok := out.Data[field]
			if !ok || v == nil {
				continue
			}
			text := synth.FormatValue(v)
			if text == "" {
				continue
			}
			st.SetAttribute(field, text)
		}
	}
}

// persist saves the session snapshot. Store errors are logged, not returned:
// the reply was already produced and the in-memory state is authoritative.
func (o *Orchestrator) persist(ctx context.Context, st *conversation.State) {
	if o.store == nil {
		return
	}
	snap := st.Snapshot()
	snap.UpdatedAt = o.now().UTC()
	if err := o.store.Save(ctx, snap); err != nil {
		log.Printf("[orchestrator] WARNING: failed to persist session %s: %v", st.SessionID(), err)
	}
}

func (o *Orchestrator) emit(ev TurnEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}
	o.emitter.Emit(ev)
}
