package orchestrator

import (
	"time"

	"github.com/ryanmello/lilli/pkg/models"
)

// EventType represents the type of turn event.
type EventType string

const (
	// EventTurnStarted indicates a request was accepted for a session.
	EventTurnStarted EventType = "turn_started"
	// EventTurnClassified indicates the routing decision is known.
	EventTurnClassified EventType = "turn_classified"
	// EventHandlerCompleted indicates a handler produced valid output.
	EventHandlerCompleted EventType = "handler_completed"
	// EventHandlerFailed indicates a handler failed and aborted the chain.
	EventHandlerFailed EventType = "handler_failed"
	// EventTurnCompleted indicates a reply was produced and recorded.
	EventTurnCompleted EventType = "turn_completed"
	// EventTurnFailed indicates the turn produced no reply.
	EventTurnFailed EventType = "turn_failed"
)

// TurnEvent reports progress through a turn.
type TurnEvent struct {
	// Type is the kind of event.
	Type EventType
	// SessionID is the session the turn belongs to.
	SessionID string
	// TurnID is set once the turn is recorded.
	TurnID string
	// Handler is set for handler events.
	Handler string
	// Decision is set for classified events.
	Decision *models.RoutingDecision
	// Partial is set on completed turns that lost handlers.
	Partial bool
	// Error contains error details for failure events.
	Error error
	// Duration is the elapsed time for handler and turn completion events.
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
