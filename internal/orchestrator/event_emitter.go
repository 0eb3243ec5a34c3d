package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
)

// EventEmitter delivers turn events to a buffered channel. Turns never wait
// on a slow reader: when the buffer is full the event is dropped.
type EventEmitter struct {
	mu           sync.RWMutex
	events       chan TurnEvent
	closed       bool
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &EventEmitter{
		events: make(chan TurnEvent, bufferSize),
	}
}

// Emit sends an event, dropping it if the buffer is full or the emitter
// is closed.
func (e *EventEmitter) Emit(event TurnEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
	default:
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[orchestrator] WARNING: Event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan TurnEvent {
	return e.events
}

// Close closes the events channel. Later Emit calls are ignored.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}
