package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Reply is one canned response for a ScriptedCompleter.
type Reply struct {
	Raw   json.RawMessage
	Err   error
	Delay time.Duration
}

// JSONReply marshals v into a Reply, panicking on marshal errors.
func JSONReply(v any) Reply {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("llm.JSONReply: %v", err))
	}
	return Reply{Raw: raw}
}

// ScriptedCompleter returns canned replies keyed by request name. Replies for
// a name are consumed in order; the last one repeats. It records every call.
type ScriptedCompleter struct {
	mu       sync.Mutex
	replies  map[string][]Reply
	calls    []Request
	fallback func(req Request) (json.RawMessage, error)
}

// NewScriptedCompleter creates an empty scripted completer.
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{replies: make(map[string][]Reply)}
}

// On queues replies for requests with the given name.
func (s *ScriptedCompleter) On(name string, replies ...Reply) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[name] = append(s.replies[name], replies...)
	return s
}

// OnJSON queues a marshalled value for requests with the given name.
func (s *ScriptedCompleter) OnJSON(name string, v any) *ScriptedCompleter {
	return s.On(name, JSONReply(v))
}

// Fallback sets the function used when no reply is queued for a name.
func (s *ScriptedCompleter) Fallback(fn func(req Request) (json.RawMessage, error)) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = fn
	return s
}

// Calls returns a copy of all recorded requests.
func (s *ScriptedCompleter) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// CallNames returns the names of recorded requests in call order.
func (s *ScriptedCompleter) CallNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.calls))
	for i, c := range s.calls {
		names[i] = c.Name
	}
	return names
}

// Complete returns the next reply queued for req.Name.
func (s *ScriptedCompleter) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	queue := s.replies[req.Name]
	fallback := s.fallback
	var reply Reply
	found := len(queue) > 0
	if found {
		reply = queue[0]
		if len(queue) > 1 {
			s.replies[req.Name] = queue[1:]
		}
	}
	s.mu.Unlock()

	if !found {
		if fallback != nil {
			return fallback(req)
		}
		return nil, fmt.Errorf("no scripted reply for %q", req.Name)
	}

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return reply.Raw, nil
}
