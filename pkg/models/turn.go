package models

import "time"

// HandlerOutput is the validated result of one handler run.
type HandlerOutput struct {
	// Handler is the name of the handler that produced Data.
	Handler string `json:"handler"`
	// Data matches the handler's OutputShape.
	Data map[string]any `json:"data"`
}

// Conflict records a field that two handlers disagreed on.
type Conflict struct {
	Field      string `json:"field"`
	Chosen     any    `json:"chosen"`
	ChosenFrom string `json:"chosen_from"`
	// Discarded maps handler name to the value that lost.
	Discarded map[string]any `json:"discarded"`
}

// FinalResponse is what a turn returns to the caller.
type FinalResponse struct {
	// Message is the composed, human readable reply.
	Message string `json:"message"`
	// Outputs are the raw handler outputs in execution order.
	Outputs []HandlerOutput `json:"outputs"`
	// Partial is set when fewer handlers completed than were planned.
	Partial bool `json:"partial,omitempty"`
	// Missing lists planned handlers with no output.
	Missing []string `json:"missing,omitempty"`
	// Conflicts lists reconciled disagreements between handlers.
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Merged is the reconciled view of all output fields.
	Merged map[string]any `json:"merged,omitempty"`
}

// Output returns the output of the named handler.
func (r FinalResponse) Output(handler string) (HandlerOutput, bool) {
	for _, o := range r.Outputs {
		if o.Handler == handler {
			return o, true
		}
	}
	return HandlerOutput{}, false
}

// Turn is one request/response cycle. Immutable once appended.
type Turn struct {
	ID             string          `json:"id"`
	RequestText    string          `json:"request_text"`
	Decision       RoutingDecision `json:"routing_decision"`
	HandlerOutputs []HandlerOutput `json:"handler_outputs"`
	FinalResponse  FinalResponse   `json:"final_response"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Snapshot is the serializable form of a session's conversation state.
type Snapshot struct {
	SessionID  string            `json:"session_id"`
	WindowSize int               `json:"window_size"`
	Turns      []Turn            `json:"turns"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the output.
func (o HandlerOutput) Clone() HandlerOutput {
	return HandlerOutput{Handler: o.Handler, Data: CloneData(o.Data)}
}

// CloneOutputs deep-copies a list of outputs. A nil list stays nil.
func CloneOutputs(in []HandlerOutput) []HandlerOutput {
	if in == nil {
		return nil
	}
	out := make([]HandlerOutput, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

// Clone returns a deep copy of the response. Callers may modify the copy
// without touching the recorded turn.
func (r FinalResponse) Clone() FinalResponse {
	c := r
	c.Outputs = CloneOutputs(r.Outputs)
	c.Missing = append([]string(nil), r.Missing...)
	c.Merged = CloneData(r.Merged)
	if r.Conflicts != nil {
		c.Conflicts = make([]Conflict, len(r.Conflicts))
		for i, cf := range r.Conflicts {
			cf.Chosen = CloneValue(cf.Chosen)
			cf.Discarded = CloneData(cf.Discarded)
			c.Conflicts[i] = cf
		}
	}
	return c
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	c := t
	c.Decision = t.Decision.Clone()
	c.HandlerOutputs = CloneOutputs(t.HandlerOutputs)
	c.FinalResponse = t.FinalResponse.Clone()
	return c
}

// CloneData deep-copies a decoded JSON object. A nil map stays nil.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded JSON value. Objects and arrays are copied
// recursively; scalars are returned as is.
func CloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneData(x)
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
