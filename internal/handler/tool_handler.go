package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/pkg/models"
)

// ToolStepPrefix prefixes the completion request name of every tool step.
const ToolStepPrefix = "tool_step_"

// DefaultMaxToolSteps bounds the tool calls a handler makes per invocation.
const DefaultMaxToolSteps = 4

// Step actions.
const (
	ActionCall   = "call"
	ActionAnswer = "answer"
)

// Tool is a lookup a handler can run before answering.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the schema of the call arguments.
	Parameters() models.OutputShape
	Call(ctx context.Context, args map[string]any) (ToolResult, error)
}

// ToolResult is what a tool call found.
type ToolResult struct {
	// Content is shown to the model as JSON.
	Content any
	// Fields are output fields the result settles. They replace whatever
	// the model wrote for fields the handler's shape declares.
	Fields map[string]any
}

// ToolCall records one executed tool call.
type ToolCall struct {
	Tool      string
	Arguments map[string]any
	Result    ToolResult
	Err       error
}

type stepReply struct {
	Action    string         `json:"action"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ToolHandler lets the model call tools over a few structured steps, then
// answers with one completion that sees every result.
type ToolHandler struct {
	*LLMHandler
	tools    map[string]Tool
	names    []string
	maxSteps int
	onCall   func(handler string, call ToolCall)
}

// NewToolHandler creates a handler that may call tools before answering.
func NewToolHandler(def models.HandlerDefinition, completer llm.Completer, tools ...Tool) *ToolHandler {
	h := &ToolHandler{
		LLMHandler: NewLLMHandler(def, completer),
		tools:      make(map[string]Tool, len(tools)),
		maxSteps:   DefaultMaxToolSteps,
	}
	for _, t := range tools {
		if _, dup := h.tools[t.Name()]; dup {
			continue
		}
		h.tools[t.Name()] = t
		h.names = append(h.names, t.Name())
	}
	return h
}

// WithMaxSteps sets the number of tool steps. Non-positive values are ignored.
func (h *ToolHandler) WithMaxSteps(n int) *ToolHandler {
	if n > 0 {
		h.maxSteps = n
	}
	return h
}

// OnToolCall sets a callback run after every tool call.
func (h *ToolHandler) OnToolCall(fn func(handler string, call ToolCall)) *ToolHandler {
	h.onCall = fn
	return h
}

// ToolNames returns the handler's tools in registration order.
func (h *ToolHandler) ToolNames() []string {
	return append([]string(nil), h.names...)
}

// Invoke runs the tool steps and the final completion.
func (h *ToolHandler) Invoke(ctx context.Context, in Input) (json.RawMessage, error) {
	base := BuildUserPrompt(in)
	calls, err := h.runTools(ctx, base)
	if err != nil {
		return nil, err
	}

	raw, err := h.completer.Complete(ctx, llm.Request{
		System: h.systemPrompt(),
		User:   base + formatToolCalls(calls),
		Shape:  h.def.OutputShape,
		Name:   RequestNamePrefix + h.def.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", h.def.Name, err)
	}
	return h.settle(raw, calls)
}

// runTools asks the model for tool calls until it answers, repeats itself,
// or runs out of steps.
func (h *ToolHandler) runTools(ctx context.Context, base string) ([]ToolCall, error) {
	if len(h.names) == 0 {
		return nil, nil
	}
	shape := stepShape(h.names)

	var calls []ToolCall
	for step := 0; step < h.maxSteps; step++ {
		raw, err := h.completer.Complete(ctx, llm.Request{
			System: h.stepSystemPrompt(),
			User:   base + h.toolList() + formatToolCalls(calls),
			Shape:  shape,
			Name:   ToolStepPrefix + h.def.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("%s tool step %d: %w", h.def.Name, step+1, err)
		}
		var next stepReply
		if err := json.Unmarshal(raw, &next); err != nil {
			return nil, fmt.Errorf("%s tool step %d: decode: %w", h.def.Name, step+1, err)
		}
		if next.Action != ActionCall {
			break
		}
		if n := len(calls); n > 0 && calls[n-1].Tool == next.Tool && reflect.DeepEqual(calls[n-1].Arguments, next.Arguments) {
			break
		}

		call := h.call(ctx, next.Tool, next.Arguments)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		calls = append(calls, call)
		if h.onCall != nil {
			h.onCall(h.def.Name, call)
		}
	}
	return calls, nil
}

// call runs one tool. Unknown tools, bad arguments, and tool errors are
// recorded on the call so the model can see them.
func (h *ToolHandler) call(ctx context.Context, name string, args map[string]any) ToolCall {
	call := ToolCall{Tool: name, Arguments: args}
	tool, ok := h.tools[name]
	if !ok {
		call.Err = fmt.Errorf("unknown tool %q", name)
		return call
	}
	if args == nil {
		args = map[string]any{}
	}
	checked, err := tool.Parameters().ValidateMap(args)
	if err != nil {
		call.Err = fmt.Errorf("invalid arguments: %w", err)
		return call
	}
	call.Result, call.Err = tool.Call(ctx, checked)
	return call
}

// settle overwrites the model's values for fields a tool result settled.
func (h *ToolHandler) settle(raw json.RawMessage, calls []ToolCall) (json.RawMessage, error) {
	fields := make(map[string]any)
	for _, c := range calls {
		if c.Err != nil {
			continue
		}
		for k, v := range c.Result.Fields {
			if _, declared := h.def.OutputShape.Field(k); declared {
				fields[k] = v
			}
		}
	}
	if len(fields) == 0 {
		return raw, nil
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		// Leave non-object output for shape validation to reject.
		return raw, nil
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

func (h *ToolHandler) stepSystemPrompt() string {
	return h.systemPrompt() + "\n\nBefore answering you can look things up with the tools listed in the request. " +
		"Reply with action \"call\", a tool, and its arguments to run one, or action \"answer\" once you have what you need. " +
		"Do not repeat a call whose result you already have."
}

func (h *ToolHandler) toolList() string {
	var b strings.Builder
	b.WriteString("\nTools:\n")
	for _, name := range h.names {
		t := h.tools[name]
		params, err := json.Marshal(t.Parameters().Properties())
		if err != nil {
			params = []byte("{}")
		}
		fmt.Fprintf(&b, "- %s: %s Arguments: %s\n", name, t.Description(), params)
	}
	return b.String()
}

// ToolResultsHeader opens the section listing tool results in a prompt.
const ToolResultsHeader = "\nTool results:\n"

func formatToolCalls(calls []ToolCall) string {
	if len(calls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(ToolResultsHeader)
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		if c.Err != nil {
			fmt.Fprintf(&b, "- %s %s failed: %v\n", c.Tool, args, c.Err)
			continue
		}
		content, err := json.Marshal(c.Result.Content)
		if err != nil {
			content = []byte("null")
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", c.Tool, args, content)
	}
	return b.String()
}

// stepShape is the schema of a tool step reply.
func stepShape(tools []string) models.OutputShape {
	return models.OutputShape{Fields: []models.FieldSpec{
		{Name: "action", Type: models.FieldString, Required: true, Description: "call or answer"},
		{Name: "tool", Type: models.FieldString, Description: "Tool to call, one of: " + strings.Join(tools, ", ")},
		{Name: "arguments", Type: models.FieldObject, Description: "Arguments for the tool"},
	}}
}

// StepTools returns the tool names a step request offers.
func StepTools(req llm.Request) []string {
	f, ok := req.Shape.Field("tool")
	if !ok {
		return nil
	}
	_, list, ok := strings.Cut(f.Description, ": ")
	if !ok || list == "" {
		return nil
	}
	return strings.Split(list, ", ")
}
