package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/pkg/models"
)

// RequestNamePrefix prefixes the completion request name of every handler call.
const RequestNamePrefix = "handler_"

// LLMHandler answers with exactly one structured completion.
type LLMHandler struct {
	def       models.HandlerDefinition
	completer llm.Completer
	shop      string
}

// NewLLMHandler creates a completion-backed handler.
func NewLLMHandler(def models.HandlerDefinition, completer llm.Completer) *LLMHandler {
	return &LLMHandler{def: def.Clone(), completer: completer}
}

// WithShopContext adds a shared preamble (shop name, policies) to the system prompt.
func (h *LLMHandler) WithShopContext(text string) *LLMHandler {
	h.shop = strings.TrimSpace(text)
	return h
}

// Definition returns the handler's definition.
func (h *LLMHandler) Definition() models.HandlerDefinition {
	return h.def
}

// Invoke builds the prompts and issues the completion.
func (h *LLMHandler) Invoke(ctx context.Context, in Input) (json.RawMessage, error) {
	raw, err := h.completer.Complete(ctx, llm.Request{
		System: h.systemPrompt(),
		User:   BuildUserPrompt(in),
		Shape:  h.def.OutputShape,
		Name:   RequestNamePrefix + h.def.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", h.def.Name, err)
	}
	return raw, nil
}

func (h *LLMHandler) systemPrompt() string {
	var b strings.Builder
	if h.shop != "" {
		b.WriteString(h.shop)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(h.def.Instructions))
	b.WriteString("\n\nOnly use facts from the request, the extracted entities, and the outputs of earlier steps. ")
	b.WriteString("If information is missing, say so in the message instead of inventing it.")
	return b.String()
}

// BuildUserPrompt renders a handler input as prompt text.
func BuildUserPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("Request: ")
	b.WriteString(in.Query)
	b.WriteString("\n")
	if in.Query != in.RequestText && in.RequestText != "" {
		fmt.Fprintf(&b, "Original request: %s\n", in.RequestText)
	}

	if len(in.Entities) > 0 {
		b.WriteString("\nExtracted entities:\n")
		for _, k := range models.SortedKeys(in.Entities) {
			e := in.Entities[k]
			fmt.Fprintf(&b, "- %s (%s): %s\n", k, e.Kind, e.Text())
		}
	}

	if len(in.Attributes) > 0 {
		b.WriteString("\nKnown facts about this customer:\n")
		for _, k := range models.SortedKeys(in.Attributes) {
			fmt.Fprintf(&b, "- %s: %s\n", k, in.Attributes[k])
		}
	}

	if len(in.Dependencies) > 0 {
		b.WriteString("\nResults from earlier steps:\n")
		for _, dep := range in.Dependencies {
			data, err := json.Marshal(dep.Data)
			if err != nil {
				data = []byte("{}")
			}
			fmt.Fprintf(&b, "- %s: %s\n", dep.Handler, data)
		}
	}

	if len(in.History) > 0 {
		b.WriteString("\nRecent conversation (oldest first):\n")
		for _, turn := range in.History {
			fmt.Fprintf(&b, "- user: %s\n", turn.RequestText)
			if msg := firstLine(turn.FinalResponse.Message); msg != "" {
				fmt.Fprintf(&b, "  assistant: %s\n", msg)
			}
		}
	}

	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 160
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
