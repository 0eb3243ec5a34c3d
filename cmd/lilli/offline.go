package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ryanmello/lilli/internal/classifier"
	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/pkg/models"
)

// offlineKeywords routes requests without a model. Order does not matter;
// the handler whose keyword appears first in the request becomes primary.
var offlineKeywords = map[string][]string{
	"design":    {"bouquet", "arrangement", "wedding", "birthday", "sympathy", "centerpiece", "design"},
	"inventory": {"in stock", "stock", "do you have", "available", "roses", "lilies", "tulips", "peonies"},
	"delivery":  {"deliver", "delivery", "ship", "zip"},
	"pricing":   {"price", "cost", "how much", "quote", "total"},
	"customer":  {"my order", "order history", "customer", "account"},
	"email":     {"email", "draft", "send me"},
}

// newOfflineCompleter answers routing with keyword matching and handler
// calls with minimal outputs that satisfy each handler's shape.
func newOfflineCompleter() *llm.ScriptedCompleter {
	return llm.NewScriptedCompleter().Fallback(offlineReply)
}

func offlineReply(req llm.Request) (json.RawMessage, error) {
	if req.Name == classifier.RequestName {
		return json.Marshal(offlineRoute(classifier.RequestFromPrompt(req.User)))
	}
	if strings.HasPrefix(req.Name, handler.ToolStepPrefix) {
		return json.Marshal(offlineToolStep(req))
	}
	if name, ok := strings.CutPrefix(req.Name, handler.RequestNamePrefix); ok {
		return json.Marshal(offlineOutput(name, promptQuery(req.User), req.Shape))
	}
	return nil, fmt.Errorf("offline mode cannot answer %q", req.Name)
}

type keywordHit struct {
	handler string
	pos     int
}

// offlineRoute builds a routing decision from keyword positions.
func offlineRoute(request string) map[string]any {
	text := strings.ToLower(request)

	var hits []keywordHit
	for name, words := range offlineKeywords {
		best := -1
		for _, w := range words {
			if i := strings.Index(text, w); i >= 0 && (best < 0 || i < best) {
				best = i
			}
		}
		if best >= 0 {
			hits = append(hits, keywordHit{handler: name, pos: best})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].handler < hits[j].handler
	})

	if len(hits) == 0 {
		confidence := 0.6
		if len(strings.Fields(text)) < 3 {
			confidence = 0.3
		}
		return map[string]any{
			"primary_handler": "general",
			"confidence":      confidence,
			"reasoning":       "no keywords matched",
		}
	}

	secondary := make([]string, 0, len(hits)-1)
	for _, h := range hits[1:] {
		secondary = append(secondary, h.handler)
	}
	return map[string]any{
		"primary_handler":    hits[0].handler,
		"secondary_handlers": secondary,
		"confidence":         0.8,
		"reasoning":          "keyword match",
	}
}

// offlineToolStep calls the first offered tool with the request text, then
// answers once a result is in the prompt.
func offlineToolStep(req llm.Request) map[string]any {
	tools := handler.StepTools(req)
	if len(tools) == 0 || strings.Contains(req.User, handler.ToolResultsHeader) {
		return map[string]any{"action": handler.ActionAnswer}
	}
	return map[string]any{
		"action":    handler.ActionCall,
		"tool":      tools[0],
		"arguments": map[string]any{"query": promptQuery(req.User)},
	}
}

// promptQuery extracts the query line from a handler prompt.
func promptQuery(prompt string) string {
	first, _, _ := strings.Cut(prompt, "\n")
	return strings.TrimSpace(strings.TrimPrefix(first, "Request:"))
}

// offlineOutput fills every required field with a placeholder of its type.
func offlineOutput(name, query string, shape models.OutputShape) map[string]any {
	out := make(map[string]any, len(shape.Fields))
	for _, f := range shape.Fields {
		if !f.Required {
			continue
		}
		switch f.Type {
		case models.FieldString:
			if f.Name == "message" {
				out[f.Name] = fmt.Sprintf("[offline] The %s desk received: %s", name, query)
			} else {
				out[f.Name] = "(offline)"
			}
		case models.FieldNumber, models.FieldInteger:
			out[f.Name] = 0
		case models.FieldBoolean:
			out[f.Name] = false
		case models.FieldArray:
			out[f.Name] = []any{}
		case models.FieldObject:
			out[f.Name] = map[string]any{}
		}
	}
	return out
}
