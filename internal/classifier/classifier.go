// Package classifier turns a request into a routing decision with one
// structured completion call.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ryanmello/lilli/internal/conversation"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/pkg/models"
)

// RequestName identifies routing completions to the capability.
const RequestName = "route_request"

const (
	// DefaultFallbackConfidenceCap bounds confidence after an unknown primary.
	DefaultFallbackConfidenceCap = 0.5
	// DefaultHistoryTurns is how many recent turns are summarised in the prompt.
	DefaultHistoryTurns = 5
)

// RoutingShape is the structured result requested from the completion.
var RoutingShape = models.OutputShape{Fields: []models.FieldSpec{
	{Name: "primary_handler", Type: models.FieldString, Required: true, Description: "Name of the handler that should answer"},
	{Name: "secondary_handlers", Type: models.FieldArray, Items: models.FieldString, Description: "Other handlers whose work the answer needs"},
	{Name: "confidence", Type: models.FieldNumber, Required: true, Description: "0 to 1, how sure the routing is"},
	{Name: "entities", Type: models.FieldObject, Description: "Extracted values keyed by snake_case name; strings, numbers, or YYYY-MM-DD dates"},
	{Name: "sub_queries", Type: models.FieldObject, Description: "Optional rewritten request per handler name"},
	{Name: "reasoning", Type: models.FieldString, Description: "One short sentence"},
}}

// ClassificationError reports a routing completion that failed or could not
// be parsed. It is terminal for the turn.
type ClassificationError struct {
	Cause error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Cause)
}

func (e *ClassificationError) Unwrap() error { return e.Cause }

// Config holds classifier policy.
type Config struct {
	// FallbackHandler replaces an unknown primary handler.
	FallbackHandler string
	// FallbackConfidenceCap is the maximum confidence after a fallback.
	FallbackConfidenceCap float64
	// HistoryTurns bounds the conversation summary.
	HistoryTurns int
}

// Classifier produces routing decisions.
type Classifier struct {
	completer llm.Completer
	cfg       Config
	debugLog  func(format string, args ...interface{})
}

// New creates a classifier. Zero config values take defaults.
func New(completer llm.Completer, cfg Config) *Classifier {
	if cfg.FallbackConfidenceCap <= 0 || cfg.FallbackConfidenceCap > 1 {
		cfg.FallbackConfidenceCap = DefaultFallbackConfidenceCap
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.FallbackHandler == "" {
		cfg.FallbackHandler = "general"
	}
	return &Classifier{
		completer: completer,
		cfg:       cfg,
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (c *Classifier) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Config returns the effective configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Classify returns the best-effort routing decision for requestText. The
// state may be nil for a first turn. Unknown handler names never escape:
// an unknown primary becomes the fallback with capped confidence, and
// unknown secondaries are dropped.
func (c *Classifier) Classify(ctx context.Context, requestText string, reg *registry.Registry, state *conversation.State) (models.RoutingDecision, error) {
	req := llm.Request{
		System: systemPrompt,
		User:   BuildPrompt(requestText, reg.DescribeAll(), state, c.cfg.HistoryTurns),
		Shape:  RoutingShape,
		Name:   RequestName,
	}

	raw, err := c.completer.Complete(ctx, req)
	if err != nil {
		return models.RoutingDecision{}, &ClassificationError{Cause: err}
	}

	decision, err := parseDecision(raw)
	if err != nil {
		c.debugLog("[classifier] unparsable routing output: %s", truncate(string(raw), 300))
		return models.RoutingDecision{}, &ClassificationError{Cause: err}
	}

	return c.validate(decision, reg)
}

// validate enforces registry membership and confidence bounds.
func (c *Classifier) validate(d models.RoutingDecision, reg *registry.Registry) (models.RoutingDecision, error) {
	d.Confidence = clamp01(d.Confidence)

	if !reg.Has(d.PrimaryHandler) {
		if !reg.Has(c.cfg.FallbackHandler) {
			return models.RoutingDecision{}, &ClassificationError{
				Cause: fmt.Errorf("fallback: %w", &registry.UnknownHandlerError{Name: c.cfg.FallbackHandler}),
			}
		}
		c.debugLog("[classifier] unknown primary %q, using fallback %q", d.PrimaryHandler, c.cfg.FallbackHandler)
		d.PrimaryHandler = c.cfg.FallbackHandler
		d.Fallback = true
		if d.Confidence > c.cfg.FallbackConfidenceCap {
			d.Confidence = c.cfg.FallbackConfidenceCap
		}
	}

	seen := map[string]bool{d.PrimaryHandler: true}
	var secondaries []string
	for _, name := range d.SecondaryHandlers {
		if seen[name] {
			continue
		}
		if !reg.Has(name) {
			c.debugLog("[classifier] dropping unknown secondary %q", name)
			continue
		}
		seen[name] = true
		secondaries = append(secondaries, name)
	}
	d.SecondaryHandlers = secondaries

	for name := range d.SubQueries {
		if !seen[name] {
			delete(d.SubQueries, name)
		}
	}
	if len(d.SubQueries) == 0 {
		d.SubQueries = nil
	}
	return d, nil
}

// parseDecision validates raw against RoutingShape and decodes it.
func parseDecision(raw json.RawMessage) (models.RoutingDecision, error) {
	obj, err := RoutingShape.Validate(raw)
	if err != nil {
		return models.RoutingDecision{}, fmt.Errorf("parse routing decision: %w", err)
	}

	d := models.RoutingDecision{
		PrimaryHandler: strings.TrimSpace(obj["primary_handler"].(string)),
		Confidence:     obj["confidence"].(float64),
	}
	if list, ok := obj["secondary_handlers"].([]any); ok {
		for _, v := range list {
			if name := strings.TrimSpace(v.(string)); name != "" {
				d.SecondaryHandlers = append(d.SecondaryHandlers, name)
			}
		}
	}
	if ents, ok := obj["entities"].(map[string]any); ok && len(ents) > 0 {
		d.Entities = make(map[string]models.Entity, len(ents))
		for k, v := range ents {
			key := normalizeKey(k)
			if key == "" || v == nil {
				continue
			}
			d.Entities[key] = models.ParseEntity(v)
		}
	}
	if subs, ok := obj["sub_queries"].(map[string]any); ok && len(subs) > 0 {
		d.SubQueries = make(map[string]string, len(subs))
		for k, v := range subs {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				d.SubQueries[strings.TrimSpace(k)] = strings.TrimSpace(s)
			}
		}
	}
	if r, ok := obj["reasoning"].(string); ok {
		d.Reasoning = r
	}
	return d, nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.Join(strings.Fields(k), "_")
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
