package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/internal/orchestrator"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/internal/shop"
)

func TestOfflineRoute(t *testing.T) {
	tests := []struct {
		name       string
		request    string
		primary    string
		secondary  []string
		confidence float64
	}{
		{
			name:       "single keyword",
			request:    "Do you have tulips today?",
			primary:    "inventory",
			secondary:  []string{},
			confidence: 0.8,
		},
		{
			name:       "earliest keyword is primary",
			request:    "A wedding bouquet with roses, how much would it cost?",
			primary:    "design",
			secondary:  []string{"inventory", "pricing"},
			confidence: 0.8,
		},
		{
			name:       "case insensitive",
			request:    "DELIVER to 94110 please",
			primary:    "delivery",
			secondary:  []string{},
			confidence: 0.8,
		},
		{
			name:       "no match",
			request:    "what time do you open on sunday",
			primary:    "general",
			confidence: 0.6,
		},
		{
			name:       "short request without match",
			request:    "hmm ok",
			primary:    "general",
			confidence: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := offlineRoute(tt.request)
			if got["primary_handler"] != tt.primary {
				t.Errorf("primary = %v, want %s", got["primary_handler"], tt.primary)
			}
			if got["confidence"] != tt.confidence {
				t.Errorf("confidence = %v, want %v", got["confidence"], tt.confidence)
			}
			if tt.secondary == nil {
				if _, ok := got["secondary_handlers"]; ok {
					t.Errorf("unexpected secondary_handlers: %v", got["secondary_handlers"])
				}
				return
			}
			sec, _ := got["secondary_handlers"].([]string)
			if strings.Join(sec, ",") != strings.Join(tt.secondary, ",") {
				t.Errorf("secondary = %v, want %v", sec, tt.secondary)
			}
		})
	}
}

func TestOfflineOutput_MatchesCatalogShapes(t *testing.T) {
	catalog, err := handler.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}

	for _, def := range catalog.Handlers {
		t.Run(def.Name, func(t *testing.T) {
			raw, err := json.Marshal(offlineOutput(def.Name, "roses", def.OutputShape))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			obj, err := def.OutputShape.Validate(raw)
			if err != nil {
				t.Fatalf("offline output does not match shape: %v", err)
			}
			msg, _ := obj["message"].(string)
			if !strings.Contains(msg, "roses") {
				t.Errorf("message = %q, want it to echo the query", msg)
			}
		})
	}
}

func TestPromptQuery(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"Request: red roses\nOriginal request: x\n", "red roses"},
		{"Request:   spaced  \n", "spaced"},
		{"no prefix", "no prefix"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := promptQuery(tt.prompt); got != tt.want {
			t.Errorf("promptQuery(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}

func TestOfflineTurn_EndToEnd(t *testing.T) {
	catalog, err := handler.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	completer := newOfflineCompleter()
	reg, err := registry.Build(catalog.Build(completer))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	orch, err := orchestrator.New(
		orchestrator.RequiredConfig{Registry: reg, Completer: completer},
		orchestrator.WithRouting(orchestrator.RoutingConfig{
			FallbackHandler:      catalog.Fallback,
			ClarificationHandler: catalog.Clarification,
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.Close()

	resp, err := orch.HandleTurn(context.Background(), "s1", "A wedding bouquet with roses, how much?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.Partial {
		t.Errorf("unexpected partial response: missing %v", resp.Missing)
	}
	for _, name := range []string{"design", "inventory", "pricing"} {
		if _, ok := resp.Output(name); !ok {
			t.Errorf("missing output for %s", name)
		}
	}

	snap, err := orch.ExportState(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}
	if len(snap.Turns) != 1 {
		t.Errorf("turns = %d, want 1", len(snap.Turns))
	}
}

func TestOfflineToolStep(t *testing.T) {
	catalog, err := handler.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	ds, err := shop.SampleDataset()
	if err != nil {
		t.Fatalf("SampleDataset: %v", err)
	}

	// Capture a real step request from the inventory handler.
	completer := newOfflineCompleter()
	for _, h := range catalog.Build(completer, shop.Tools(shop.NewMemoryStore(ds))...) {
		if h.Definition().Name == "inventory" {
			if _, err := h.Invoke(context.Background(), handler.Input{Query: "red roses"}); err != nil {
				t.Fatalf("Invoke: %v", err)
			}
		}
	}
	calls := completer.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %v, want a call step, an answer step, and the answer", completer.CallNames())
	}
	if calls[0].Name != handler.ToolStepPrefix+"inventory" {
		t.Fatalf("first call = %q, want a tool step", calls[0].Name)
	}

	first := offlineToolStep(calls[0])
	if first["action"] != handler.ActionCall || first["tool"] != shop.SearchInventoryTool {
		t.Errorf("first step = %v", first)
	}
	if args := first["arguments"].(map[string]any); args["query"] != "red roses" {
		t.Errorf("arguments = %v, want the request text", args)
	}

	if second := offlineToolStep(calls[1]); second["action"] != handler.ActionAnswer {
		t.Errorf("second step = %v, want an answer once results are in", second)
	}
	if none := offlineToolStep(llm.Request{}); none["action"] != handler.ActionAnswer {
		t.Errorf("step without tools = %v, want an answer", none)
	}
}

func TestOfflineTurn_InventoryAnswersFromShop(t *testing.T) {
	catalog, err := handler.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	ds, err := shop.SampleDataset()
	if err != nil {
		t.Fatalf("SampleDataset: %v", err)
	}
	completer := newOfflineCompleter()
	reg, err := registry.Build(catalog.Build(completer, shop.Tools(shop.NewMemoryStore(ds))...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	orch, err := orchestrator.New(
		orchestrator.RequiredConfig{Registry: reg, Completer: completer},
		orchestrator.WithRouting(orchestrator.RoutingConfig{
			FallbackHandler:      catalog.Fallback,
			ClarificationHandler: catalog.Clarification,
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.Close()

	resp, err := orch.HandleTurn(context.Background(), "s1", "Do you have red roses?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	out, ok := resp.Output("inventory")
	if !ok {
		t.Fatalf("no inventory output: %+v", resp)
	}
	if out.Data["in_stock"] != true {
		t.Errorf("in_stock = %v, want true", out.Data["in_stock"])
	}
	items, _ := out.Data["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v, want only the red rose", items)
	}
	item := items[0].(map[string]any)
	if item["name"] != "Red Rose" || item["quantity"] != float64(48) {
		t.Errorf("item = %v, want Red Rose with the stored 48", item)
	}
}
