package handler

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/pkg/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog declares the handlers a process registers at startup.
type Catalog struct {
	// ShopContext is prepended to every handler's system prompt.
	ShopContext string `yaml:"shop_context"`
	// Fallback names the handler used for unknown routes.
	Fallback string `yaml:"fallback"`
	// Clarification names the handler used for low-confidence routes.
	Clarification string `yaml:"clarification"`
	// Handlers are registered in this order.
	Handlers []models.HandlerDefinition `yaml:"handlers"`
}

// DefaultCatalog returns the embedded flower-shop catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Handlers) == 0 {
		return nil, fmt.Errorf("catalog declares no handlers")
	}
	if cat.Fallback == "" {
		return nil, fmt.Errorf("catalog has no fallback handler")
	}
	names := make(map[string]bool, len(cat.Handlers))
	for _, def := range cat.Handlers {
		names[def.Name] = true
	}
	if !names[cat.Fallback] {
		return nil, fmt.Errorf("fallback handler %q is not declared", cat.Fallback)
	}
	if cat.Clarification != "" && !names[cat.Clarification] {
		return nil, fmt.Errorf("clarification handler %q is not declared", cat.Clarification)
	}
	return &cat, nil
}

// Build creates one completion-backed handler per catalog entry, in order.
// Entries that declare tools get a ToolHandler with those of tools they
// name; tools they name but that are not supplied are skipped.
func (c *Catalog) Build(completer llm.Completer, tools ...Tool) []Handler {
	available := make(map[string]Tool, len(tools))
	for _, t := range tools {
		available[t.Name()] = t
	}

	handlers := make([]Handler, 0, len(c.Handlers))
	for _, def := range c.Handlers {
		var own []Tool
		for _, name := range def.Tools {
			if t, ok := available[name]; ok {
				own = append(own, t)
			}
		}
		if len(own) == 0 {
			handlers = append(handlers, NewLLMHandler(def, completer).WithShopContext(c.ShopContext))
			continue
		}
		th := NewToolHandler(def, completer, own...)
		th.WithShopContext(c.ShopContext)
		handlers = append(handlers, th)
	}
	return handlers
}

// Names returns handler names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Handlers))
	for i, def := range c.Handlers {
		names[i] = def.Name
	}
	return names
}
