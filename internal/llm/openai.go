package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	// APIKey falls back to OPENAI_API_KEY.
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint. Empty uses the default.
	BaseURL string
	// Model is the chat model name.
	Model string
	// Temperature for completions.
	Temperature float32
}

// OpenAIClient implements Completer with JSON-object response format.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	tracker     *TokenTracker
}

// NewOpenAIClient creates a completer for OpenAI or a compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		tracker:     NewTokenTracker(),
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *OpenAIClient) Tracker() *TokenTracker {
	return c.tracker
}

// Complete asks for a JSON object and embeds the schema in the system prompt.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	system, err := systemWithSchema(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	c.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	raw, ok := ExtractJSONObject(resp.Choices[0].Message.Content)
	if !ok {
		return nil, fmt.Errorf("openai response is not a JSON object: %w", ErrEmptyResponse)
	}
	return raw, nil
}

func systemWithSchema(req Request) (string, error) {
	schema, err := json.MarshalIndent(req.Shape.JSONSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal response schema: %w", err)
	}
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with ONLY a JSON object matching this schema. No additional text.\n")
	b.Write(schema)
	return b.String(), nil
}
