package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GenAIClient implements Client on the native Gemini API.
// The SDK client is built lazily so a missing key fails the first call, not startup.
type GenAIClient struct {
	model  string
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

// NewGenAIClient creates a Gemini client from settings.
func NewGenAIClient(cfg *Settings) (*GenAIClient, error) {
	if cfg == nil {
		return nil, errors.New("llm settings are nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	return &GenAIClient{model: cfg.Model, apiKey: cfg.APIKey}, nil
}

// Name implements Client.
func (g *GenAIClient) Name() string {
	return "genai:" + g.model
}

func (g *GenAIClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, errors.New("genai: GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return client, nil
}

// Complete implements Client.
func (g *GenAIClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	})
}

// CompleteJSON implements Client.
func (g *GenAIClient) CompleteJSON(ctx context.Context, prompt Prompt, schema Schema) (string, error) {
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    genaiSchema(schema),
	})
}

func (g *GenAIClient) generate(ctx context.Context, prompt Prompt, config *genai.GenerateContentConfig) (string, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(ctx, g.model, genaiContents(prompt), config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", ErrEmptyChoices
	}
	return result.Text(), nil
}

func genaiContents(prompt Prompt) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}
}

func genaiSchema(schema Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(schema.Fields))
	required := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		t := genai.TypeString
		if f.Type == FieldBoolean {
			t = genai.TypeBoolean
		}
		props[f.Name] = &genai.Schema{Type: t, Description: f.Description}
		required = append(required, f.Name)
	}
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: schema.Description,
		Properties:  props,
		Required:    required,
	}
}
