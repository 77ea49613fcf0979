package llm

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client using the official openai-go SDK against any
// OpenAI-compatible chat completions endpoint (Gemini's included).
type OpenAIClient struct {
	Model string
	Opts  []option.RequestOption
}

// NewOpenAIClient builds a client from settings. An empty API key is allowed:
// the provider rejects the first request instead.
func NewOpenAIClient(cfg *Settings) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, errors.New("llm settings are nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{Model: cfg.Model, Opts: opts}, nil
}

// Name implements Client.
func (o *OpenAIClient) Name() string {
	return "openai:" + o.Model
}

// Complete implements Client.
func (o *OpenAIClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return o.create(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: o.messages(prompt),
	})
}

// CompleteJSON implements Client.
func (o *OpenAIClient) CompleteJSON(ctx context.Context, prompt Prompt, schema Schema) (string, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schema.Name,
		Schema: schema.JSONSchema(),
		Strict: openai.Bool(true),
	}
	if schema.Description != "" {
		schemaParam.Description = openai.String(schema.Description)
	}
	return o.create(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: o.messages(prompt),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
	})
}

func (o *OpenAIClient) create(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIClient) messages(prompt Prompt) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt.System),
		openai.UserMessage(prompt.User),
	}
}
