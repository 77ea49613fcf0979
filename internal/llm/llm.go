// Package llm abstracts the hosted chat-completion providers.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyChoices is returned when a provider answers without any candidate.
var ErrEmptyChoices = errors.New("llm: provider returned no choices")

// Prompt is the two-message request sent to the model: a system
// instruction and the user's question.
type Prompt struct {
	System string
	User   string
}

// FieldType is a JSON schema primitive.
type FieldType string

// Supported schema field types.
const (
	FieldBoolean FieldType = "boolean"
	FieldString  FieldType = "string"
)

// Field is one required property of a structured response.
type Field struct {
	Name        string
	Type        FieldType
	Description string
}

// Schema describes a flat JSON object the model must return.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

// JSONSchema renders the schema as a JSON-schema document.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[f.Name] = prop
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Client is a blocking chat-completion client.
type Client interface {
	// Complete returns the text of the first candidate. An empty string with
	// a nil error means the provider answered with an empty message.
	Complete(ctx context.Context, prompt Prompt) (string, error)

	// CompleteJSON asks for a response conforming to schema and returns the
	// raw JSON text.
	CompleteJSON(ctx context.Context, prompt Prompt, schema Schema) (string, error)

	// Name identifies the provider and model for logs.
	Name() string
}

// Settings provides the basic configuration for concrete clients.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
