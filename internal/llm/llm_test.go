package llm

import (
	"context"
	"strings"
	"testing"
)

func TestSchemaJSONSchema(t *testing.T) {
	s := Schema{
		Name: "subject_check",
		Fields: []Field{
			{Name: "is_subject_related", Type: FieldBoolean, Description: "true when related"},
			{Name: "reasoning", Type: FieldString},
		},
	}
	doc := s.JSONSchema()
	if doc["type"] != "object" {
		t.Fatalf("expected object schema, got %v", doc["type"])
	}
	props := doc["properties"].(map[string]any)
	flag := props["is_subject_related"].(map[string]any)
	if flag["type"] != "boolean" {
		t.Errorf("expected boolean flag, got %v", flag["type"])
	}
	required := doc["required"].([]string)
	if len(required) != 2 {
		t.Errorf("expected two required fields, got %v", required)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cases := map[string]string{
		"openai": "openai:gemini-2.0-flash",
		"genai":  "genai:gemini-2.0-flash",
		"mock":   "mock",
	}
	for provider, want := range cases {
		client, err := New(Settings{Provider: provider, Model: "gemini-2.0-flash"})
		if err != nil {
			t.Fatalf("New(%s) failed: %v", provider, err)
		}
		if client.Name() != want {
			t.Errorf("New(%s).Name() = %q, want %q", provider, client.Name(), want)
		}
	}
	if _, err := New(Settings{Provider: "claude", Model: "x"}); err == nil {
		t.Error("expected unsupported provider error")
	}
}

func TestGenAIClientMissingKeyFailsOnFirstCall(t *testing.T) {
	client, err := NewGenAIClient(&Settings{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("expected construction to succeed, got %v", err)
	}
	_, err = client.Complete(context.Background(), Prompt{System: "s", User: "u"})
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestMockClient(t *testing.T) {
	var c MockClient
	got, err := c.Complete(context.Background(), Prompt{User: "What is java?"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !strings.Contains(got, "What is java?") {
		t.Errorf("expected echo of question, got %q", got)
	}
}
