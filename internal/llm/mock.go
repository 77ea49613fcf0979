package llm

import (
	"context"
	"fmt"
)

// MockClient answers locally without calling any provider.
type MockClient struct{}

// Name implements Client.
func (MockClient) Name() string { return "mock" }

// Complete implements Client.
func (MockClient) Complete(_ context.Context, prompt Prompt) (string, error) {
	return fmt.Sprintf("(offline mode) You asked: %s", prompt.User), nil
}

// CompleteJSON implements Client. Every question is treated as related.
func (MockClient) CompleteJSON(_ context.Context, _ Prompt, _ Schema) (string, error) {
	return `{"is_subject_related": true, "reasoning": "offline mode accepts every question"}`, nil
}
