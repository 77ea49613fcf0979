// Package llmtest provides a scriptable llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/ashureev/unichat/internal/llm"
)

// Fake records prompts and replies with canned values.
type Fake struct {
	mu sync.Mutex

	Reply     string
	Err       error
	JSONReply string
	JSONErr   error

	Prompts     []llm.Prompt
	JSONPrompts []llm.Prompt
}

var _ llm.Client = (*Fake)(nil)

// Name implements llm.Client.
func (f *Fake) Name() string { return "fake" }

// Complete implements llm.Client.
func (f *Fake) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Reply, f.Err
}

// CompleteJSON implements llm.Client.
func (f *Fake) CompleteJSON(ctx context.Context, prompt llm.Prompt, _ llm.Schema) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JSONPrompts = append(f.JSONPrompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.JSONReply, f.JSONErr
}

// Calls returns how many Complete and CompleteJSON calls were made.
func (f *Fake) Calls() (complete, completeJSON int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts), len(f.JSONPrompts)
}
