// Package answer asks the remote model and turns every outcome into a
// display string.
package answer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ashureev/unichat/internal/llm"
)

// Display strings shown to the student.
const (
	RefusalText     = "❌ Please ask questions only related to the supported subjects."
	EmptyReplyText  = "❌ Gemini didn't return any message."
	errorTextPrefix = "❌ Error: "
)

// Outcome classifies how a question was resolved.
type Outcome string

// Outcomes.
const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeOutOfScope      Outcome = "out_of_scope"
	OutcomeProviderFailure Outcome = "provider_failure"
	OutcomeEmptyResponse   Outcome = "empty_response"
)

// Result is the single display string produced for a question.
type Result struct {
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// Refusal returns the result used when the gate rejects a question.
func Refusal() Result {
	return Result{Text: RefusalText, Outcome: OutcomeOutOfScope}
}

// Orchestrator sends accepted questions to the model with a fixed persona.
type Orchestrator struct {
	client  llm.Client
	persona string
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(client llm.Client, persona string, logger *slog.Logger) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if persona == "" {
		return nil, errors.New("system persona is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{client: client, persona: persona, logger: logger}, nil
}

// Answer issues one blocking request. It never returns an error: failures are
// folded into Result.Text. There is no retry.
func (o *Orchestrator) Answer(ctx context.Context, question string) Result {
	text, err := o.client.Complete(ctx, llm.Prompt{
		System: o.persona,
		User:   question,
	})
	if err != nil {
		o.logger.Warn("model request failed", "provider", o.client.Name(), "error", err)
		return Result{Text: errorTextPrefix + err.Error(), Outcome: OutcomeProviderFailure, Err: err}
	}
	if text == "" {
		return Result{Text: EmptyReplyText, Outcome: OutcomeEmptyResponse}
	}
	return Result{Text: text, Outcome: OutcomeAnswered}
}
