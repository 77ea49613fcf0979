// Package gate decides whether a question belongs to the supported subjects.
package gate

import (
	"context"
	"fmt"

	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/llm"
)

// Verdict is the outcome of a relevance check.
type Verdict struct {
	InScope   bool
	Reasoning string
	// Err is set when the check itself failed; InScope is then false.
	Err error
}

// Gate checks a question against the configured subjects.
type Gate interface {
	Check(ctx context.Context, question string, subjects []domain.Subject) Verdict
	Name() string
}

// Strategy names accepted by New.
const (
	StrategyLexical = "lexical"
	StrategyModel   = "model"
)

// New returns the gate for strategy. The model strategy requires client.
func New(strategy string, client llm.Client) (Gate, error) {
	switch strategy {
	case StrategyLexical, "":
		return Lexical{}, nil
	case StrategyModel:
		if client == nil {
			return nil, fmt.Errorf("gate strategy %s requires an llm client", strategy)
		}
		return NewModel(client), nil
	default:
		return nil, fmt.Errorf("gate strategy %s not supported", strategy)
	}
}
